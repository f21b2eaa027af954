// internal/utils/dataurl.go
package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrNotDataURL = errors.New("not a data URL")

// DecodeDataURL splits "data:<mime>;base64,<payload>" into its MIME type and
// decoded bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL: missing payload")
	}

	mimeType := "text/plain"
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0 && part != "":
			mimeType = part
		case part == "base64":
			isBase64 = true
		}
	}

	if !isBase64 {
		return mimeType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return mimeType, data, nil
}

func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}
