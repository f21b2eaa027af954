// internal/creator/result.go
package creator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/apiclient"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
)

const (
	DefaultSuccessMessage = "Image generated and saved to My Images."
	base64JPEGPrefix      = "data:image/jpeg;base64,"
)

var ErrNoImageReturned = errors.New("no image returned from generator")

// OutputKind tells how a generation result carries its image.
type OutputKind int

const (
	// OutputBase64 is an inline JPEG, stored as a data URL.
	OutputBase64 OutputKind = iota + 1
	// OutputAssets is one or more hosted renders; Image is the first URL.
	OutputAssets
)

func (k OutputKind) String() string {
	switch k {
	case OutputBase64:
		return "base64"
	case OutputAssets:
		return "assets"
	default:
		return "unknown"
	}
}

// Output is a successfully resolved generation result.
type Output struct {
	Kind     OutputKind
	Image    string
	Assets   []models.GeneratedImageAsset
	Metadata map[string]interface{}
	Message  string
}

// Source is how the image is stored in the history.
func (o *Output) Source() models.ImageSource {
	if strings.HasPrefix(o.Image, "data:") {
		return models.ImageSourceBase64
	}
	return models.ImageSourceURL
}

// GenerationError is a failure reported by the proxy or the generator.
type GenerationError struct {
	StatusCode int
	Detail     string
}

func (e *GenerationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

type upstreamPayload struct {
	Success  *bool                  `json:"success"`
	Message  interface{}            `json:"message"`
	Images   []upstreamImage        `json:"images"`
	Data     interface{}            `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
}

type upstreamImage struct {
	S3URL string `json:"s3_url"`
	S3Key string `json:"s3_key"`
	Color string `json:"color"`
}

// ResolveOutput turns a proxy envelope into an Output. The payload under
// data is either a bare base64 string or an object carrying hosted images
// or a base64 data field. An object with success=false is a soft failure
// and its detail becomes the error text.
func ResolveOutput(result *apiclient.GenerateResult) (*Output, error) {
	if result == nil {
		return nil, ErrNoImageReturned
	}
	env := result.Envelope

	if !result.OK() || !env.Success {
		status := env.Status
		if status == 0 {
			status = result.StatusCode
		}
		detail := failureDetail(env.Data)
		if detail == "" {
			detail = env.Error
		}
		return nil, &GenerationError{StatusCode: status, Detail: detail}
	}

	raw := env.Data
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoImageReturned
	}

	var inline string
	if err := json.Unmarshal(raw, &inline); err == nil {
		if strings.TrimSpace(inline) == "" {
			return nil, ErrNoImageReturned
		}
		return &Output{Kind: OutputBase64, Image: base64JPEGPrefix + inline, Message: DefaultSuccessMessage}, nil
	}

	var payload upstreamPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unrecognised generator payload: %w", err)
	}
	if payload.Success != nil && !*payload.Success {
		detail := failureDetail(raw)
		if detail == "" {
			detail = "upstream service failed to generate image"
		}
		return nil, &GenerationError{StatusCode: result.StatusCode, Detail: detail}
	}

	out := &Output{Metadata: payload.Metadata, Message: DefaultSuccessMessage}
	if msg, ok := payload.Message.(string); ok && strings.TrimSpace(msg) != "" {
		out.Message = msg
	}

	for _, img := range payload.Images {
		if img.S3URL == "" {
			continue
		}
		out.Assets = append(out.Assets, models.GeneratedImageAsset{
			Color: img.Color,
			URL:   img.S3URL,
			Key:   img.S3Key,
		})
	}
	if len(out.Assets) > 0 {
		out.Kind = OutputAssets
		out.Image = out.Assets[0].URL
		return out, nil
	}

	if data, ok := payload.Data.(string); ok && strings.TrimSpace(data) != "" {
		out.Kind = OutputBase64
		out.Image = base64JPEGPrefix + data
		return out, nil
	}
	return nil, ErrNoImageReturned
}

// failureDetail extracts a human readable reason from an error payload:
// detail entries joined with ", " (using their msg field when present), a
// plain detail string, or message.
func failureDetail(raw json.RawMessage) string {
	var body struct {
		Detail  interface{} `json:"detail"`
		Message interface{} `json:"message"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &body) != nil {
		return ""
	}

	switch d := body.Detail.(type) {
	case string:
		if d != "" {
			return d
		}
	case []interface{}:
		if len(d) > 0 {
			parts := make([]string, 0, len(d))
			for _, item := range d {
				parts = append(parts, detailItem(item))
			}
			return strings.Join(parts, ", ")
		}
	case map[string]interface{}:
		return detailItem(d)
	}

	if msg, ok := body.Message.(string); ok {
		return msg
	}
	return ""
}

func detailItem(item interface{}) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]interface{}:
		if msg, ok := v["msg"].(string); ok && msg != "" {
			return msg
		}
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
