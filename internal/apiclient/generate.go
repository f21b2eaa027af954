// internal/apiclient/generate.go
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
)

const DefaultMaxAssetBytes = 32 << 20

var (
	ErrCostumeRequired = errors.New("costume image is required")
	ErrAssetTooLarge   = errors.New("asset exceeds the download limit")
)

// Upload is an image part of a generation request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type GenerateRequest struct {
	Prompt         string
	UserPrompt     string
	ImageType      string
	Costume        *Upload
	Head           *Upload
	Logo           *Upload
	SelectedColors []string
}

// GenerateResult is the proxy envelope together with the HTTP status it
// arrived with.
type GenerateResult struct {
	StatusCode int
	Envelope   models.GenerateEnvelope
}

func (r *GenerateResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// GenerateImage posts a multipart generation request. A non-2xx status is
// not an error here; callers inspect the envelope.
func (c *Client) GenerateImage(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.Costume == nil || len(req.Costume.Data) == 0 {
		return nil, ErrCostumeRequired
	}

	body, contentType, err := encodeGenerateForm(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(ctx, http.MethodPost, "/api/generate-image", body, http.Header{
		"Content-Type": {contentType},
		"Accept":       {"application/json"},
	})
	if err != nil {
		c.log.WithError(err).Error("Error generating image")
		return nil, err
	}
	defer resp.Body.Close()

	result := &GenerateResult{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&result.Envelope); err != nil {
		return nil, fmt.Errorf("failed to decode generation response (status %d): %w", resp.StatusCode, err)
	}

	c.log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"success": result.Envelope.Success,
		"colors":  len(req.SelectedColors),
	}).Info("Image generation completed")
	return result, nil
}

func encodeGenerateForm(req GenerateRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"prompt", req.Prompt},
		{"user_prompt", req.UserPrompt},
	}
	if req.ImageType != "" {
		fields = append(fields, [2]string{"image_type", req.ImageType})
	}
	for _, color := range req.SelectedColors {
		fields = append(fields, [2]string{"selectedColors", color})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	files := []struct {
		field  string
		upload *Upload
	}{
		{"costume_image", req.Costume},
		{"head_image", req.Head},
		{"logo_image", req.Logo},
	}
	for _, f := range files {
		if f.upload == nil || len(f.upload.Data) == 0 {
			continue
		}
		if err := writeFile(w, f.field, f.upload); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, u *Upload) error {
	filename := u.Filename
	if filename == "" {
		filename = field
	}
	contentType := u.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(u.Data)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", field, err)
	}
	if _, err := part.Write(u.Data); err != nil {
		return fmt.Errorf("failed to write %s: %w", field, err)
	}
	return nil
}

// FetchAsset downloads a remote image such as a product photo.
func (c *Client) FetchAsset(ctx context.Context, url string) (*Upload, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("failed to fetch asset %s: %w", url, err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxAsset+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", url, err)
	}
	if int64(len(data)) > c.maxAsset {
		return nil, fmt.Errorf("failed to fetch asset %s: %w", url, ErrAssetTooLarge)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}
	return &Upload{
		Filename:    assetName(url),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func assetName(url string) string {
	name := url
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "asset"
	}
	return name
}
