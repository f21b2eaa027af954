// internal/services/generation_service.go
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/config"
)

var ErrCostumeRequired = errors.New("costume image is required")

// FilePart is an uploaded image on its way to the generator.
type FilePart struct {
	Filename    string
	ContentType string
	Data        []byte
}

type GenerateInput struct {
	Prompt     string
	UserPrompt string
	ImageType  string
	Colors     []string
	Head       *FilePart
	Costume    *FilePart
	Logo       *FilePart
}

// GenerateOutput is the generator's answer reshaped for the client.
type GenerateOutput struct {
	StatusCode int
	OK         bool
	Data       interface{}
}

type GenerationService struct {
	client       *http.Client
	url          string
	maxDimension int
	log          *logrus.Entry
}

func NewGenerationService(cfg config.GeneratorConfig, log *logrus.Entry) *GenerationService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GenerationService{
		client:       &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		url:          cfg.URL,
		maxDimension: cfg.MaxDimension,
		log:          log.WithField("service", "generation"),
	}
}

// Generate forwards the images under the generator's field names: the head
// becomes first_image and the costume second_image.
func (s *GenerationService) Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	if in.Costume == nil {
		return nil, ErrCostumeRequired
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := []struct{ name, value string }{
		{"prompt", in.Prompt},
		{"user_prompt", in.UserPrompt},
		{"image_type", in.ImageType},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, err
		}
	}
	for _, color := range in.Colors {
		if err := w.WriteField("colors", color); err != nil {
			return nil, err
		}
	}

	files := []struct {
		field string
		part  *FilePart
	}{
		{"first_image", in.Head},
		{"second_image", in.Costume},
		{"logo_image", in.Logo},
	}
	for _, f := range files {
		if f.part == nil {
			continue
		}
		if err := s.writeFile(w, f.field, s.downscale(f.part)); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", f.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build generator request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := decodeGeneratorBody(resp)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"colors":   len(in.Colors),
		"duration": time.Since(start).Milliseconds(),
	}).Info("Generator responded")

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	status := http.StatusOK
	if !ok {
		status = resp.StatusCode
	}
	return &GenerateOutput{StatusCode: status, OK: ok, Data: data}, nil
}

func (s *GenerationService) writeFile(w *multipart.Writer, field string, part *FilePart) error {
	filename := part.Filename
	if filename == "" {
		filename = field + ".jpg"
	}
	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	dst, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = dst.Write(part.Data)
	return err
}

// downscale shrinks images larger than the configured dimension, keeping
// their format. Anything that cannot be decoded is forwarded unchanged.
func (s *GenerationService) downscale(part *FilePart) *FilePart {
	if s.maxDimension <= 0 {
		return part
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(part.Data))
	if err != nil || (cfg.Width <= s.maxDimension && cfg.Height <= s.maxDimension) {
		return part
	}
	imgFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		return part
	}
	img, err := imaging.Decode(bytes.NewReader(part.Data), imaging.AutoOrientation(true))
	if err != nil {
		s.log.WithError(err).WithField("filename", part.Filename).Warn("Could not decode upload, forwarding as is")
		return part
	}

	resized := imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imgFormat); err != nil {
		s.log.WithError(err).WithField("filename", part.Filename).Warn("Could not re-encode upload, forwarding as is")
		return part
	}

	s.log.WithFields(logrus.Fields{
		"filename": part.Filename,
		"from":     fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"to":       fmt.Sprintf("%dx%d", resized.Bounds().Dx(), resized.Bounds().Dy()),
	}).Debug("Upload downscaled")

	return &FilePart{Filename: part.Filename, ContentType: part.ContentType, Data: buf.Bytes()}
}

// decodeGeneratorBody returns JSON as-is, text as a string and any other
// body base64 encoded.
func decodeGeneratorBody(resp *http.Response) (interface{}, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generator response: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		if !json.Valid(body) {
			return nil, errors.New("generator returned malformed JSON")
		}
		return json.RawMessage(body), nil
	case strings.Contains(contentType, "text/"):
		return string(body), nil
	default:
		return base64.StdEncoding.EncodeToString(body), nil
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
