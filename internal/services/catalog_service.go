// internal/services/catalog_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/config"
)

// UpstreamError is a non-2xx answer from the AS Colour API.
type UpstreamError struct {
	StatusCode int
	StatusText string
	Details    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("AS Colour API error: %d %s", e.StatusCode, e.StatusText)
}

// Payload is an upstream body: JSON is passed through untouched, anything
// else is returned as a string.
type Payload struct {
	Body []byte `json:"body"`
	JSON bool   `json:"json"`
}

func (p Payload) Value() interface{} {
	if p.JSON {
		return json.RawMessage(p.Body)
	}
	return string(p.Body)
}

type CatalogService struct {
	client  *http.Client
	baseURL string
	key     string
	cache   Cache
	ttl     time.Duration
	policy  *bluemonday.Policy
	log     *logrus.Entry
}

func NewCatalogService(cfg config.CatalogConfig, cacheCfg config.CacheConfig, cache Cache, log *logrus.Entry) *CatalogService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ttl := time.Duration(cacheCfg.TTL) * time.Second
	if ttl <= 0 {
		cache = nil
	}
	return &CatalogService{
		client:  &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		key:     cfg.SubscriptionKey,
		cache:   cache,
		ttl:     ttl,
		policy:  bluemonday.StrictPolicy(),
		log:     log.WithField("service", "catalog"),
	}
}

func (s *CatalogService) Products(ctx context.Context) (Payload, error) {
	return s.fetch(ctx, "/catalog/products/")
}

func (s *CatalogService) Product(ctx context.Context, styleCode string) (Payload, error) {
	return s.fetch(ctx, "/catalog/products/"+url.PathEscape(styleCode))
}

func (s *CatalogService) Variants(ctx context.Context, styleCode string) (Payload, error) {
	return s.fetch(ctx, "/catalog/products/"+url.PathEscape(styleCode)+"/variants")
}

func (s *CatalogService) Images(ctx context.Context, styleCode string) (Payload, error) {
	return s.fetch(ctx, "/catalog/products/"+url.PathEscape(styleCode)+"/images")
}

func (s *CatalogService) Colours(ctx context.Context) (Payload, error) {
	return s.fetch(ctx, "/catalog/colours")
}

func (s *CatalogService) Inventory(ctx context.Context, skuFilter string) (Payload, error) {
	return s.fetch(ctx, "/inventory/items/?skuFilter="+encodeComponent(skuFilter))
}

func (s *CatalogService) fetch(ctx context.Context, path string) (Payload, error) {
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Cache read failed")
		} else if ok {
			var cached Payload
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("subscription-key", s.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := s.client.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Payload{}, &UpstreamError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Details:    s.sanitize(body),
		}
	}
	if err != nil {
		return Payload{}, fmt.Errorf("failed to read upstream response: %w", err)
	}

	payload := Payload{
		Body: body,
		JSON: strings.Contains(resp.Header.Get("Content-Type"), "application/json") && json.Valid(body),
	}

	if s.cache != nil {
		if raw, err := json.Marshal(payload); err == nil {
			if err := s.cache.Set(ctx, path, raw, s.ttl); err != nil {
				s.log.WithError(err).WithField("path", path).Warn("Cache write failed")
			}
		}
	}
	return payload, nil
}

// sanitize keeps JSON details as they are and reduces anything else to
// plain text.
func (s *CatalogService) sanitize(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if json.Valid(body) {
		return string(body)
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(string(body))))
}

func statusText(resp *http.Response) string {
	if text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// encodeComponent escapes a query value the way browsers escape URI
// components: spaces become %20 rather than +.
func encodeComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
