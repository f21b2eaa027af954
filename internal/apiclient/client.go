// internal/apiclient/client.go
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

const (
	DefaultBaseURL    = "http://localhost:4000"
	DefaultMaxRetries = 3
	defaultTimeout    = 3 * time.Minute
	maxErrorBody      = 4 << 10
)

var errRetriesExhausted = errors.New("failed to fetch after retries")

// StatusError is a non-2xx response from the proxy.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
	}
	return "API error: " + status
}

// Client talks to the curation proxy. Every request goes through the retry
// loop in Do.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries int
	maxAsset   int64
	sleep      func(ctx context.Context, d time.Duration) error
	log        *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithMaxAssetBytes bounds FetchAsset downloads.
func WithMaxAssetBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAsset = n
		}
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		http:       &http.Client{Timeout: defaultTimeout},
		maxRetries: DefaultMaxRetries,
		maxAsset:   DefaultMaxAssetBytes,
		sleep:      utils.SleepContext,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "apiclient")
	return c
}

// ResolveURL prefixes relative paths with the base URL; absolute http(s)
// URLs are returned unchanged.
func (c *Client) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// Do sends the request, retrying rate-limited responses and transport
// failures. Rate-limited attempts wait Retry-After seconds when present and
// 2^attempt seconds otherwise; transport failures always use 2^attempt. Any
// other status, success or not, is returned to the caller unchanged.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, header http.Header) (*http.Response, error) {
	target := c.ResolveURL(path)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		last := attempt == c.maxRetries-1

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			if !last {
				wait := backoff(attempt)
				c.log.WithError(err).WithFields(logrus.Fields{
					"path":    path,
					"attempt": attempt + 1,
					"wait":    wait.String(),
				}).Warn("Request failed, retrying")
				if err := c.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header.Get("Retry-After"), attempt)
			lastErr = &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if !last {
				c.log.WithFields(logrus.Fields{
					"path":    path,
					"attempt": attempt + 1,
					"max":     c.maxRetries,
					"wait":    wait.String(),
				}).Warn("Rate limited, waiting before retry")
				if err := c.sleep(ctx, wait); err != nil {
					return nil, err
				}
			}
			continue
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errRetriesExhausted
	}
	return nil, fmt.Errorf("%s %s failed after %d attempts: %w", method, path, c.maxRetries, lastErr)
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func retryAfter(value string, attempt int) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return backoff(attempt)
}

var jsonHeader = http.Header{
	"Content-Type": {"application/json"},
	"Accept":       {"application/json"},
}

// getJSON decodes a 2xx JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, jsonHeader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
