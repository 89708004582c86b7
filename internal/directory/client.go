// Package directory talks to the spreadsheet-backed service that owns applicant data.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 15 * time.Second

	// MaxResponseSize caps directory responses; a full roster export is well below it.
	MaxResponseSize = 32 * 1024 * 1024

	UserAgent = "foster-pipeline-api/1.0"
)

var (
	// ErrUnsuccessful is returned when the service answers with success=false.
	ErrUnsuccessful = errors.New("directory: request unsuccessful")
	// ErrMalformed is returned when a response does not have the expected shape.
	ErrMalformed = errors.New("directory: malformed response")
)

// HTTPError is a non-2xx answer from the directory.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directory: %s responded %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("directory: %s responded %d: %s", e.URL, e.StatusCode, e.Message)
}

type httpClient struct {
	client *http.Client
	logger *zap.Logger
}

func newHTTPClient(timeout time.Duration, logger *zap.Logger) *httpClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpClient{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// do sends body (if any) as JSON and returns the raw response body of a 2xx answer.
func (c *httpClient) do(ctx context.Context, method, target string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("directory: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("directory: create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory: %s %s: %w", method, redact(target), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("directory: response of %d bytes exceeds limit", resp.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("directory: read response: %w", err)
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("directory: response exceeds %d bytes", MaxResponseSize)
	}

	c.logger.Debug("directory call",
		zap.String("method", method),
		zap.String("url", redact(target)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: redact(target), Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage pulls "error" out of a JSON body, or returns a short text prefix.
func errorMessage(body []byte) string {
	var envelope struct {
		Error interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		if s, ok := envelope.Error.(string); ok {
			return s
		}
		raw, _ := json.Marshal(envelope.Error)
		return string(raw)
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// redact hides the shared script key from logs and errors.
func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
