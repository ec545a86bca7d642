package webclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NewDefault returns an HTTP client with sane timeouts.
func NewDefault(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, bytes.TrimSpace(body))
}

// Request describes one JSON call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

// DoJSON sends req with retries and returns the body of a 2xx response.
// Non-2xx responses surface as *HTTPError.
func DoJSON(ctx context.Context, hc *http.Client, attempts int, delay time.Duration, req Request) ([]byte, error) {
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		payload = b
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	status, body, err := DoWithRetry(ctx, attempts, delay, func() (int, []byte, error) {
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		hreq, err := http.NewRequestWithContext(ctx, method, req.URL, rdr)
		if err != nil {
			return 0, nil, fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			hreq.Header.Set("Content-Type", "application/json")
		}
		for k, v := range req.Headers {
			hreq.Header.Set(k, v)
		}
		resp, err := hc.Do(hreq)
		if err != nil {
			return 0, nil, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &HTTPError{StatusCode: status, Body: body}
	}
	return body, nil
}
