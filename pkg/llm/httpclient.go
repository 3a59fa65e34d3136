package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with bounded retries on 5xx responses and
// transport errors. Request bodies are buffered so retries can replay them.
type HTTPClient struct {
	client     *http.Client
	maxRetries int
}

// NewHTTPClient creates a retrying HTTP client.
func NewHTTPClient(timeout time.Duration, maxRetries int) *HTTPClient {
	return &HTTPClient{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// DoJSON executes the request, retrying server errors, and decodes the
// response body into out.
func (c *HTTPClient) DoJSON(req *http.Request, out any) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
		_ = req.Body.Close()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, payload)
		} else {
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, payload)
			}
			if out == nil {
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)
		}

		if attempt < c.maxRetries {
			select {
			case <-req.Context().Done():
				return req.Context().Err()
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
			}
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
