package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ClientConfig holds the connection settings shared by every HTTP client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// RetryBackoff is the pause before the first retry; it grows linearly
	// with each further attempt.
	RetryBackoff time.Duration
}

// jsonClient is the JSON-over-HTTP transport behind each collaborator.
type jsonClient struct {
	service  string
	cfg      ClientConfig
	http     *http.Client
	observer Observer
}

func newJSONClient(service string, cfg ClientConfig, observer Observer) *jsonClient {
	if observer == nil {
		observer = NoopObserver{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	return &jsonClient{
		service: service,
		cfg:     cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
		observer: observer,
	}
}

// do sends body (if non-nil) and decodes the response into out (if non-nil).
// Reads are retried; writes are not, since the remote may have applied them.
func (c *jsonClient) do(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	attempts := 1
	if method == http.MethodGet {
		attempts += c.cfg.MaxRetries
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && !c.pause(ctx, i) {
			break
		}
		lastErr = c.once(ctx, method, path, body, out)
		if lastErr == nil || errors.Is(lastErr, ErrRemoteNotFound) || ctx.Err() != nil {
			break
		}
	}

	c.observer.OnCallComplete(CallEvent{
		Service:   c.service,
		Operation: op,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   lastErr == nil,
		ErrorCode: errorCode(lastErr),
	})

	switch {
	case lastErr == nil, errors.Is(lastErr, ErrRemoteNotFound):
		return lastErr
	case ctx.Err() != nil:
		return fmt.Errorf("%s %s: %w", c.service, op, ErrTimeout)
	case isConnectionError(lastErr):
		return fmt.Errorf("%s %s: %w", c.service, op, ErrUnavailable)
	case attempts > 1:
		return fmt.Errorf("%s %s: %w: %v", c.service, op, ErrRetryExhausted, lastErr)
	default:
		return fmt.Errorf("%s %s: %w", c.service, op, lastErr)
	}
}

// pause waits before retry n, returning false if ctx ends first.
func (c *jsonClient) pause(ctx context.Context, n int) bool {
	t := time.NewTimer(time.Duration(n) * c.cfg.RetryBackoff)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *jsonClient) once(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrRemoteNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = respBody
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrRemoteNotFound):
		return "NOT_FOUND"
	case isConnectionError(err):
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}
