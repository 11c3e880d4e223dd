// Package webhook delivers stored events as HTTP POST requests to a
// configured endpoint.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	orderflow "github.com/orderflow-io/orderflow"
)

// Publisher posts each event's payload to a single endpoint. The event's
// identity travels in X-Event-* headers.
type Publisher struct {
	client         *http.Client
	url            string
	defaultHeaders map[string]string
}

// Option configures a webhook Publisher.
type Option func(*Publisher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Publisher) {
		p.client = client
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.client.Timeout = d
	}
}

// WithHeaders sets headers added to every request.
func WithHeaders(headers map[string]string) Option {
	return func(p *Publisher) {
		for k, v := range headers {
			p.defaultHeaders[k] = v
		}
	}
}

// New creates a Publisher posting to the given URL.
func New(url string, opts ...Option) *Publisher {
	p := &Publisher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		url: url,
		defaultHeaders: map[string]string{
			"Content-Type": "application/json",
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish POSTs one event to the endpoint. Any non-2xx response is an error.
func (p *Publisher) Publish(ctx context.Context, event orderflow.StoredEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(event.Data))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	for k, v := range p.defaultHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Event-ID", event.ID)
	req.Header.Set("X-Event-Type", event.Type)
	req.Header.Set("X-Stream-ID", event.StreamID)
	req.Header.Set("X-Event-Version", strconv.FormatInt(event.Version, 10))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed for %s: %w", p.url, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("webhook: server error %d from %s", resp.StatusCode, p.url)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: client error %d from %s", resp.StatusCode, p.url)
	}
	return nil
}

// Close is a no-op; idle connections are managed by the HTTP client.
func (p *Publisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
