// Package apiclient talks to the remote commerce API: catalog, payments,
// analytics and forecasting.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxBody caps any response the client will buffer.
const DefaultMaxBody = 10 << 20

type Client struct {
	base    string
	http    *http.Client
	reads   *gobreaker.CircuitBreaker[[]byte]
	maxBody int64
}

// New builds a client for an already resolved base URL (see
// config.ResolveAPIBase). timeout bounds every request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:    baseURL,
		maxBody: DefaultMaxBody,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		reads: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "commerce-api-reads",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// a 4xx means the API is up and said no
			IsSuccessful: func(err error) bool {
				return err == nil || IsClientError(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("circuit %s: %s -> %s", name, from, to)
			},
		}),
	}
}

func (c *Client) BaseURL() string { return c.base }

// getJSON goes through the read breaker. Writes never do: a checkout must
// reach the API or fail on its own.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.reads.Execute(func() ([]byte, error) {
		req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return nil, err
		}
		b, _, err := c.do(req)
		return b, err
	})
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var payload io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	body, _, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(body, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, nil, fmt.Errorf("%w: %s %s: body exceeds %d bytes", ErrMalformed, req.Method, req.URL.Path, c.maxBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, statusError(resp.StatusCode, body)
	}
	return body, resp.Header, nil
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}
