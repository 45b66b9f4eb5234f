// Package restclient is the JSON over HTTP client shared by the exchange and
// lightning gateway adapters. A Client performs single attempts, Retry
// repeats them with exponential backoff for as long as they fail at the
// transport level.
package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/fiatln-daemon/pkg/circuitbreaker"
	"go.uber.org/ratelimit"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10
)

// APIError is a request the server answered and rejected. It's never
// retried.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Reason)
}

// IsAPIError tells whether err is, or wraps, an APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// AuthFunc returns the headers that authenticate a request to path with the
// given raw body.
type AuthFunc func(method, path string, body []byte) map[string]string

type Opts struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	// RateLimit is the max number of requests per second.
	RateLimit int
	Auth      AuthFunc
}

type Client struct {
	client    *resty.Client
	cb        *gobreaker.CircuitBreaker
	limiter   ratelimit.Limiter
	auth      AuthFunc
	connected atomic.Bool
}

func New(opts Opts) (*Client, error) {
	if len(opts.BaseURL) <= 0 {
		return nil, fmt.Errorf("missing base url")
	}
	if !strings.HasPrefix(opts.BaseURL, "http://") &&
		!strings.HasPrefix(opts.BaseURL, "https://") {
		return nil, fmt.Errorf("invalid base url %s: unknown scheme", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		client:  client,
		cb:      circuitbreaker.NewCircuitBreaker(opts.Name),
		limiter: ratelimit.New(rateLimit),
		auth:    opts.Auth,
	}, nil
}

// IsConnected tells whether the latest attempt got a response from the
// server.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do makes a single attempt. Any response with status code below 500 is
// final: 2xx are decoded into out, the others are returned as *APIError.
// Everything else is a transport error.
func (c *Client) Do(
	ctx context.Context, method, path string, in, out interface{},
) error {
	var body []byte
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = buf
	}

	c.limiter.Take()

	res, err := c.cb.Execute(func() (interface{}, error) {
		req := c.client.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}
		if c.auth != nil {
			req.SetHeaders(c.auth(method, path, body))
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf(
				"%s %s: server error %d", method, path, resp.StatusCode(),
			)
		}
		return resp, nil
	})
	if err != nil {
		c.connected.Store(false)
		return err
	}
	c.connected.Store(true)

	resp := res.(*resty.Response)
	if !resp.IsSuccess() {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Reason:     parseErrorReason(resp),
		}
	}
	if out == nil || len(resp.Body()) <= 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Reason:     fmt.Sprintf("malformed response: %s", err),
		}
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func parseErrorReason(resp *resty.Response) string {
	var body errorResponse
	if err := json.Unmarshal(resp.Body(), &body); err == nil && len(body.Error) > 0 {
		return body.Error
	}
	if len(resp.Body()) > 0 {
		return string(resp.Body())
	}
	return resp.Status()
}
