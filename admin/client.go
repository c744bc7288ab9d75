package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/cache"
	"github.com/decorstore/cachekit/logger"
)

const defaultRetries = 4

// Error is returned by Client for transport failures and non-2xx responses.
type Error struct {
	URL    string
	Method string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client talks to a running admin Server.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	retries int
	backoff time.Duration
	logger  logger.Logger
}

// NewClient returns a Client for the server at baseURL, e.g. http://localhost:8081.
func NewClient(log logger.Logger, baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		retries: defaultRetries,
		backoff: 150 * time.Millisecond,
		logger:  log.WithPrefix("[admin-client]"),
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.EOF)
	}
	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) url(p string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing base url")
	}
	u.Path = path.Join("/", u.Path, p)
	return u.String(), nil
}

// Do sends payload as JSON and decodes a 2xx response into response when non-nil.
// Connection resets, refusals and 408/429/502/503/504 are retried with exponential
// backoff.
func (c *Client) Do(ctx context.Context, method, p string, payload any, response any) error {
	u, err := c.url(p)
	if err != nil {
		return &Error{URL: c.baseURL, Method: method, Err: err}
	}
	var body []byte
	if payload != nil {
		if body, err = json.Marshal(payload); err != nil {
			return &Error{URL: u, Method: method, Err: errors.Wrap(err, "encoding payload")}
		}
	}
	var resp *http.Response
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return &Error{URL: u, Method: method, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		c.logger.Trace("sending request: %s %s", method, u)
		resp, err = c.client.Do(req)
		if attempt < c.retries && shouldRetry(resp, err) {
			if resp != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			wait := c.backoff << attempt
			c.logger.Debug("retryable failure on %s %s, retrying in %s", method, u, wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &Error{URL: u, Method: method, Err: err}
		}
		break
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{URL: u, Method: method, Status: resp.StatusCode, Err: errors.Wrap(err, "reading response")}
	}
	c.logger.Debug("response status: %s", resp.Status)
	if resp.StatusCode > 299 {
		var apiErr errorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &Error{URL: u, Method: method, Status: resp.StatusCode, Body: string(respBody), Err: errors.New(msg)}
	}
	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return &Error{URL: u, Method: method, Status: resp.StatusCode, Body: string(respBody), Err: errors.Wrap(err, "decoding response")}
		}
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	return h, c.Do(ctx, http.MethodGet, BasePath+"/health", nil, &h)
}

func (c *Client) Statistics(ctx context.Context) (cache.Statistics, error) {
	var st cache.Statistics
	return st, c.Do(ctx, http.MethodGet, BasePath+"/cache/statistics", nil, &st)
}

func (c *Client) Keys(ctx context.Context) ([]cache.KeyInfo, error) {
	var keys []cache.KeyInfo
	return keys, c.Do(ctx, http.MethodGet, BasePath+"/cache/keys", nil, &keys)
}

func (c *Client) Redis(ctx context.Context) (RedisStatus, error) {
	var st RedisStatus
	return st, c.Do(ctx, http.MethodGet, BasePath+"/redis", nil, &st)
}

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	return d, c.Do(ctx, http.MethodGet, BasePath+"/dashboard", nil, &d)
}

// Clear empties both caches. A non-empty prefix clears only keys starting with it.
func (c *Client) Clear(ctx context.Context, prefix string) (string, error) {
	p := BasePath + "/cache/clear"
	if prefix != "" {
		p += "/" + prefix
	}
	var msg messageResponse
	return msg.Message, c.Do(ctx, http.MethodPost, p, nil, &msg)
}

func (c *Client) WarmUp(ctx context.Context) (WarmupResult, error) {
	var res WarmupResult
	return res, c.Do(ctx, http.MethodPost, BasePath+"/cache/warmup", nil, &res)
}
