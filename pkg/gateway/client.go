package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/pkg/promlib"
	"github.com/smsflow/smsflow/pkg/timer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Client for the messaging provider REST API
type Client struct {
	baseURL    string
	apiKey     string
	header     string
	sender     string
	httpClient *http.Client
	timer      timer.Timer

	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Option ...
type Option func(c *Client)

// WithHTTPClient ...
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimer ...
func WithTimer(t timer.Timer) Option {
	return func(c *Client) {
		c.timer = t
	}
}

// NewClient ...
func NewClient(conf config.GatewayConfig, options ...Option) *Client {
	dialer := &net.Dialer{
		Timeout:   conf.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		apiKey:  conf.APIKey,
		header:  conf.APIKeyHeader,
		sender:  conf.DefaultSender,
		httpClient: &http.Client{
			Timeout: conf.RequestTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: conf.ConnectTimeout,
				MaxIdleConnsPerHost: 10,
			},
		},
		timer: timer.New(),

		maxAttempts: conf.MaxAttempts,
		baseBackoff: conf.BaseBackoff,
		maxBackoff:  conf.MaxBackoff,
	}
	if c.header == "" {
		c.header = "Authorization"
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 3
	}

	for _, fn := range options {
		fn(c)
	}
	return c
}

// ListMessages returns one page of messages
func (c *Client) ListMessages(ctx context.Context, params ListParams) (MessagePage, error) {
	var page MessagePage
	err := c.do(ctx, http.MethodGet, "/messages", listQuery(params), nil, &page)
	return page, err
}

// ListConversations returns one page of conversations
func (c *Client) ListConversations(ctx context.Context, params ListParams) (ConversationPage, error) {
	var page ConversationPage
	err := c.do(ctx, http.MethodGet, "/conversations", listQuery(params), nil, &page)
	return page, err
}

// SendMessage sends from the configured default sender when req.From is empty
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.From == "" {
		req.From = c.sender
	}
	var resp struct {
		Data SendResult `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, "/messages", nil, req, &resp)
	return resp.Data, err
}

func listQuery(params ListParams) url.Values {
	q := url.Values{}
	if params.Cursor != "" {
		q.Set("cursor", params.Cursor)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if !params.CreatedAfter.IsZero() {
		q.Set("created_after", params.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if !params.CreatedBefore.IsZero() {
		q.Set("created_before", params.CreatedBefore.UTC().Format(time.RFC3339))
	}
	return q
}

type attemptError struct {
	err        error
	retryable  bool
	retryAfter time.Duration
}

func (c *Client) do(
	ctx context.Context, method string, path string, query url.Values, body interface{}, out interface{},
) error {
	ctx, span := otellib.StartSpan(ctx, "gateway "+method+" "+path,
		attribute.String("http.method", method),
		attribute.String("http.target", path),
	)
	defer span.End()

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: marshal request: %w", err)
		}
		payload = data
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			var ae *attemptError
			if errors.As(lastErr, &ae) && ae.retryAfter > 0 {
				wait = ae.retryAfter
				if c.maxBackoff > 0 && wait > c.maxBackoff {
					wait = c.maxBackoff
				}
			}
			otellib.Extract(ctx).Warn("retrying provider request",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			if err := c.timer.Sleep(ctx, wait); err != nil {
				return err
			}
		}

		err := c.attempt(ctx, method, target, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var ae *attemptError
		if !errors.As(err, &ae) || !ae.retryable {
			break
		}
	}

	span.SetStatus(codes.Error, lastErr.Error())
	var ae *attemptError
	if errors.As(lastErr, &ae) {
		return ae.err
	}
	return lastErr
}

func (e *attemptError) Error() string {
	return e.err.Error()
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseBackoff << uint(attempt-1)
	if c.maxBackoff > 0 && d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

func (c *Client) attempt(
	ctx context.Context, method string, target string, path string, payload []byte, out interface{},
) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set(c.header, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.timer.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		promlib.GatewayRequests.WithLabelValues(method, path, "error").Observe(c.timer.Now().Sub(start).Seconds())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &attemptError{
			err:       fmt.Errorf("gateway: %s %s: %w", method, path, err),
			retryable: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	promlib.GatewayRequests.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).
		Observe(c.timer.Now().Sub(start).Seconds())

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &attemptError{
			err:       fmt.Errorf("gateway: read response: %w", err),
			retryable: true,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
		return &attemptError{
			err:        perr,
			retryable:  perr.Retryable(),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.timer.Now()),
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

// parseRetryAfter accepts both delay seconds and an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
