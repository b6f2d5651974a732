// Package transport issues authenticated API calls with a bounded
// retry/backoff policy and normalizes failures into typed errors.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"verifyctl/internal/clock"
	"verifyctl/internal/logger"
	"verifyctl/pkg/api"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	HeaderClientVersion = "X-Client-Version"
	HeaderRequestID     = "X-Request-Id"
)

// Options holds optional client settings. Zero values get defaults.
type Options struct {
	ClientVersion string
	Timeout       time.Duration // per HTTP call (default: 30s)
	MaxRetries    int           // retries after the first attempt (default: 3, NoRetries for none)
	Logger        *slog.Logger
	Clock         clock.Clock
	HTTPClient    *http.Client
}

// Client handles API calls to the verification service.
type Client struct {
	baseURL    string
	token      string
	version    string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
	clock      clock.Clock
}

// New creates a new client with the given base URL and token.
func New(baseURL, token string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = DefaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		version:    opts.ClientVersion,
		maxRetries: opts.MaxRetries,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		clock:      opts.Clock,
	}
}

const (
	DefaultMaxRetries = 3
	NoRetries         = -1
)

// Do sends method+path with an optional JSON body and decodes the response into out.
// out may be nil; a 204 response leaves it untouched.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	ctx, span := otel.Tracer("verifyctl/transport").Start(ctx, method+" "+routeOf(path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", routeOf(path)),
		),
	)
	defer span.End()

	var (
		lastErr    error
		lastReqErr *RequestError
		attempts   int
	)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		attempts = attempt + 1
		requestID := uuid.NewString()
		log := logger.FromContext(logger.WithRequestID(ctx, requestID), c.logger)

		resp, err := c.send(ctx, method, path, payload, requestID)

		var wait time.Duration
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				span.RecordError(ctxErr)
				span.SetStatus(codes.Error, ctxErr.Error())
				return fmt.Errorf("%s %s: %w", method, path, ctxErr)
			}
			lastErr = err
			wait = Backoff(attempt)
			log.Debug("request failed", "attempt", attempts, "error", err)

		case resp.StatusCode == http.StatusTooManyRequests:
			lastReqErr = decodeError(resp)
			wait = RetryAfter(resp.Header)
			log.Debug("rate limited", "attempt", attempts, "status", resp.StatusCode)

		case resp.StatusCode >= 500:
			lastReqErr = decodeError(resp)
			wait = Backoff(attempt)
			log.Debug("server error", "attempt", attempts, "status", resp.StatusCode)

		case resp.StatusCode >= 400:
			reqErr := decodeError(resp)
			span.SetAttributes(attribute.Int("http.attempts", attempts), attribute.Int("http.status_code", resp.StatusCode))
			span.RecordError(reqErr)
			span.SetStatus(codes.Error, reqErr.Error())
			return reqErr

		default:
			span.SetAttributes(attribute.Int("http.attempts", attempts), attribute.Int("http.status_code", resp.StatusCode))
			return decodeBody(resp, out)
		}

		if attempt == c.maxRetries {
			break
		}

		log.Debug("retrying request", "attempt", attempts, "wait", wait)
		if err := c.clock.Sleep(ctx, wait); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	span.SetAttributes(attribute.Int("http.attempts", attempts))
	if lastReqErr != nil {
		span.RecordError(lastReqErr)
		span.SetStatus(codes.Error, lastReqErr.Error())
		return lastReqErr
	}
	netErr := &NetworkError{Attempts: attempts, Err: lastErr}
	span.RecordError(netErr)
	span.SetStatus(codes.Error, netErr.Error())
	return netErr
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, requestID string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderClientVersion, c.version)
	httpReq.Header.Set(HeaderRequestID, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func decodeBody(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) *RequestError {
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	reqErr := &RequestError{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get(HeaderRequestID),
	}

	var body api.ErrorResponse
	if err := json.Unmarshal(respBody, &body); err == nil && (body.Error != "" || body.Message != "") {
		reqErr.Code = body.Error
		reqErr.Message = body.Message
		if body.RequestID != "" {
			reqErr.RequestID = body.RequestID
		}
		return reqErr
	}

	reqErr.Message = strings.TrimSpace(string(respBody))
	return reqErr
}

// routeOf strips the query string so spans are named by route.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
