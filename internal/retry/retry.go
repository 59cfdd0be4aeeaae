package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxAttempts    = 3
	defaultJitterFraction = 0.30
	snippetLimit          = 200
)

type Sleeper func(ctx context.Context, d time.Duration) error

// Policy параметры повторов. Нулевые поля заменяются значениями по умолчанию.
type Policy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	MaxAttempts    int
	JitterFraction float64
	Sleep          Sleeper
	Now            func() time.Time
	Rand           func() float64
}

// ExhaustedError возвращается, когда все попытки закончились сетевой ошибкой.
type ExhaustedError struct {
	Cause    error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Transport http.RoundTripper, повторяющий запрос при 408/429/5xx и
// временных сетевых ошибках. Последний ответ с ретраибельным статусом
// отдаётся вызывающему как есть, чтобы клиент API разобрал тело ошибки сам.
type Transport struct {
	Base   http.RoundTripper
	Policy Policy
	Logger *slog.Logger
}

// NewTransport оборачивает base повторами по policy.
func NewTransport(base http.RoundTripper, policy Policy, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Policy: withDefaults(policy), Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	policy := withDefaults(t.Policy)
	ctx := req.Context()

	maxAttempts := policy.MaxAttempts
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// Тело нельзя перечитать, повторять нечего.
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		attemptReq, err := rewind(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.Base.RoundTrip(attemptReq)
		last := attempt >= maxAttempts

		if err != nil {
			if !isRetryableNetErr(ctx, err) {
				return nil, err
			}
			if last {
				return nil, &ExhaustedError{Cause: err, Attempts: attempt}
			}
			delay := policy.jitterDelay(policy.backoffDelay(attempt))
			t.logRetry(attempt+1, maxAttempts, 0, reasonForNetErr(err), delay, false, "")
			if err := policy.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if !isRetryableStatus(resp.StatusCode) || last {
			return resp, nil
		}

		snippet := drain(resp)
		retryAfter, usedRetryAfter := parseRetryAfter(resp.Header, policy.Now())
		delay := policy.jitterDelay(policy.backoffDelay(attempt))
		if usedRetryAfter {
			delay = min(retryAfter, policy.MaxDelay)
		}
		t.logRetry(attempt+1, maxAttempts, resp.StatusCode, reasonForStatus(resp.StatusCode), delay, usedRetryAfter, snippet)
		if err := policy.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// rewind готовит запрос к очередной попытке: первая идёт как есть,
// последующие получают свежую копию тела через GetBody.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func drain(resp *http.Response) string {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
	_, _ = io.Copy(io.Discard, resp.Body)
	return string(body)
}

func withDefaults(p Policy) Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = defaultMultiplier
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Rand == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		p.Rand = rng.Float64
	}
	return p
}

func (p Policy) backoffDelay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(max(attempt, 1)-1))
	return time.Duration(math.Min(delay, float64(p.MaxDelay)))
}

// jitterDelay разбрасывает задержку на ±JitterFraction.
func (p Policy) jitterDelay(delay time.Duration) time.Duration {
	if delay <= 0 || p.JitterFraction == 0 {
		return delay
	}
	factor := 1 + (p.Rand()*2-1)*p.JitterFraction
	return time.Duration(math.Max(float64(delay)*factor, 0))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(seconds, 0)) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func reasonForStatus(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate limit"
	case http.StatusRequestTimeout:
		return "timeout"
	}
	return "upstream 5xx"
}

func isRetryableNetErr(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

func reasonForNetErr(err error) string {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(err, syscall.ECONNRESET), strings.Contains(strings.ToLower(err.Error()), "connection reset"):
		return "connection reset"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "network error"
}

func (t *Transport) logRetry(attempt, maxAttempts, status int, reason string, delay time.Duration, usedRetryAfter bool, snippet string) {
	if t.Logger == nil {
		return
	}
	args := []any{
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.String("reason", reason),
		slog.Duration("retry_in", delay),
		slog.Bool("retry_after_used", usedRetryAfter),
	}
	if status > 0 {
		args = append(args, slog.Int("status", status))
	}
	if snippet != "" {
		args = append(args, slog.String("snippet", snippet))
	}
	t.Logger.Warn("retrying llm request", args...)
}
