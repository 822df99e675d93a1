package idface

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"access-sync/core/metrics"
	"access-sync/core/reconcile"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	endpointLogin      = "login.fcgi"
	endpointLogout     = "logout.fcgi"
	endpointLoad       = "load_objects.fcgi"
	endpointSystemInfo = "system_information.fcgi"

	breakerName = "idface"
)

// Client talks to one iDFace device over its fcgi JSON API.
// It logs in lazily, reuses the session until it expires and is safe for concurrent use.
type Client struct {
	baseURL    string
	login      string
	password   string
	sessionTTL time.Duration
	timeout    time.Duration

	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logins  singleflight.Group
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	session string
	expires time.Time
}

// NewClient creates a device client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		baseURL:    cfg.BaseURL(),
		login:      cfg.Login,
		password:   cfg.Password,
		sessionTTL: cfg.sessionTTL(),
		timeout:    cfg.timeout(),
		http:       &http.Client{Timeout: cfg.timeout()},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With(zap.String("device", cfg.BaseURL())),
		now:        time.Now,
	}

	failures := cfg.breakerFailures()
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.breakerTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only transport failures count against the device. A caller giving up is not one.
		IsSuccessful: func(err error) bool {
			if err == nil || isContextErr(err) {
				return true
			}
			return !errors.Is(err, reconcile.ErrDeviceUnreachable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Device circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return c
}

// LoadObjects returns the raw body of load_objects.fcgi for one object collection
// (areas, users, access_rules, time_zones, access_logs).
func (c *Client) LoadObjects(ctx context.Context, object string) ([]byte, error) {
	return c.call(ctx, endpointLoad, map[string]string{"object": object})
}

// SystemInfo returns the decoded system_information.fcgi payload.
func (c *Client) SystemInfo(ctx context.Context) (map[string]any, error) {
	body, err := c.call(ctx, endpointSystemInfo, struct{}{})
	if err != nil {
		return nil, err
	}
	info := map[string]any{}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", reconcile.ErrDeviceProtocol, endpointSystemInfo, err)
	}
	return info, nil
}

// Close ends the current session, if any. Logout failures are logged and ignored.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = ""
	c.expires = time.Time{}
	c.mu.Unlock()

	if session == "" {
		return nil
	}
	if _, err := c.post(ctx, endpointLogout, session, nil); err != nil {
		c.logger.Warn("Device logout failed", zap.Error(err))
	}
	return nil
}

// call performs an authenticated request. A rejected session is dropped so the
// next call logs in again.
func (c *Client) call(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, endpoint, session, payload)
	if errors.Is(err, reconcile.ErrDeviceAuth) {
		c.dropSession(session)
	}
	return body, err
}

func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.session != "" && c.now().Before(c.expires) {
		session := c.session
		c.mu.Unlock()
		return session, nil
	}
	c.mu.Unlock()

	// The shared login is detached from any one caller's cancellation.
	ch := c.logins.DoChan("login", func() (any, error) {
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.doLogin(loginCtx)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", endpointLogin, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) doLogin(ctx context.Context) (string, error) {
	body, err := c.post(ctx, endpointLogin, "", map[string]string{
		"login":    c.login,
		"password": c.password,
	})
	if err != nil {
		if errors.Is(err, reconcile.ErrDeviceProtocol) {
			return "", fmt.Errorf("%w: login rejected: %v", reconcile.ErrDeviceAuth, err)
		}
		return "", err
	}

	var resp struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode login response: %v", reconcile.ErrDeviceProtocol, err)
	}
	if resp.Session == "" {
		return "", fmt.Errorf("%w: login returned no session", reconcile.ErrDeviceAuth)
	}

	c.mu.Lock()
	c.session = resp.Session
	c.expires = c.now().Add(c.sessionTTL)
	c.mu.Unlock()

	c.logger.Debug("Device session established")
	return resp.Session, nil
}

func (c *Client) dropSession(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == session {
		c.session = ""
		c.expires = time.Time{}
	}
}

// post sends one rate limited request through the circuit breaker.
func (c *Client) post(ctx context.Context, endpoint, session string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", endpoint, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v", reconcile.ErrDeviceUnreachable, endpoint, err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, session, payload)
	})

	switch {
	case err == nil:
		metrics.DeviceRequests.WithLabelValues(endpoint, "success").Inc()
		return body, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.DeviceRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, fmt.Errorf("%w: %s: %v", reconcile.ErrDeviceUnreachable, endpoint, err)
	case isContextErr(err):
		metrics.DeviceRequests.WithLabelValues(endpoint, "cancelled").Inc()
		return nil, err
	default:
		metrics.DeviceRequests.WithLabelValues(endpoint, "failure").Inc()
		return nil, err
	}
}

func (c *Client) do(ctx context.Context, endpoint, session string, payload any) ([]byte, error) {
	target := c.baseURL + "/" + endpoint
	if session != "" {
		target += "?" + url.Values{"session": {session}}.Encode()
	}

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", endpoint, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v", reconcile.ErrDeviceUnreachable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read %s response: %w", endpoint, ctx.Err())
		}
		return nil, fmt.Errorf("%w: read %s response: %v", reconcile.ErrDeviceUnreachable, endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s returned %d", reconcile.ErrDeviceAuth, endpoint, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: %s returned %d", reconcile.ErrDeviceUnreachable, endpoint, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s returned %d: %s", reconcile.ErrDeviceProtocol, endpoint, resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

// BreakerState reports the breaker state (closed, half-open, open).
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
