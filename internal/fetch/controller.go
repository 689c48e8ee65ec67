package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/telemetry"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("internal/fetch")

type Policy struct {
	// MaxRetries is the number of retries per host after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// FallbackThreshold is the number of consecutive connection failures
	// after which an alternate host is tried.
	FallbackThreshold int
	RequestsPerSecond float64
}

func PolicyFrom(cfg inventory.RetryConfig) Policy {
	p := Policy{
		MaxRetries:        5,
		BaseDelay:         cfg.BaseDelay.Std(),
		MaxDelay:          cfg.MaxDelay.Std(),
		FallbackThreshold: 2,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	if cfg.MaxRetries != nil {
		p.MaxRetries = *cfg.MaxRetries
	}
	if cfg.FallbackThreshold != nil {
		p.FallbackThreshold = *cfg.FallbackThreshold
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 8 * p.BaseDelay
	}
	return p
}

type Request struct {
	Method string
	// Path is appended to the current host. URL, when set, is used as is and
	// never falls back to another host.
	Path    string
	URL     string
	Query   url.Values
	Headers map[string]string
	Body    any
	// Check inspects a successful response, it may return a
	// TransientFetchError to retry or any other error to fail.
	Check func(res *resty.Response) error
}

type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Controller wraps the requests of one adapter with backoff on transient
// errors and a forward-only switch to alternate hosts. Retries of one
// request are sequential, the controller itself is safe for concurrent use.
type Controller struct {
	name    string
	session *resty.Client
	hosts   []string
	policy  Policy
	api     telemetry.API
	limiter *rate.Limiter
	sleep   SleepFunc

	mu sync.Mutex
	// current only moves forward, the winning host is kept for the run.
	current  int
	failures int
}

func NewController(name string, session *resty.Client, hosts []string, policy Policy, api telemetry.API) *Controller {
	c := &Controller{
		name:    name,
		session: session,
		policy:  policy,
		api:     api,
		sleep:   sleepContext,
	}
	for _, h := range hosts {
		c.hosts = append(c.hosts, strings.TrimRight(h, "/"))
	}
	if policy.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), 1)
	}
	return c
}

// SetSleep replaces the backoff sleeper, tests use it to skip delays.
func (c *Controller) SetSleep(fn SleepFunc) {
	c.sleep = fn
}

// Host is the host requests currently go to.
func (c *Controller) Host() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.hosts) == 0 {
		return ""
	}
	return c.hosts[c.current]
}

func (c *Controller) host() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.hosts) == 0 {
		return "", 0
	}
	return c.hosts[c.current], c.current
}

func (c *Controller) resetFailures(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx == c.current {
		c.failures = 0
	}
}

// connectionFailed counts a connection failure against host idx and
// switches host once the threshold is reached. It reports whether the
// request should move to another host.
func (c *Controller) connectionFailed(idx int) bool {
	c.mu.Lock()
	if idx != c.current {
		// another request already switched away from this host
		c.mu.Unlock()
		return true
	}
	c.failures++
	reached := c.failures >= c.policy.FallbackThreshold
	c.mu.Unlock()
	if !reached {
		return false
	}
	return c.switchHost(idx, "connection failures")
}

// switchHost moves from host idx to the next one, at most once per host.
func (c *Controller) switchHost(idx int, reason string) bool {
	c.mu.Lock()
	if idx != c.current {
		c.mu.Unlock()
		return true
	}
	if c.current+1 >= len(c.hosts) {
		c.mu.Unlock()
		return false
	}
	from := c.hosts[c.current]
	c.current++
	c.failures = 0
	to := c.hosts[c.current]
	c.mu.Unlock()

	c.api.ReportWarning(
		"host-switch",
		"source", c.name,
		"from", from,
		"to", to,
		"reason", reason,
	)
	return true
}

func (c *Controller) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = c.policy.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do executes req until it succeeds, fails fatally or runs out of retries
// on every host. Exhaustion is reported as a FatalFetchError.
func (c *Controller) Do(ctx context.Context, req Request) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "fetch:do")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", c.name),
		attribute.String("path", req.Path+req.URL),
	)

	b := c.newBackOff()
	attempts := 0
	retries := 0
	for {
		host, idx := c.host()
		target := req.URL
		if target == "" {
			target = host + req.Path
		}

		if c.limiter != nil {
			err := c.limiter.Wait(ctx)
			if err != nil {
				return nil, err
			}
		}

		attempts++
		res, err := c.attempt(ctx, target, req)
		if err == nil {
			c.resetFailures(idx)
			span.SetAttributes(attribute.Int("attempts", attempts))
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var transient *inventory.TransientFetchError
		if !errors.As(err, &transient) {
			err = fatalize(c.name, target, attempts, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "fatal fetch error")
			return nil, err
		}

		if transient.Connection && req.URL == "" {
			if c.connectionFailed(idx) {
				retries = 0
				b.Reset()
				continue
			}
		} else {
			c.resetFailures(idx)
		}

		if retries >= c.policy.MaxRetries {
			if req.URL == "" && c.switchHost(idx, "retries exhausted") {
				retries = 0
				b.Reset()
				continue
			}
			err = &inventory.FatalFetchError{
				Source:   c.name,
				URL:      target,
				Status:   transient.Status,
				Attempts: attempts,
				Err:      err,
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "retries exhausted")
			return nil, err
		}

		retries++
		delay := b.NextBackOff()
		c.api.ReportDebug(
			"retry",
			"source", c.name,
			"url", target,
			"attempt", attempts,
			"delay", delay,
			"err", err,
		)
		err = c.sleep(ctx, delay)
		if err != nil {
			return nil, err
		}
	}
}

func fatalize(source, target string, attempts int, err error) error {
	var fatal *inventory.FatalFetchError
	if errors.As(err, &fatal) {
		if fatal.Source == "" {
			fatal.Source = source
		}
		if fatal.URL == "" {
			fatal.URL = target
		}
		fatal.Attempts = attempts
		return fatal
	}
	return &inventory.FatalFetchError{Source: source, URL: target, Attempts: attempts, Err: err}
}

func (c *Controller) attempt(ctx context.Context, target string, req Request) (*resty.Response, error) {
	r := c.session.R().SetContext(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("content-type", "application/json")
		r.SetBody(req.Body)
	}
	method := req.Method
	if method == "" {
		method = resty.MethodGet
	}

	res, err := r.Execute(method, target)
	if err != nil {
		return nil, &inventory.TransientFetchError{URL: target, Connection: true, Err: err}
	}

	status := res.StatusCode()
	switch {
	case status == 429 || status >= 500:
		return nil, &inventory.TransientFetchError{URL: target, Status: status}
	case status >= 400:
		return nil, &inventory.FatalFetchError{
			Source: c.name,
			URL:    target,
			Status: status,
			Err:    errors.New(res.Status()),
		}
	}

	if req.Check != nil {
		err = req.Check(res)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
