// Package circuit guards outbound calls per service key with a closed/open/half-open
// breaker and an independent rate-limit backoff window.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/common/metrics"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

var ErrCircuitOpen = errors.New("circuit open")

// ErrChallengePage is returned by operations that received a 2xx bot
// challenge instead of content. It always counts as blocking.
var ErrChallengePage = errors.New("bot challenge page")

var (
	blockingSignatures = []string{
		"captcha",
		"403",
		"forbidden",
		"unusual traffic",
		"bot detection",
		"access denied",
		"cloudflare",
		"checking your browser",
	}
	rateLimitSignatures = []string{
		"429",
		"too many requests",
		"rate limit",
		"quota exceeded",
		"throttle",
	}
)

type Options struct {
	FailureThreshold       int
	SuccessThreshold       int
	OpenDuration           time.Duration
	RateLimitBase          time.Duration
	RateLimitMaxMultiplier int
}

func DefaultOptions() Options {
	return Options{
		FailureThreshold:       5,
		SuccessThreshold:       3,
		OpenDuration:           60 * time.Second,
		RateLimitBase:          30 * time.Second,
		RateLimitMaxMultiplier: 32,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = d.FailureThreshold
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = d.SuccessThreshold
	}
	if o.OpenDuration <= 0 {
		o.OpenDuration = d.OpenDuration
	}
	if o.RateLimitBase <= 0 {
		o.RateLimitBase = d.RateLimitBase
	}
	if o.RateLimitMaxMultiplier <= 0 {
		o.RateLimitMaxMultiplier = d.RateLimitMaxMultiplier
	}
	return o
}

type serviceState struct {
	state                State
	failures             int
	successes            int
	consecutiveSuccesses int
	lastFailure          time.Time
	lastSuccess          time.Time
	openedAt             time.Time

	rateLimitUntil      time.Time
	rateLimitMultiplier int
}

// Snapshot is a copy of one service's state.
type Snapshot struct {
	Service              string     `json:"service"`
	State                State      `json:"state"`
	Failures             int        `json:"failures"`
	Successes            int        `json:"successes"`
	ConsecutiveSuccesses int        `json:"consecutiveSuccesses"`
	LastFailure          *time.Time `json:"lastFailure,omitempty"`
	LastSuccess          *time.Time `json:"lastSuccess,omitempty"`
	OpenedAt             *time.Time `json:"openedAt,omitempty"`
	RateLimitedUntil     *time.Time `json:"rateLimitedUntil,omitempty"`
	RateLimitMultiplier  int        `json:"rateLimitMultiplier"`
}

// Registry holds breaker state for every service key seen by this process.
// State is in-memory only; each worker process trips independently.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	now      func() time.Time
	logger   logger.Logger
	services map[string]*serviceState
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(r *Registry) { r.logger = log }
}

func WithOptions(opts Options) Option {
	return func(r *Registry) { r.opts = opts.withDefaults() }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		opts:     DefaultOptions(),
		now:      time.Now,
		logger:   logger.NewNoOpLogger(),
		services: make(map[string]*serviceState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// get must be called with r.mu held.
func (r *Registry) get(service string) *serviceState {
	s, ok := r.services[service]
	if !ok {
		s = &serviceState{state: StateClosed}
		r.services[service] = s
	}
	return s
}

// transition must be called with r.mu held.
func (r *Registry) transition(service string, s *serviceState, to State, now time.Time) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	switch to {
	case StateOpen:
		s.openedAt = now
		s.consecutiveSuccesses = 0
	case StateHalfOpen:
		s.consecutiveSuccesses = 0
	case StateClosed:
		s.failures = 0
		s.consecutiveSuccesses = 0
		s.openedAt = time.Time{}
	}

	metrics.CircuitTransitions.WithLabelValues(metricLabel(service), string(to)).Inc()
	fields := map[string]interface{}{
		"service":  service,
		"from":     string(from),
		"to":       string(to),
		"failures": s.failures,
	}
	if to == StateOpen {
		r.logger.Warn("circuit opened", fields)
	} else {
		r.logger.Info("circuit state changed", fields)
	}
}

// CanMakeRequest reports whether a call to service is admitted right now.
// An open circuit whose cool-down has elapsed moves to half-open here.
func (r *Registry) CanMakeRequest(service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := r.get(service)

	if now.Before(s.rateLimitUntil) {
		metrics.CircuitRejections.WithLabelValues(metricLabel(service), "rate_limited").Inc()
		return false
	}

	switch s.state {
	case StateOpen:
		if now.Sub(s.openedAt) >= r.opts.OpenDuration {
			r.transition(service, s, StateHalfOpen, now)
			return true
		}
		metrics.CircuitRejections.WithLabelValues(metricLabel(service), "open").Inc()
		return false
	default:
		return true
	}
}

func (r *Registry) RecordSuccess(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := r.get(service)
	s.successes++
	s.lastSuccess = now
	s.rateLimitUntil = time.Time{}
	s.rateLimitMultiplier = 0

	switch s.state {
	case StateHalfOpen:
		s.consecutiveSuccesses++
		if s.consecutiveSuccesses >= r.opts.SuccessThreshold {
			r.transition(service, s, StateClosed, now)
		}
	case StateClosed:
		s.consecutiveSuccesses++
		if s.failures > 0 {
			s.failures--
		}
	}
}

// RecordFailure classifies err: rate-limit signatures only extend the backoff window,
// blocking signatures force the circuit open, anything else counts toward the threshold.
func (r *Registry) RecordFailure(service string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := r.get(service)

	if IsRateLimitError(err) {
		if s.rateLimitMultiplier == 0 {
			s.rateLimitMultiplier = 1
		} else if s.rateLimitMultiplier < r.opts.RateLimitMaxMultiplier {
			s.rateLimitMultiplier *= 2
			if s.rateLimitMultiplier > r.opts.RateLimitMaxMultiplier {
				s.rateLimitMultiplier = r.opts.RateLimitMaxMultiplier
			}
		}
		backoff := r.opts.RateLimitBase * time.Duration(s.rateLimitMultiplier)
		s.rateLimitUntil = now.Add(backoff)
		r.logger.Warn("rate limited, backing off", map[string]interface{}{
			"service":    service,
			"backoff":    backoff.String(),
			"multiplier": s.rateLimitMultiplier,
		})
		return
	}

	s.failures++
	s.lastFailure = now
	s.consecutiveSuccesses = 0

	if IsBlockingError(err) {
		r.logger.Warn("blocking detected", map[string]interface{}{
			"service": service,
			"error":   errString(err),
		})
		if s.state == StateOpen {
			s.openedAt = now
			return
		}
		r.transition(service, s, StateOpen, now)
		return
	}

	switch s.state {
	case StateHalfOpen:
		r.transition(service, s, StateOpen, now)
	case StateClosed:
		if s.failures >= r.opts.FailureThreshold {
			r.transition(service, s, StateOpen, now)
		}
	}
}

// RecommendedDelay is how long a caller should wait before service admits requests again.
func (r *Registry) RecommendedDelay(service string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := r.get(service)

	var delay time.Duration
	if now.Before(s.rateLimitUntil) {
		delay = s.rateLimitUntil.Sub(now)
	}
	if s.state == StateOpen {
		if remaining := r.opts.OpenDuration - now.Sub(s.openedAt); remaining > delay {
			delay = remaining
		}
	}
	return delay
}

func (r *Registry) State(service string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(service).state
}

func (r *Registry) Reset(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, service)
}

func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = make(map[string]*serviceState)
}

// Snapshot returns every known service sorted by key.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.services))
	for name, s := range r.services {
		snap := Snapshot{
			Service:              name,
			State:                s.state,
			Failures:             s.failures,
			Successes:            s.successes,
			ConsecutiveSuccesses: s.consecutiveSuccesses,
			LastFailure:          timePtr(s.lastFailure),
			LastSuccess:          timePtr(s.lastSuccess),
			OpenedAt:             timePtr(s.openedAt),
			RateLimitedUntil:     timePtr(s.rateLimitUntil),
			RateLimitMultiplier:  s.rateLimitMultiplier,
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// statusCoder is implemented by HTTP status errors. Their status code is
// authoritative; the message may contain a URL with arbitrary digits.
type statusCoder interface {
	HTTPStatus() int
}

// challengeMarkers are the blocking signatures that mean something inside a
// page body. Status words and CDN names show up on ordinary pages.
var challengeMarkers = []string{
	"captcha",
	"unusual traffic",
	"bot detection",
	"checking your browser",
	"complete the following challenge",
	"are you a robot",
}

// embeddedCaptchas are form widgets a normal contact page may carry.
var embeddedCaptchas = strings.NewReplacer("recaptcha", "", "hcaptcha", "", "turnstile", "")

// BodyIndicatesBlock reports whether a successful response is really a bot
// challenge.
func BodyIndicatesBlock(body string) bool {
	if body == "" {
		return false
	}
	return containsAny(embeddedCaptchas.Replace(strings.ToLower(body)), challengeMarkers)
}

func IsBlockingError(err error) bool {
	if errors.Is(err, ErrChallengePage) {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() == 403
	}
	return containsAny(errString(err), blockingSignatures)
}

func IsRateLimitError(err error) bool {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() == 429
	}
	return containsAny(errString(err), rateLimitSignatures)
}

func containsAny(msg string, needles []string) bool {
	if msg == "" {
		return false
	}
	msg = strings.ToLower(msg)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// errString drops the request URL from transport errors; URLs carry ports and
// query strings that can look like status codes.
func errString(err error) string {
	if err == nil {
		return ""
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err.Error()
	}
	return err.Error()
}

// metricLabel drops the per-host suffix of keys like "website:hotel.com" so
// label cardinality stays bounded.
func metricLabel(service string) string {
	if i := strings.IndexByte(service, ':'); i > 0 {
		return service[:i]
	}
	return service
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type execConfig[T any] struct {
	fallback    T
	hasFallback bool
	throwOnOpen bool
}

type ExecOption[T any] func(*execConfig[T])

// WithFallback returns v instead of ErrCircuitOpen when the call is not admitted.
func WithFallback[T any](v T) ExecOption[T] {
	return func(c *execConfig[T]) {
		c.fallback = v
		c.hasFallback = true
	}
}

// WithThrowOnOpen forces ErrCircuitOpen even when a fallback is set.
func WithThrowOnOpen[T any]() ExecOption[T] {
	return func(c *execConfig[T]) { c.throwOnOpen = true }
}

// Execute runs op under the breaker for service. A refused call returns the fallback
// if one was supplied, otherwise an error wrapping ErrCircuitOpen. Errors from op are
// recorded and returned unchanged.
func Execute[T any](ctx context.Context, r *Registry, service string, op func(context.Context) (T, error), opts ...ExecOption[T]) (T, error) {
	var cfg execConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	if !r.CanMakeRequest(service) {
		if cfg.hasFallback && !cfg.throwOnOpen {
			return cfg.fallback, nil
		}
		var zero T
		return zero, fmt.Errorf("%w: %s (retry in %s)", ErrCircuitOpen, service, r.RecommendedDelay(service).Round(time.Second))
	}

	result, err := op(ctx)
	if err != nil {
		r.RecordFailure(service, err)
		return result, err
	}
	r.RecordSuccess(service)
	return result, nil
}
