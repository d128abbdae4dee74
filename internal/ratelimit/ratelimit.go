// Package ratelimit applies named fixed-window policies over a shared counter
// store.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"fareradar/internal/storage"
)

// Policy names used by the HTTP API.
const (
	PolicyPublic = "public"
	PolicySearch = "search"
	PolicyTrack  = "track"
)

// Policy is a fixed-window limit.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicies returns the built-in policies.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyPublic: {Limit: 60, Window: time.Minute},
		PolicySearch: {Limit: 20, Window: time.Minute},
		PolicyTrack:  {Limit: 120, Window: time.Minute},
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter checks requests against named policies.
type Limiter struct {
	counter  storage.WindowCounter
	keys     storage.Keyspace
	policies map[string]Policy
	now      func() time.Time
	logger   zerolog.Logger
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithKeyspace sets the store key prefix.
func WithKeyspace(keys storage.Keyspace) Option {
	return func(l *Limiter) { l.keys = keys }
}

// New constructs a Limiter. Policies missing from the map fall back to the defaults.
func New(counter storage.WindowCounter, policies map[string]Policy, logger zerolog.Logger, opts ...Option) *Limiter {
	merged := DefaultPolicies()
	for name, p := range policies {
		merged[name] = p
	}
	l := &Limiter{
		counter:  counter,
		policies: merged,
		now:      time.Now,
		logger:   logger.With().Str("component", "ratelimit").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policies lists configured policy names in order.
func (l *Limiter) Policies() []string {
	names := make([]string, 0, len(l.policies))
	for name := range l.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Key returns the store key of clientID under policy.
func (l *Limiter) Key(policy, clientID string) string {
	return l.keys.RateLimit(policy, HashClient(clientID))
}

// Allow counts one request for clientID under policy. Store failures allow the
// request and are logged.
func (l *Limiter) Allow(ctx context.Context, policy, clientID string) (Decision, error) {
	p, ok := l.policies[policy]
	if !ok {
		return Decision{}, fmt.Errorf("ratelimit: unknown policy %q", policy)
	}

	// both backends store microsecond precision
	now := l.now().UTC().Truncate(time.Microsecond)
	w, err := l.counter.HitWindow(ctx, l.Key(policy, clientID), p.Window, now)
	if err != nil {
		l.logger.Warn().Err(err).Str("policy", policy).Msg("rate limit store unavailable; allowing request")
		return Decision{Allowed: true, Limit: p.Limit, Remaining: p.Limit}, nil
	}
	return Evaluate(p, w, now), nil
}

// Evaluate turns a window snapshot into a decision.
func Evaluate(p Policy, w storage.Window, now time.Time) Decision {
	resetAt := w.Start.Add(p.Window)
	d := Decision{
		Allowed: w.Hits <= int64(p.Limit),
		Limit:   p.Limit,
		ResetAt: resetAt,
	}
	if remaining := int64(p.Limit) - w.Hits; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d
}

// RetryAfterSeconds rounds a RetryAfter duration up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// HashClient returns the first 16 hex characters of sha256(clientID).
func HashClient(clientID string) string {
	sum := sha256.Sum256([]byte(clientID))
	return hex.EncodeToString(sum[:])[:16]
}
