// Package retry implements the transient/permanent/overload backoff policy
// shared by every provider adapter (§4.1): transient network and 5xx/429
// failures retry with full-jitter exponential backoff up to a small attempt
// cap, permanent failures (400s, auth) surface immediately, and the overload
// sub-class retries fewer times with a longer floor.
package retry

import (
	"context"
	"math/rand"
	"time"

	"coreagent/pkg/agenterr"
)

// Class distinguishes the three retry policies.
type Class int

const (
	// Permanent errors are never retried.
	Permanent Class = iota
	// Transient errors (network, timeout, 5xx, 429) retry with standard backoff.
	Transient
	// Overload errors retry fewer times with a longer initial backoff.
	Overload
)

// Policy configures attempt counts and backoff bounds for one Class.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicies mirrors the backoff pair the original Codex backend client
// used for its isRetryable/retryDelay logic, generalized to all three
// provider families.
var DefaultPolicies = map[Class]Policy{
	Transient: {MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 20 * time.Second},
	Overload:  {MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second},
	Permanent: {MaxAttempts: 1},
}

// ClassifyHTTPStatus maps an HTTP status code to a retry Class.
func ClassifyHTTPStatus(status int) Class {
	switch {
	case status == 429:
		return Transient
	case status == 529: // Anthropic "overloaded_error" equivalent
		return Overload
	case status >= 500:
		return Transient
	case status == 0:
		return Transient // network error, no status
	default:
		return Permanent
	}
}

// ClassOf derives a Class from an agenterr.Kind.
func ClassOf(kind agenterr.Kind) Class {
	switch kind {
	case agenterr.Transport:
		return Transient
	default:
		return Permanent
	}
}

// Delay computes the full-jitter exponential backoff for the given attempt
// (0-indexed) under policy p: a uniform random duration in [0, min(MaxDelay,
// BaseDelay*2^attempt)].
func Delay(p Policy, attempt int) time.Duration {
	cap := p.BaseDelay << attempt
	if cap <= 0 || cap > p.MaxDelay {
		cap = p.MaxDelay
	}
	if cap <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(cap)))
}

// Do runs fn, retrying per the policy for class until it succeeds, a
// permanent error is returned, attempts are exhausted, or ctx is cancelled.
// fn's error must be classifiable via agenterr; unclassified errors are
// treated as permanent.
func Do(ctx context.Context, class Class, fn func() error) error {
	policy, ok := DefaultPolicies[class]
	if !ok {
		policy = DefaultPolicies[Permanent]
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !agenterr.IsRetriable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Delay(policy, attempt)):
		}
	}
	return lastErr
}
