package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "imgurcomments/pkg/errors"
)

// Backoff computes the pause before retry number attempt (1-based) of an
// operation that just failed with err
type Backoff interface {
	Delay(attempt int, err error) time.Duration
}

// Exponential grows the pause by Multiplier after every failed attempt
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter spreads each pause by up to this fraction in either direction
	Jitter float64

	random func() float64
}

// DefaultExponential returns the backoff used when nothing is configured
func DefaultExponential() *Exponential {
	return &Exponential{
		Initial:    2 * time.Second,
		Max:        time.Minute,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// Delay ignores err; the schedule depends on the attempt only
func (e *Exponential) Delay(attempt int, _ error) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := math.Max(e.Multiplier, 1)
	delay := float64(e.Initial) * math.Pow(multiplier, float64(attempt-1))
	if e.Max > 0 {
		delay = math.Min(delay, float64(e.Max))
	}

	if e.Jitter > 0 {
		random := e.random
		if random == nil {
			random = rand.Float64
		}
		delay += delay * e.Jitter * (2*random() - 1)
	}
	return time.Duration(math.Max(delay, 0))
}

// Constant pauses the same amount before every retry
type Constant time.Duration

// Delay returns c for every attempt after the first
func (c Constant) Delay(attempt int, _ error) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(c)
}

// ServerHinted follows the pause the API asked for. Without a hint it falls
// back to Base, raised to at least QuotaFloor for quota failures and 429s.
type ServerHinted struct {
	Base       Backoff
	QuotaFloor time.Duration
}

// Delay prefers the server's Retry-After or quota reset time
func (s *ServerHinted) Delay(attempt int, err error) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if hint := errs.RetryAfter(err); hint > 0 {
		return hint
	}

	var delay time.Duration
	if s.Base != nil {
		delay = s.Base.Delay(attempt, err)
	}
	if quotaFailure(err) && delay < s.QuotaFloor {
		delay = s.QuotaFloor
	}
	return delay
}

func quotaFailure(err error) bool {
	return errs.Is(err, errs.ErrorTypeQuota) || errs.StatusCode(err) == 429
}

// Wait sleeps for delay unless ctx ends first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
