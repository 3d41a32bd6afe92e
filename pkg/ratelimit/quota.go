package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imgurcomments/pkg/errors"
)

// Rate-limit headers the API attaches to every response
const (
	HeaderUserLimit       = "X-RateLimit-UserLimit"
	HeaderUserRemaining   = "X-RateLimit-UserRemaining"
	HeaderUserReset       = "X-RateLimit-UserReset"
	HeaderClientLimit     = "X-RateLimit-ClientLimit"
	HeaderClientRemaining = "X-RateLimit-ClientRemaining"
)

// DefaultQuotaMargin is the remaining-request threshold at which a warning fires
const DefaultQuotaMargin = 1

// Scope identifies which quota bucket is running low
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeClient Scope = "client"
)

// QuotaWarning reports that one quota bucket is at or below the margin
type QuotaWarning struct {
	Scope     Scope
	Remaining int
	Limit     int
	// ResetAt is zero unless the API reported a user reset time
	ResetAt time.Time
}

func (w *QuotaWarning) Error() string {
	msg := fmt.Sprintf("%s quota nearly exhausted: %d of %d requests remaining", w.Scope, w.Remaining, w.Limit)
	if !w.ResetAt.IsZero() {
		msg += fmt.Sprintf(", resets at %s", w.ResetAt.Local().Format("15:04:05"))
	}
	return msg
}

// AsError converts the warning into a typed quota error for callers that
// choose to stop on it
func (w *QuotaWarning) AsError() error {
	err := errors.Wrap(errors.ErrorTypeQuota, w, "stopping before the API quota runs out")
	if !w.ResetAt.IsZero() {
		if d := time.Until(w.ResetAt); d > 0 {
			err.RetryAfter = d
		}
	}
	return err
}

// QuotaGuard inspects response headers for approaching quota exhaustion. It is
// advisory only and never blocks requests.
type QuotaGuard struct {
	Margin int
}

// NewQuotaGuard creates a guard; a negative margin is treated as zero
func NewQuotaGuard(margin int) *QuotaGuard {
	if margin < 0 {
		margin = 0
	}
	return &QuotaGuard{Margin: margin}
}

// Inspect returns a warning when the user bucket, or failing that the client
// bucket, has no more than Margin requests left. Missing or non-numeric
// headers yield nil: an unknown quota is not a warning.
func (g *QuotaGuard) Inspect(h http.Header) *QuotaWarning {
	if h == nil {
		return nil
	}

	userLimit, ok1 := headerInt(h, HeaderUserLimit)
	userRemaining, ok2 := headerInt(h, HeaderUserRemaining)
	clientLimit, ok3 := headerInt(h, HeaderClientLimit)
	clientRemaining, ok4 := headerInt(h, HeaderClientRemaining)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}

	if userRemaining <= g.Margin {
		w := &QuotaWarning{Scope: ScopeUser, Remaining: userRemaining, Limit: userLimit}
		if reset, ok := headerInt(h, HeaderUserReset); ok && reset > 0 {
			w.ResetAt = time.Unix(int64(reset), 0)
		}
		return w
	}
	if clientRemaining <= g.Margin {
		return &QuotaWarning{Scope: ScopeClient, Remaining: clientRemaining, Limit: clientLimit}
	}
	return nil
}

func headerInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
