package commentsync

import (
	"context"
	"fmt"
	"io"

	"imgurcomments/pkg/fetcher"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
)

// State is the lifecycle position of a sync
type State int

const (
	StateIdle State = iota
	StateFetching
	StateMerging
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Stats summarizes a sync
type Stats struct {
	Cached        int   `json:"cached"`
	Live          int   `json:"live"`
	Pages         int   `json:"pages"`
	QuotaWarnings int   `json:"quota_warnings"`
	Cutoff        int64 `json:"cutoff"`
	Persisted     bool  `json:"persisted"`
}

// Result is a cursor over the merged history of one sync. It is not safe
// for concurrent use.
type Result struct {
	engine    *Engine
	logger    logger.Logger
	runID     string
	accountID string
	mode      PersistMode
	limit     int
	deltaOnly bool

	stream   *fetcher.ChunkStream
	live     *fetcher.Cursor
	liveDone bool

	cached    []imgur.Comment
	cachedPos int
	recorded  []imgur.Comment
	seen      map[int64]struct{}

	materialized bool
	items        []imgur.Comment
	pos          int
	served       int

	state       State
	transitions []State
	stats       Stats
	err         error
	persistErr  error
	closed      bool
	closeErr    error
}

// Next returns the next comment of the view, newest first, or io.EOF once
// the view or its limit is exhausted. Errors are sticky.
func (r *Result) Next(ctx context.Context) (imgur.Comment, error) {
	if r.err != nil {
		return imgur.Comment{}, r.err
	}
	if r.limit > 0 && r.served >= r.limit {
		r.endView()
		return imgur.Comment{}, io.EOF
	}

	if r.materialized {
		if r.pos >= len(r.items) {
			return imgur.Comment{}, io.EOF
		}
		c := r.items[r.pos]
		r.pos++
		r.served++
		return c, nil
	}

	for !r.liveDone {
		c, err := r.live.Next(ctx)
		if err == io.EOF {
			r.liveDone = true
			r.setState(StateMerging)
			break
		}
		if err != nil {
			r.fail(err)
			return imgur.Comment{}, err
		}
		if !r.record(c) {
			continue
		}
		r.served++
		return c, nil
	}

	if !r.deltaOnly {
		for r.cachedPos < len(r.cached) {
			c := r.cached[r.cachedPos]
			r.cachedPos++
			if _, dup := r.seen[c.ID]; dup {
				continue
			}
			r.served++
			return c, nil
		}
	}

	r.endView()
	return imgur.Comment{}, io.EOF
}

// All drains the rest of the view
func (r *Result) All(ctx context.Context) ([]imgur.Comment, error) {
	var out []imgur.Comment
	for {
		c, err := r.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}

// endView settles a lazy sync whose view has been consumed. Deferred syncs
// stay open until Close.
func (r *Result) endView() {
	if r.mode == PersistNone && !r.state.Terminal() {
		r.settle()
	}
}

// Close ends the sync. For PersistDeferred it fetches whatever part of the
// delta the caller did not consume and saves the merged history; if that
// fetch fails nothing is written and the error is returned. Close is
// idempotent.
func (r *Result) Close(ctx context.Context) error {
	if r.closed {
		return r.closeErr
	}
	r.closed = true

	switch {
	case r.state == StateFailed:
		r.closeErr = r.err
	case r.mode == PersistDeferred && !r.state.Terminal():
		if err := r.drainLive(ctx); err != nil {
			r.closeErr = err
			break
		}
		r.setState(StateMerging)
		r.persist(ctx, r.merged())
		r.closeErr = r.persistErr
	case !r.state.Terminal():
		r.settle()
	}
	return r.closeErr
}

// State returns the current lifecycle state
func (r *Result) State() State {
	return r.state
}

// Transitions returns every state the sync has entered, in order
func (r *Result) Transitions() []State {
	return append([]State(nil), r.transitions...)
}

// Stats returns counters for the sync so far
func (r *Result) Stats() Stats {
	s := r.stats
	if r.stream != nil {
		s.Pages = r.stream.Requests()
		s.QuotaWarnings = r.stream.QuotaWarnings()
	}
	return s
}

// PersistErr returns the error of a failed cache write. The served view is
// complete even when it is set.
func (r *Result) PersistErr() error {
	return r.persistErr
}

// Err returns the error that failed the fetch, if any
func (r *Result) Err() error {
	return r.err
}

// AccountID returns the cache key the sync used
func (r *Result) AccountID() string {
	return r.accountID
}

// RunID identifies the sync in log output
func (r *Result) RunID() string {
	return r.runID
}

// Complete reports whether the view covers the whole merged history, that is
// the delta was fetched to its end and no limit cut it short
func (r *Result) Complete() bool {
	if !r.liveDone || r.err != nil {
		return false
	}
	if r.materialized {
		return r.pos >= len(r.items)
	}
	return r.deltaOnly || r.cachedPos >= len(r.cached)
}

func (r *Result) setState(s State) {
	if r.state == s && len(r.transitions) > 0 {
		return
	}
	r.state = s
	r.transitions = append(r.transitions, s)
	r.logger.DebugWithFields("sync state changed", map[string]interface{}{
		"state": s.String(),
	})
}

func (r *Result) fail(err error) {
	r.err = err
	r.setState(StateFailed)
	stats := r.Stats()
	r.logger.WithError(err).ErrorWithFields("sync failed, cache left untouched", map[string]interface{}{
		"live":  stats.Live,
		"pages": stats.Pages,
	})
}

// settle ends a sync that has nothing to write
func (r *Result) settle() {
	r.setState(StateMerging)
	r.finish()
}

func (r *Result) finish() {
	r.setState(StateDone)
	stats := r.Stats()
	r.logger.InfoWithFields("sync finished", map[string]interface{}{
		"cached":         stats.Cached,
		"live":           stats.Live,
		"pages":          stats.Pages,
		"quota_warnings": stats.QuotaWarnings,
		"persisted":      stats.Persisted,
	})
}
