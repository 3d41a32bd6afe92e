package commentsync

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"imgurcomments/pkg/cache"
	"imgurcomments/pkg/config"
	"imgurcomments/pkg/errors"
	"imgurcomments/pkg/fetcher"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
	"imgurcomments/pkg/ratelimit"
)

// PersistMode selects when a sync writes the merged history back to the cache
type PersistMode int

const (
	// PersistNone serves the merged view lazily and never writes
	PersistNone PersistMode = iota
	// PersistBeforeReturn fetches the whole delta, saves, then serves from memory
	PersistBeforeReturn
	// PersistDeferred serves lazily and saves when the result is closed
	PersistDeferred
)

func (m PersistMode) String() string {
	switch m {
	case PersistNone:
		return "none"
	case PersistBeforeReturn:
		return "before_return"
	case PersistDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("PersistMode(%d)", int(m))
	}
}

// PersistModeFromConfig maps the cache section onto a PersistMode
func PersistModeFromConfig(cfg config.CacheConfig) PersistMode {
	switch {
	case !cfg.Persist:
		return PersistNone
	case cfg.Deferred:
		return PersistDeferred
	default:
		return PersistBeforeReturn
	}
}

// Request describes one sync of an account's comment history
type Request struct {
	// AccountID keys the cache. Resolved from Username when empty.
	AccountID string
	// Username is the path reference for the API. AccountID is used when empty.
	Username string
	// Credential is the Imgur Client-ID; empty keeps the engine client's own
	Credential string
	// Limit bounds the returned view; 0 means unbounded
	Limit int
	Persist PersistMode
	// DeltaOnly ends the view after the comments newer than the cache
	DeltaOnly bool
	// OnQuotaWarning is called for every response that reports a low quota
	OnQuotaWarning func(*ratelimit.QuotaWarning)
}

// Engine combines the cached history of an account with what the API
// reports as new since the last sync
type Engine struct {
	client   *imgur.Client
	fetcher  *fetcher.Fetcher
	store    cache.Store
	logger   logger.Logger
	pageSize int
}

// New creates an Engine. A nil fetcher gets the defaults of fetcher.New.
func New(client *imgur.Client, f *fetcher.Fetcher, store cache.Store, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	if f == nil {
		f = fetcher.New(client, log)
	}
	return &Engine{
		client:   client,
		fetcher:  f,
		store:    store,
		logger:   log.WithField("component", "commentsync"),
		pageSize: config.MaxPageSize,
	}
}

// NewFromConfig creates an Engine whose pagination, pacing and quota policy
// follow cfg
func NewFromConfig(client *imgur.Client, store cache.Store, cfg *config.Config, log logger.Logger) *Engine {
	e := New(client, fetcher.NewFromConfig(client, cfg, log), store, log)
	e.SetPageSize(cfg.Fetch.PageSize)
	return e
}

// SetPageSize sets the perPage value of comment requests
func (e *Engine) SetPageSize(n int) {
	e.pageSize = fetcher.ClampPageSize(n)
}

// ResolveAccountID looks up the numeric account id behind username
func (e *Engine) ResolveAccountID(ctx context.Context, username, credential string) (string, error) {
	account, err := e.clientFor(credential).FetchAccount(ctx, username)
	if err != nil {
		return "", err
	}
	return account.IDString(), nil
}

func (e *Engine) clientFor(credential string) *imgur.Client {
	if credential == "" {
		return e.client
	}
	return e.client.WithCredential(credential)
}

// GetComments starts a sync and returns a cursor over the merged history,
// newest first.
//
// With PersistBeforeReturn the whole delta is fetched and saved before this
// returns, so a fetch error is returned here and nothing is written. With the
// lazy modes pages are requested as the caller pulls, and fetch errors
// surface from Result.Next.
func (e *Engine) GetComments(ctx context.Context, req Request) (*Result, error) {
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.Username = strings.TrimSpace(req.Username)
	if req.AccountID == "" && req.Username == "" {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "an account id or a username is required")
	}
	if req.Limit < 0 {
		req.Limit = 0
	}

	client := e.clientFor(req.Credential)
	runID := uuid.NewString()
	log := e.logger.WithField("run_id", runID)

	if req.AccountID == "" {
		account, err := client.FetchAccount(ctx, req.Username)
		if err != nil {
			log.WithError(err).WithField("user", req.Username).Error("account lookup failed")
			return nil, fmt.Errorf("resolve account %s: %w", req.Username, err)
		}
		req.AccountID = account.IDString()
	}
	if req.Username == "" {
		req.Username = req.AccountID
	}
	log = log.WithField("account_id", req.AccountID)

	cached, err := e.store.Load(ctx, req.AccountID)
	if err != nil {
		log.WithError(err).Warn("cache load failed, starting from an empty cache")
		cached = nil
	}

	var cutoff int64
	if len(cached) > 0 {
		cutoff = cached[0].Datetime + 1
	}

	r := &Result{
		engine:      e,
		logger:      log,
		runID:       runID,
		accountID:   req.AccountID,
		mode:        req.Persist,
		limit:       req.Limit,
		deltaOnly:   req.DeltaOnly,
		cached:      cached,
		seen:        make(map[int64]struct{}),
		state:       StateIdle,
		transitions: []State{StateIdle},
	}
	r.stats.Cached = len(cached)
	r.stats.Cutoff = cutoff

	stream := e.fetcher.WithClient(client).Stream(fetcher.Options{
		Username:       req.Username,
		Cutoff:         cutoff,
		PageSize:       e.pageSize,
		OnQuotaWarning: req.OnQuotaWarning,
	})
	r.stream = stream
	r.live = fetcher.NewCursor(stream)

	log.InfoWithFields("sync started", map[string]interface{}{
		"user":    req.Username,
		"cached":  len(cached),
		"cutoff":  cutoff,
		"limit":   req.Limit,
		"persist": req.Persist.String(),
	})
	r.setState(StateFetching)

	if req.Persist != PersistBeforeReturn {
		return r, nil
	}

	if err := r.drainLive(ctx); err != nil {
		return nil, err
	}
	r.materialize(ctx)
	return r, nil
}

// drainLive pulls the rest of the delta into r.recorded
func (r *Result) drainLive(ctx context.Context) error {
	for !r.liveDone {
		c, err := r.live.Next(ctx)
		if err == io.EOF {
			r.liveDone = true
			break
		}
		if err != nil {
			r.fail(err)
			return err
		}
		r.record(c)
	}
	return nil
}

// materialize merges the delta with the cache, saves when needed and makes
// the merged history the served view
func (r *Result) materialize(ctx context.Context) {
	r.setState(StateMerging)
	merged := r.merged()
	r.materialized = true

	if r.deltaOnly {
		r.items = r.recorded
	} else {
		r.items = merged
	}

	r.persist(ctx, merged)
}

// merged returns the recorded delta followed by the cached history, dropping
// any id already seen
func (r *Result) merged() []imgur.Comment {
	merged := make([]imgur.Comment, 0, len(r.recorded)+len(r.cached))
	merged = append(merged, r.recorded...)
	for _, c := range r.cached {
		if _, dup := r.seen[c.ID]; dup {
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// persist saves merged unless nothing changed. A failed save is reported
// through PersistErr and leaves the result in StateFailed.
func (r *Result) persist(ctx context.Context, merged []imgur.Comment) {
	if len(r.recorded) == 0 && len(r.cached) > 0 {
		r.logger.Debug("no new comments, cache left untouched")
		r.finish()
		return
	}

	r.setState(StatePersisting)
	if err := r.engine.store.Save(ctx, r.accountID, merged); err != nil {
		r.persistErr = err
		r.logger.WithError(err).Error("saving merged history failed")
		r.setState(StateFailed)
		return
	}
	r.stats.Persisted = true
	r.finish()
}

// record appends c to the delta unless its id was already seen
func (r *Result) record(c imgur.Comment) bool {
	if _, dup := r.seen[c.ID]; dup {
		r.logger.DebugWithFields("duplicate comment in delta dropped", map[string]interface{}{
			"comment_id": c.ID,
		})
		return false
	}
	r.seen[c.ID] = struct{}{}
	r.recorded = append(r.recorded, c)
	r.stats.Live++
	return true
}
