package fetcher

import (
	"context"
	"io"

	"imgurcomments/pkg/config"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
	"imgurcomments/pkg/ratelimit"
)

// CommentsClient defines the API operations the fetcher depends on
type CommentsClient interface {
	FetchCommentsPage(ctx context.Context, user string, page, perPage int) (*imgur.Page, error)
}

// Options describes one paginated fetch
type Options struct {
	// Username is the path reference for the comments endpoint
	Username string
	// Cutoff is the oldest datetime still considered new; 0 disables it
	Cutoff int64
	// Limit caps the number of emitted comments; 0 means unbounded
	Limit int
	// PageSize is clamped to 1..100, with 0 meaning 100
	PageSize int
	// OnQuotaWarning is called for every response that reports a low quota
	OnQuotaWarning func(*ratelimit.QuotaWarning)
}

// Chunk is what remains of one page after the stop conditions are applied
type Chunk struct {
	Page     int
	Comments []imgur.Comment
}

// Fetcher issues page requests for an account's comment history
type Fetcher struct {
	client           CommentsClient
	limiter          ratelimit.Limiter
	guard            *ratelimit.QuotaGuard
	logger           logger.Logger
	requireEmptyPage bool
	abortOnQuota     bool
}

// New creates a Fetcher with a default quota guard and no pacing
func New(client CommentsClient, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client: client,
		guard:  ratelimit.NewQuotaGuard(ratelimit.DefaultQuotaMargin),
		logger: log.WithField("component", "fetcher"),
	}
}

// NewFromConfig creates a Fetcher with pacing, quota and pagination policy
// taken from cfg
func NewFromConfig(client CommentsClient, cfg *config.Config, log logger.Logger) *Fetcher {
	f := New(client, log)
	f.SetLimiter(ratelimit.NewLimiter(cfg.RateLimit))
	f.SetQuotaGuard(ratelimit.NewQuotaGuard(cfg.RateLimit.QuotaMargin))
	f.SetAbortOnQuota(cfg.RateLimit.AbortOnQuota)
	f.SetRequireEmptyPage(cfg.Fetch.RequireEmptyPage)
	return f
}

// SetLimiter installs client-side pacing; nil disables it
func (f *Fetcher) SetLimiter(l ratelimit.Limiter) {
	f.limiter = l
}

// SetQuotaGuard replaces the quota guard
func (f *Fetcher) SetQuotaGuard(g *ratelimit.QuotaGuard) {
	if g != nil {
		f.guard = g
	}
}

// SetRequireEmptyPage makes the stream keep paginating after a short page
// until the API returns an empty one
func (f *Fetcher) SetRequireEmptyPage(require bool) {
	f.requireEmptyPage = require
}

// SetAbortOnQuota fails the stream, after the page that carried it, on the
// first quota warning
func (f *Fetcher) SetAbortOnQuota(abort bool) {
	f.abortOnQuota = abort
}

// ClampPageSize maps a requested page size onto what the API accepts
func ClampPageSize(n int) int {
	if n <= 0 || n > config.MaxPageSize {
		return config.MaxPageSize
	}
	return n
}

// Stream prepares a lazy page stream. No request is made until Next is called.
func (f *Fetcher) Stream(opts Options) *ChunkStream {
	opts.PageSize = ClampPageSize(opts.PageSize)

	logger.LogComponentStart(f.logger, "fetcher", map[string]interface{}{
		"user":      opts.Username,
		"cutoff":    opts.Cutoff,
		"limit":     opts.Limit,
		"page_size": opts.PageSize,
	})

	return &ChunkStream{fetcher: f, opts: opts}
}

// ChunkStream yields one Chunk per page request. It is not safe for
// concurrent use.
type ChunkStream struct {
	fetcher *Fetcher
	opts    Options

	page     int
	emitted  int
	requests int
	warnings int
	done     bool
	err      error
}

// Next requests the next page and returns its surviving comments. It returns
// io.EOF once the history, the cutoff or the limit has been reached. Errors
// are sticky: after a failure every call returns the same error.
func (s *ChunkStream) Next(ctx context.Context) (Chunk, error) {
	if s.err != nil {
		return Chunk{}, s.err
	}
	if s.done {
		return Chunk{}, io.EOF
	}

	f := s.fetcher
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			s.err = err
			return Chunk{}, err
		}
	}

	pageNum := s.page
	page, err := f.client.FetchCommentsPage(ctx, s.opts.Username, pageNum, s.opts.PageSize)
	s.requests++

	var warning *ratelimit.QuotaWarning
	if page != nil {
		warning = s.inspect(page)
	}

	if err != nil {
		f.logger.WithError(err).WithFields(map[string]interface{}{
			"user": s.opts.Username,
			"page": pageNum,
		}).Error("comments page request failed")
		s.err = err
		return Chunk{}, err
	}

	items := page.Comments
	if len(items) == 0 {
		f.logger.DebugWithFields("empty page, end of history", map[string]interface{}{
			"page": pageNum,
		})
		s.done = true
		return Chunk{}, io.EOF
	}

	kept := items
	for i, c := range items {
		if c.Datetime < s.opts.Cutoff {
			kept = items[:i]
			s.done = true
			f.logger.DebugWithFields("reached cached history", map[string]interface{}{
				"page":     pageNum,
				"datetime": c.Datetime,
				"cutoff":   s.opts.Cutoff,
			})
			break
		}
	}

	if s.opts.Limit > 0 && s.emitted+len(kept) >= s.opts.Limit {
		kept = kept[:s.opts.Limit-s.emitted]
		s.done = true
	}

	if !f.requireEmptyPage && len(items) < s.opts.PageSize {
		s.done = true
	}

	s.page++
	s.emitted += len(kept)

	if warning != nil && f.abortOnQuota && !s.done {
		s.err = warning.AsError()
	}

	if len(kept) == 0 {
		return Chunk{}, io.EOF
	}
	return Chunk{Page: pageNum, Comments: kept}, nil
}

func (s *ChunkStream) inspect(page *imgur.Page) *ratelimit.QuotaWarning {
	w := s.fetcher.guard.Inspect(page.Header)
	if w == nil {
		return nil
	}

	s.warnings++
	logger.LogQuota(s.fetcher.logger, string(w.Scope), w.Remaining, w.Limit)
	if s.opts.OnQuotaWarning != nil {
		s.opts.OnQuotaWarning(w)
	}
	return w
}

// Requests returns the number of page requests issued so far
func (s *ChunkStream) Requests() int {
	return s.requests
}

// Emitted returns the number of comments returned so far
func (s *ChunkStream) Emitted() int {
	return s.emitted
}

// QuotaWarnings returns how many responses reported a low quota
func (s *ChunkStream) QuotaWarnings() int {
	return s.warnings
}

// Err returns the error that terminated the stream, if any
func (s *ChunkStream) Err() error {
	return s.err
}

// WithClient returns a copy of the fetcher that issues requests through
// client. Pacing state is shared with the original.
func (f *Fetcher) WithClient(client CommentsClient) *Fetcher {
	clone := *f
	clone.client = client
	return &clone
}
