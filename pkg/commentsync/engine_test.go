package commentsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgurcomments/internal/imgurtest"
	"imgurcomments/pkg/cache"
	"imgurcomments/pkg/config"
	"imgurcomments/pkg/errors"
	"imgurcomments/pkg/fetcher"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
	"imgurcomments/pkg/ratelimit"
)

const (
	testUser    = "someone"
	testAccount = "1234"
)

// countingStore wraps a real store, counts writes and can inject failures
type countingStore struct {
	cache.Store
	saves   int
	saveErr error
	loadErr error
}

func (s *countingStore) Load(ctx context.Context, accountID string) ([]imgur.Comment, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.Store.Load(ctx, accountID)
}

func (s *countingStore) Save(ctx context.Context, accountID string, comments []imgur.Comment) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.Save(ctx, accountID, comments)
}

type harness struct {
	engine *Engine
	server *imgurtest.MockImgurServer
	store  *countingStore
	files  *cache.FileStore
	client *imgur.Client
	log    *logger.TestLogger
}

func newHarness(t *testing.T, history []imgur.Comment) *harness {
	t.Helper()

	server := imgurtest.NewMockImgurServer()
	t.Cleanup(server.Close)
	server.AddAccount(testUser, 1234, history)

	log := logger.NewTestLogger()
	files, err := cache.NewFileStore(filepath.Join(t.TempDir(), "cache"), log)
	require.NoError(t, err)
	store := &countingStore{Store: files}

	client := imgur.NewClient(5*time.Second, log)
	client.SetBaseURL(server.URL())

	return &harness{
		engine: New(client, nil, store, log),
		server: server,
		store:  store,
		files:  files,
		client: client,
		log:    log,
	}
}

// seed writes a cache directly, bypassing the save counter
func (h *harness) seed(t *testing.T, comments []imgur.Comment) {
	t.Helper()
	require.NoError(t, h.files.Save(context.Background(), testAccount, comments))
}

func (h *harness) cached(t *testing.T) []imgur.Comment {
	t.Helper()
	comments, err := h.files.Load(context.Background(), testAccount)
	require.NoError(t, err)
	return comments
}

func (h *harness) sync(t *testing.T, req Request) (*Result, []imgur.Comment) {
	t.Helper()
	if req.AccountID == "" && req.Username == "" {
		req.AccountID = testAccount
		req.Username = testUser
	}
	r, err := h.engine.GetComments(context.Background(), req)
	require.NoError(t, err)
	view, err := r.All(context.Background())
	require.NoError(t, err)
	return r, view
}

func commentIDs(comments []imgur.Comment) []int64 {
	ids := make([]int64, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	return ids
}

func assertNewestFirstUnique(t *testing.T, comments []imgur.Comment) {
	t.Helper()
	seen := make(map[int64]bool, len(comments))
	for i, c := range comments {
		assert.False(t, seen[c.ID], "duplicate id %d", c.ID)
		seen[c.ID] = true
		if i > 0 {
			assert.LessOrEqual(t, c.Datetime, comments[i-1].Datetime, "comment %d out of order", c.ID)
		}
	}
}

func TestIncrementalSyncMergesNewCommentsAboveCache(t *testing.T) {
	one := imgurtest.Comment(1, 1000)
	h := newHarness(t, []imgur.Comment{
		imgurtest.Comment(2, 1100),
		imgurtest.Comment(3, 1050),
		imgurtest.Comment(4, 999),
	})
	h.seed(t, []imgur.Comment{one})

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	assert.Equal(t, []int64{2, 3, 1}, commentIDs(view))
	assert.Equal(t, []int64{2, 3, 1}, commentIDs(h.cached(t)))
	if diff := cmp.Diff(view, h.cached(t)); diff != "" {
		t.Errorf("persisted history differs from view (-view +cache):\n%s", diff)
	}

	stats := r.Stats()
	assert.Equal(t, 1, stats.Cached)
	assert.Equal(t, 2, stats.Live)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, int64(1001), stats.Cutoff)
	assert.True(t, stats.Persisted)
	assert.Equal(t, StateDone, r.State())
}

func TestColdSyncPersistsWholeHistory(t *testing.T) {
	history := imgurtest.Comments(250, 100000)
	h := newHarness(t, history)

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	require.Len(t, view, 250)
	assertNewestFirstUnique(t, view)
	if diff := cmp.Diff(history, h.cached(t)); diff != "" {
		t.Errorf("cache mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{0, 1, 2}, h.server.CommentPageRequests(testUser))
	assert.Equal(t, 3, r.Stats().Pages)
	assert.Equal(t, 1, h.store.saves)
}

func TestEmptyPagePolicyCostsOneMoreRequest(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(250, 100000))
	f := fetcher.New(h.client, h.log)
	f.SetRequireEmptyPage(true)
	h.engine = New(h.client, f, h.store, h.log)

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	assert.Len(t, view, 250)
	assert.Equal(t, []int{0, 1, 2, 3}, h.server.CommentPageRequests(testUser))
	assert.Equal(t, 4, r.Stats().Pages)
}

func TestDuplicateIDsInDeltaAreDropped(t *testing.T) {
	// page shift: comment 6 is served twice
	h := newHarness(t, []imgur.Comment{
		imgurtest.Comment(7, 1010),
		imgurtest.Comment(6, 1005),
		imgurtest.Comment(6, 1005),
		imgurtest.Comment(5, 1000),
	})
	h.seed(t, []imgur.Comment{imgurtest.Comment(5, 1000)})

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	assert.Equal(t, []int64{7, 6, 5}, commentIDs(view))
	assert.Equal(t, []int64{7, 6, 5}, commentIDs(h.cached(t)))
	assert.Equal(t, 2, r.Stats().Live)
}

func TestSecondSyncWithoutNewCommentsIsNoOp(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(120, 50000))

	h.sync(t, Request{Persist: PersistBeforeReturn})
	path := h.files.Path(testAccount)
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	statBefore, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, 1, h.store.saves)

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	statAfter, err := os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, statBefore.ModTime(), statAfter.ModTime())
	assert.Equal(t, 1, h.store.saves, "second sync must not write")
	assert.Len(t, view, 120)
	assert.False(t, r.Stats().Persisted)
	assert.Equal(t, []State{StateIdle, StateFetching, StateMerging, StateDone}, r.Transitions())
}

func TestCutoffTreatsCachedNewestSecondAsOld(t *testing.T) {
	h := newHarness(t, []imgur.Comment{
		imgurtest.Comment(12, 1002),
		imgurtest.Comment(11, 1001),
		imgurtest.Comment(13, 1000),
		imgurtest.Comment(10, 1000),
		imgurtest.Comment(9, 999),
	})
	h.seed(t, []imgur.Comment{imgurtest.Comment(10, 1000), imgurtest.Comment(9, 999)})

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	assert.Equal(t, []int64{12, 11, 10, 9}, commentIDs(view))
	assert.Equal(t, 2, r.Stats().Live)
	for _, c := range view[:2] {
		assert.GreaterOrEqual(t, c.Datetime, r.Stats().Cutoff)
	}
}

func TestLimitBoundsViewOnly(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(250, 100000))

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn, Limit: 5})

	assert.Equal(t, []int64{250, 249, 248, 247, 246}, commentIDs(view))
	assert.Len(t, h.cached(t), 250, "cache gets the whole delta")
	assert.False(t, r.Complete())
}

func TestLazyViewRequestsOnlyWhatIsPulled(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantPages []int
	}{
		{name: "inside first page", limit: 10, wantPages: []int{0}},
		{name: "exactly one page", limit: 100, wantPages: []int{0}},
		{name: "across a boundary", limit: 150, wantPages: []int{0, 1}},
		{name: "unbounded", limit: 0, wantPages: []int{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, imgurtest.Comments(250, 100000))

			r, view := h.sync(t, Request{Persist: PersistNone, Limit: tt.limit})

			want := tt.limit
			if want == 0 {
				want = 250
			}
			assert.Len(t, view, want)
			assertNewestFirstUnique(t, view)
			assert.Equal(t, tt.wantPages, h.server.CommentPageRequests(testUser))
			assert.Equal(t, 0, h.store.saves)
			assert.Equal(t, StateDone, r.State())
		})
	}
}

func TestLazyViewContinuesIntoCache(t *testing.T) {
	h := newHarness(t, []imgur.Comment{
		imgurtest.Comment(4, 400),
		imgurtest.Comment(3, 300),
		imgurtest.Comment(2, 200),
		imgurtest.Comment(1, 100),
	})
	h.seed(t, []imgur.Comment{imgurtest.Comment(2, 200), imgurtest.Comment(1, 100)})

	r, view := h.sync(t, Request{Persist: PersistNone})

	assert.Equal(t, []int64{4, 3, 2, 1}, commentIDs(view))
	assert.Equal(t, []int64{2, 1}, commentIDs(h.cached(t)), "cache untouched")
	assert.True(t, r.Complete())
	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, []State{StateIdle, StateFetching, StateMerging, StateDone}, r.Transitions())
}

func TestFailedFetchLeavesCacheUntouched(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(250, 100000))
	seeded := imgurtest.Comments(10, 99000)
	h.seed(t, seeded)
	before, err := os.ReadFile(h.files.Path(testAccount))
	require.NoError(t, err)

	h.server.SetPageError(testUser, 1, 500)

	_, err = h.engine.GetComments(context.Background(), Request{
		AccountID: testAccount,
		Username:  testUser,
		Persist:   PersistBeforeReturn,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeHTTPStatus))
	assert.Equal(t, 500, errors.StatusCode(err))

	after, err := os.ReadFile(h.files.Path(testAccount))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, h.store.saves)
	assert.True(t, h.log.HasMessage("sync failed, cache left untouched"))
}

func TestLazyFetchErrorIsSticky(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(150, 100000))
	h.server.SetPageError(testUser, 1, 503)

	r, err := h.engine.GetComments(context.Background(), Request{
		AccountID: testAccount,
		Username:  testUser,
		Persist:   PersistNone,
	})
	require.NoError(t, err)

	view, err := r.All(context.Background())
	require.Error(t, err)
	assert.Len(t, view, 100, "first page is served before the failure")

	_, again := r.Next(context.Background())
	assert.Equal(t, err, again)
	assert.Equal(t, StateFailed, r.State())
	assert.Equal(t, err, r.Close(context.Background()))
}

func TestCacheWriteFailureIsNonFatal(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(3, 1000))
	h.store.saveErr = errors.New(errors.ErrorTypeCacheIO, 0, "disk full")

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	assert.Equal(t, []int64{3, 2, 1}, commentIDs(view))
	require.Error(t, r.PersistErr())
	assert.True(t, errors.Is(r.PersistErr(), errors.ErrorTypeCacheIO))
	assert.NoError(t, r.Err())
	assert.Equal(t, StateFailed, r.State())
	assert.Equal(t, []State{StateIdle, StateFetching, StateMerging, StatePersisting, StateFailed}, r.Transitions())
	assert.False(t, r.Stats().Persisted)
}

func TestUnreadableCacheIsColdStart(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(3, 1000))
	h.store.loadErr = errors.New(errors.ErrorTypeCacheIO, 0, "permission denied")

	r, view := h.sync(t, Request{Persist: PersistBeforeReturn})

	assert.Len(t, view, 3)
	assert.Equal(t, int64(0), r.Stats().Cutoff)
	assert.True(t, h.log.HasMessage("cache load failed, starting from an empty cache"))
	assert.Equal(t, 1, h.store.saves)
}

func TestDeferredPersistence(t *testing.T) {
	t.Run("close drains the rest and saves", func(t *testing.T) {
		h := newHarness(t, imgurtest.Comments(250, 100000))

		r, err := h.engine.GetComments(context.Background(), Request{
			AccountID: testAccount,
			Username:  testUser,
			Persist:   PersistDeferred,
			Limit:     3,
		})
		require.NoError(t, err)

		view, err := r.All(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int64{250, 249, 248}, commentIDs(view))
		assert.Equal(t, []int{0}, h.server.CommentPageRequests(testUser))
		assert.Equal(t, 0, h.store.saves, "nothing saved before Close")
		assert.Equal(t, StateFetching, r.State())

		require.NoError(t, r.Close(context.Background()))
		assert.Equal(t, []int{0, 1, 2}, h.server.CommentPageRequests(testUser))
		assert.Len(t, h.cached(t), 250)
		assert.Equal(t, StateDone, r.State())
		assert.True(t, r.Stats().Persisted)

		require.NoError(t, r.Close(context.Background()), "close is idempotent")
		assert.Equal(t, 1, h.store.saves)
	})

	t.Run("failed drain writes nothing", func(t *testing.T) {
		h := newHarness(t, imgurtest.Comments(250, 100000))
		h.server.SetPageError(testUser, 2, 502)

		r, err := h.engine.GetComments(context.Background(), Request{
			AccountID: testAccount,
			Username:  testUser,
			Persist:   PersistDeferred,
			Limit:     1,
		})
		require.NoError(t, err)
		_, err = r.All(context.Background())
		require.NoError(t, err)

		err = r.Close(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrorTypeHTTPStatus))
		assert.Equal(t, 0, h.store.saves)
		assert.Empty(t, h.cached(t))
		assert.Equal(t, StateFailed, r.State())
	})

	t.Run("no new comments means no write", func(t *testing.T) {
		h := newHarness(t, imgurtest.Comments(5, 1000))
		h.seed(t, imgurtest.Comments(5, 1000))

		r, view := h.sync(t, Request{Persist: PersistDeferred})
		assert.Len(t, view, 5)
		require.NoError(t, r.Close(context.Background()))
		assert.Equal(t, 0, h.store.saves)
		assert.Equal(t, StateDone, r.State())
	})
}

func TestDeltaOnly(t *testing.T) {
	h := newHarness(t, []imgur.Comment{
		imgurtest.Comment(3, 300),
		imgurtest.Comment(2, 200),
		imgurtest.Comment(1, 100),
	})
	h.seed(t, []imgur.Comment{imgurtest.Comment(1, 100)})

	_, lazy := h.sync(t, Request{Persist: PersistNone, DeltaOnly: true})
	assert.Equal(t, []int64{3, 2}, commentIDs(lazy))

	_, persisted := h.sync(t, Request{Persist: PersistBeforeReturn, DeltaOnly: true})
	assert.Equal(t, []int64{3, 2}, commentIDs(persisted))
	assert.Equal(t, []int64{3, 2, 1}, commentIDs(h.cached(t)))
}

func TestAccountResolution(t *testing.T) {
	t.Run("username only", func(t *testing.T) {
		h := newHarness(t, imgurtest.Comments(2, 10))

		r, view := h.sync(t, Request{Username: testUser, Persist: PersistBeforeReturn})
		assert.Equal(t, testAccount, r.AccountID())
		assert.Len(t, view, 2)
		assert.Len(t, h.cached(t), 2)
	})

	t.Run("account id doubles as path reference", func(t *testing.T) {
		h := newHarness(t, nil)
		h.server.AddAccount(testAccount, 1234, imgurtest.Comments(4, 10))

		r, view := h.sync(t, Request{AccountID: testAccount, Persist: PersistNone})
		assert.Equal(t, testAccount, r.AccountID())
		assert.Len(t, view, 4)
	})

	t.Run("unknown user", func(t *testing.T) {
		h := newHarness(t, nil)

		_, err := h.engine.GetComments(context.Background(), Request{Username: "nobody"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrorTypeHTTPStatus))
		assert.Equal(t, 404, errors.StatusCode(err))
	})

	t.Run("nothing to look up", func(t *testing.T) {
		h := newHarness(t, nil)

		_, err := h.engine.GetComments(context.Background(), Request{Username: "  "})
		assert.Error(t, err)
	})

	t.Run("resolve", func(t *testing.T) {
		h := newHarness(t, nil)

		id, err := h.engine.ResolveAccountID(context.Background(), testUser, "")
		require.NoError(t, err)
		assert.Equal(t, testAccount, id)
	})
}

func TestRequestCredentialIsSent(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(2, 10))
	h.server.RequireClientID("abc123")

	_, view := h.sync(t, Request{Username: testUser, Credential: "abc123", Persist: PersistNone})
	assert.Len(t, view, 2)
	for _, header := range h.server.AuthHeaders() {
		assert.Equal(t, "Client-ID abc123", header)
	}

	_, err := h.engine.GetComments(context.Background(), Request{Username: testUser})
	require.Error(t, err)
	assert.Equal(t, 403, errors.StatusCode(err))
}

func TestQuotaWarningsAreCounted(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(250, 100000))
	h.server.SetQuota(imgurtest.Quota{
		UserLimit:       500,
		UserRemaining:   1,
		ClientLimit:     12500,
		ClientRemaining: 9000,
	}, false)

	var warnings []*ratelimit.QuotaWarning
	r, view := h.sync(t, Request{
		Persist: PersistNone,
		OnQuotaWarning: func(w *ratelimit.QuotaWarning) {
			warnings = append(warnings, w)
		},
	})

	assert.Len(t, view, 250, "warnings are advisory")
	assert.Equal(t, 3, r.Stats().QuotaWarnings)
	require.Len(t, warnings, 3)
	assert.Equal(t, ratelimit.ScopeUser, warnings[0].Scope)
}

func TestRunIDIsLogged(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(2, 10))

	r, _ := h.sync(t, Request{Persist: PersistBeforeReturn})
	require.NotEmpty(t, r.RunID())

	var found bool
	for _, msg := range h.log.GetMessages() {
		if msg.Message == "sync finished" {
			found = true
			assert.Equal(t, r.RunID(), msg.Fields["run_id"])
			assert.Equal(t, testAccount, msg.Fields["account_id"])
		}
	}
	assert.True(t, found)
}

func TestNewFromConfig(t *testing.T) {
	h := newHarness(t, imgurtest.Comments(30, 1000))
	cfg := config.DefaultConfig()
	cfg.Fetch.PageSize = 10

	h.engine = NewFromConfig(h.client, h.store, cfg, h.log)
	_, view := h.sync(t, Request{Persist: PersistNone})

	assert.Len(t, view, 30)
	assert.Equal(t, []int{0, 1, 2, 3}, h.server.CommentPageRequests(testUser),
		"30 items in pages of 10 end on an empty page")
}

func TestPersistModeFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.CacheConfig
		want PersistMode
	}{
		{name: "disabled", cfg: config.CacheConfig{Persist: false, Deferred: true}, want: PersistNone},
		{name: "default", cfg: config.CacheConfig{Persist: true}, want: PersistBeforeReturn},
		{name: "deferred", cfg: config.CacheConfig{Persist: true, Deferred: true}, want: PersistDeferred},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PersistModeFromConfig(tt.cfg))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "persisting", StatePersisting.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateMerging.Terminal())
	assert.Equal(t, "deferred", PersistDeferred.String())
}
