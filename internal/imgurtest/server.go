// Package imgurtest provides an in-process fake of the Imgur comments API for tests.
package imgurtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"imgurcomments/pkg/imgur"
)

// Quota describes the rate-limit headers attached to every response
type Quota struct {
	UserLimit       int
	UserRemaining   int
	ClientLimit     int
	ClientRemaining int
	UserReset       int64
}

type account struct {
	id       int64
	comments []imgur.Comment // newest first
}

type pageKey struct {
	user string
	page int
}

// MockImgurServer simulates the account, comments and comment endpoints
type MockImgurServer struct {
	server *httptest.Server

	mu           sync.RWMutex
	accounts     map[string]*account
	pageErrors   map[pageKey]int
	pageBodies   map[pageKey]string
	quota        *Quota
	decrement    bool
	clientID     string
	delay        time.Duration
	requests     []string
	authHeaders  []string
	userAgents   []string
	requestCount int32
}

// NewMockImgurServer starts a mock API server
func NewMockImgurServer() *MockImgurServer {
	m := &MockImgurServer{
		accounts:   make(map[string]*account),
		pageErrors: make(map[pageKey]int),
		pageBodies: make(map[pageKey]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/3/account/", m.handleAccount)
	mux.HandleFunc("/3/comment/", m.handleComment)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the base URL of the mock server
func (m *MockImgurServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server
func (m *MockImgurServer) Close() {
	m.server.Close()
}

// AddAccount registers an account and its history (newest first)
func (m *MockImgurServer) AddAccount(username string, id int64, comments []imgur.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[username] = &account{id: id, comments: append([]imgur.Comment(nil), comments...)}
}

// PostComments prepends newer comments to an account's history
func (m *MockImgurServer) PostComments(username string, comments ...imgur.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := m.accounts[username]
	if acct == nil {
		return
	}
	acct.comments = append(append([]imgur.Comment(nil), comments...), acct.comments...)
}

// SetPageError makes one comments page answer with the given status
func (m *MockImgurServer) SetPageError(username string, page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageErrors[pageKey{username, page}] = status
}

// SetPageBody makes one comments page answer 200 with a raw body
func (m *MockImgurServer) SetPageBody(username string, page int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageBodies[pageKey{username, page}] = body
}

// ClearPageOverrides removes all injected errors and bodies
func (m *MockImgurServer) ClearPageOverrides() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageErrors = make(map[pageKey]int)
	m.pageBodies = make(map[pageKey]string)
}

// SetQuota attaches rate-limit headers to every response. With decrement set,
// both remaining counters drop by one per request.
func (m *MockImgurServer) SetQuota(q Quota, decrement bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = &q
	m.decrement = decrement
}

// RequireClientID rejects requests that do not authenticate with clientID
func (m *MockImgurServer) RequireClientID(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientID = clientID
}

// SetDelay delays every response
func (m *MockImgurServer) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// RequestCount returns the total number of requests served
func (m *MockImgurServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// CommentPageRequests returns the page numbers requested for username, in order
func (m *MockImgurServer) CommentPageRequests(username string) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := "comments:" + username + ":"
	var pages []int
	for _, r := range m.requests {
		if strings.HasPrefix(r, prefix) {
			page, _ := strconv.Atoi(strings.TrimPrefix(r, prefix))
			pages = append(pages, page)
		}
	}
	return pages
}

// AuthHeaders returns the Authorization header of every request
func (m *MockImgurServer) AuthHeaders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.authHeaders...)
}

// UserAgents returns the User-Agent header of every request
func (m *MockImgurServer) UserAgents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.userAgents...)
}

// ResetCounters clears request bookkeeping
func (m *MockImgurServer) ResetCounters() {
	atomic.StoreInt32(&m.requestCount, 0)
	m.mu.Lock()
	m.requests = nil
	m.authHeaders = nil
	m.userAgents = nil
	m.mu.Unlock()
}

// begin records the request and applies shared behavior. It returns false if
// the response has already been written.
func (m *MockImgurServer) begin(w http.ResponseWriter, r *http.Request, label string) bool {
	atomic.AddInt32(&m.requestCount, 1)

	m.mu.Lock()
	m.requests = append(m.requests, label)
	m.authHeaders = append(m.authHeaders, r.Header.Get("Authorization"))
	m.userAgents = append(m.userAgents, r.Header.Get("User-Agent"))
	delay := m.delay
	clientID := m.clientID
	if m.quota != nil {
		q := *m.quota
		if m.decrement {
			m.quota.UserRemaining--
			m.quota.ClientRemaining--
		}
		w.Header().Set("X-RateLimit-UserLimit", strconv.Itoa(q.UserLimit))
		w.Header().Set("X-RateLimit-UserRemaining", strconv.Itoa(q.UserRemaining))
		w.Header().Set("X-RateLimit-ClientLimit", strconv.Itoa(q.ClientLimit))
		w.Header().Set("X-RateLimit-ClientRemaining", strconv.Itoa(q.ClientRemaining))
		if q.UserReset > 0 {
			w.Header().Set("X-RateLimit-UserReset", strconv.FormatInt(q.UserReset, 10))
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return false
		}
	}

	if clientID != "" && r.Header.Get("Authorization") != "Client-ID "+clientID {
		sendError(w, http.StatusForbidden, "Invalid client_id", r.URL.Path)
		return false
	}
	return true
}

// handleAccount serves /3/account/{user} and /3/account/{user}/comments
func (m *MockImgurServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/3/account/"), "/")
	parts := strings.Split(rest, "/")
	username := parts[0]

	if len(parts) == 2 && parts[1] == "comments" {
		m.handleComments(w, r, username)
		return
	}
	if len(parts) != 1 || username == "" {
		if m.begin(w, r, "unknown:"+rest) {
			sendError(w, http.StatusNotFound, "Unable to find the requested resource", r.URL.Path)
		}
		return
	}

	if !m.begin(w, r, "account:"+username) {
		return
	}

	m.mu.RLock()
	acct := m.accounts[username]
	m.mu.RUnlock()
	if acct == nil {
		sendError(w, http.StatusNotFound, "Unable to find account "+username, r.URL.Path)
		return
	}

	sendData(w, map[string]interface{}{
		"id":         acct.id,
		"url":        username,
		"reputation": 100,
		"created":    1400000000,
	})
}

func (m *MockImgurServer) handleComments(w http.ResponseWriter, r *http.Request, username string) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, err := strconv.Atoi(r.URL.Query().Get("perPage"))
	if err != nil || perPage <= 0 {
		perPage = 50
	}

	if !m.begin(w, r, fmt.Sprintf("comments:%s:%d", username, page)) {
		return
	}

	m.mu.RLock()
	status := m.pageErrors[pageKey{username, page}]
	body, hasBody := m.pageBodies[pageKey{username, page}]
	acct := m.accounts[username]
	var slice []imgur.Comment
	if acct != nil {
		start := page * perPage
		if start < len(acct.comments) {
			end := start + perPage
			if end > len(acct.comments) {
				end = len(acct.comments)
			}
			slice = append([]imgur.Comment(nil), acct.comments[start:end]...)
		}
	}
	m.mu.RUnlock()

	switch {
	case status != 0:
		sendError(w, status, http.StatusText(status), r.URL.Path)
	case hasBody:
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	case acct == nil:
		sendError(w, http.StatusNotFound, "Unable to find account "+username, r.URL.Path)
	default:
		if slice == nil {
			slice = []imgur.Comment{}
		}
		sendData(w, slice)
	}
}

// handleComment serves /3/comment/{id}
func (m *MockImgurServer) handleComment(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/3/comment/"), "/")
	if !m.begin(w, r, "comment:"+raw) {
		return
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid comment id", r.URL.Path)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acct := range m.accounts {
		for _, c := range acct.comments {
			if c.ID == id {
				sendData(w, c)
				return
			}
		}
	}
	sendError(w, http.StatusNotFound, "Unable to find comment", r.URL.Path)
}

func sendData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":    data,
		"success": true,
		"status":  http.StatusOK,
	})
}

func sendError(w http.ResponseWriter, status int, message, path string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]interface{}{
			"error":   message,
			"request": path,
			"method":  "GET",
		},
		"success": false,
		"status":  status,
	})
}

// Comments builds n comments, newest first, with ids n..1 and datetimes
// counting down one second from newest
func Comments(n int, newest int64) []imgur.Comment {
	comments := make([]imgur.Comment, n)
	for i := 0; i < n; i++ {
		id := int64(n - i)
		comments[i] = Comment(id, newest-int64(i))
	}
	return comments
}

// Comment builds a single comment with the given id and datetime
func Comment(id, datetime int64) imgur.Comment {
	return imgur.Comment{
		ID:       id,
		ImageID:  fmt.Sprintf("img%04d", id%10000),
		Author:   "tester",
		Text:     fmt.Sprintf("comment number %d", id),
		Datetime: datetime,
		Ups:      int(id % 7),
		Downs:    int(id % 3),
		Points:   int(id%7) - int(id%3),
	}
}
