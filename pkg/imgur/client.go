package imgur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imgurcomments/pkg/errors"
	"imgurcomments/pkg/logger"
)

const defaultUserAgent = "imgurcomments/1.0"

// Client represents an Imgur API client. A Client is safe for concurrent use;
// WithCredential returns a copy carrying a different Client-ID.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	version    string
	logger     logger.Logger
}

// Page is one decoded page of comments together with the response metadata
// needed for quota inspection
type Page struct {
	Comments   []Comment
	Header     http.Header
	StatusCode int
}

// NewClient creates a new API client. A zero timeout leaves the transport default.
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": defaultUserAgent,
			"Accept":     "application/json",
		},
		baseURL: BaseURL,
		version: APIVersion,
		logger:  log,
	}
}

// NewClientWithHTTP creates a client around an existing http.Client
func NewClientWithHTTP(httpClient *http.Client, log logger.Logger) *Client {
	c := NewClient(0, log)
	c.httpClient = httpClient
	return c
}

// SetBaseURL points the client at a different API host
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SetAPIVersion overrides the version path prefix
func (c *Client) SetAPIVersion(version string) {
	if version != "" {
		c.version = version
	}
}

// SetUserAgent sets the User-Agent header
func (c *Client) SetUserAgent(userAgent string) {
	if userAgent != "" {
		c.headers["User-Agent"] = userAgent
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// WithCredential returns a copy of the client that authenticates with clientID
func (c *Client) WithCredential(clientID string) *Client {
	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	if clientID != "" {
		headers["Authorization"] = "Client-ID " + clientID
	}

	return &Client{
		httpClient: c.httpClient,
		headers:    headers,
		baseURL:    c.baseURL,
		version:    c.version,
		logger:     c.logger,
	}
}

// HasCredential reports whether an Authorization header is configured
func (c *Client) HasCredential() bool {
	_, ok := c.headers["Authorization"]
	return ok
}

// doRequest performs an HTTP GET with the configured headers
func (c *Client) doRequest(ctx context.Context, path string) (*http.Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request")
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    url,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.Wrap(errors.ErrorTypeTransport, err, "request to %s failed", path)
	}

	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, duration)
	return resp, nil
}

// getEnvelope performs a GET and decodes the response envelope. The response
// headers and status are returned even when err is non-nil, as long as a
// response was received.
func (c *Client) getEnvelope(ctx context.Context, path string) (*Envelope, http.Header, int, error) {
	resp, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, resp.StatusCode, errors.Wrap(errors.ErrorTypeTransport, err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.Header, resp.StatusCode, c.statusError(path, resp.StatusCode, resp.Header, body)
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, resp.Header, resp.StatusCode, &errors.Error{
			Type:    errors.ErrorTypeMalformed,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, resp.Header, resp.StatusCode, errors.New(errors.ErrorTypeMalformed, resp.StatusCode, "response has no data field")
	}

	return &envelope, resp.Header, resp.StatusCode, nil
}

// statusError builds the error for a non-200 response, using the API's own
// error text when the body carries one
func (c *Client) statusError(path string, status int, header http.Header, body []byte) error {
	message := http.StatusText(status)

	var envelope Envelope
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Data) > 0 {
		var apiErr apiError
		if json.Unmarshal(envelope.Data, &apiErr) == nil && apiErr.Error != nil {
			switch v := apiErr.Error.(type) {
			case string:
				message = v
			case map[string]interface{}:
				if m, ok := v["message"].(string); ok {
					message = m
				}
			}
		}
	}

	fields := map[string]interface{}{
		"status": status,
		"path":   path,
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		c.logger.ErrorWithFields("API returned an error status", fields)
	} else {
		c.logger.WarnWithFields("API returned an error status", fields)
	}

	return &errors.Error{
		Type:       errors.ErrorTypeHTTPStatus,
		Message:    fmt.Sprintf("%s returned %d: %s", path, status, message),
		Code:       status,
		RetryAfter: retryAfter(header, time.Now()),
	}
}

// retryAfter reads a Retry-After header given either in seconds or as an
// HTTP date
func retryAfter(h http.Header, now time.Time) time.Duration {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// FetchCommentsPage fetches one page of an account's comments, newest first.
// The returned Page is non-nil whenever a response was received, so callers
// can inspect quota headers on failures too.
func (c *Client) FetchCommentsPage(ctx context.Context, user string, page, perPage int) (*Page, error) {
	path := CommentsPath(c.version, user, page, perPage)

	envelope, header, status, err := c.getEnvelope(ctx, path)
	result := &Page{Header: header, StatusCode: status}
	if err != nil {
		if header == nil {
			return nil, err
		}
		return result, err
	}

	var wire []wireComment
	if err := json.Unmarshal(envelope.Data, &wire); err != nil {
		return result, &errors.Error{
			Type:    errors.ErrorTypeMalformed,
			Message: fmt.Sprintf("comments page %d: data is not a list of comments: %v", page, err),
			Code:    status,
			Err:     err,
		}
	}

	result.Comments = make([]Comment, 0, len(wire))
	for i, w := range wire {
		comment, err := w.toComment(i)
		if err != nil {
			return result, fmt.Errorf("comments page %d: %w", page, err)
		}
		result.Comments = append(result.Comments, comment)
	}

	c.logger.DebugWithFields("fetched comments page", map[string]interface{}{
		"user":  user,
		"page":  page,
		"items": len(result.Comments),
	})

	return result, nil
}

// FetchAccount resolves a username to its account record
func (c *Client) FetchAccount(ctx context.Context, user string) (*Account, error) {
	envelope, _, status, err := c.getEnvelope(ctx, AccountPath(c.version, user))
	if err != nil {
		return nil, err
	}

	var account Account
	if err := json.Unmarshal(envelope.Data, &account); err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeMalformed,
			Message: fmt.Sprintf("account %s: %v", user, err),
			Code:    status,
			Err:     err,
		}
	}
	if account.ID == 0 {
		return nil, errors.New(errors.ErrorTypeMalformed, status, "account %s has no id", user)
	}

	return &account, nil
}

// FetchComment fetches a single comment by id
func (c *Client) FetchComment(ctx context.Context, id int64) (*Comment, error) {
	envelope, _, status, err := c.getEnvelope(ctx, CommentPath(c.version, id))
	if err != nil {
		return nil, err
	}

	var wire wireComment
	if err := json.Unmarshal(envelope.Data, &wire); err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeMalformed,
			Message: fmt.Sprintf("comment %d: %v", id, err),
			Code:    status,
			Err:     err,
		}
	}

	comment, err := wire.toComment(0)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}
