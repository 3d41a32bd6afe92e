package imgur

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	// BaseURL is the default API host
	BaseURL = "https://api.imgur.com"

	// APIVersion is the path prefix for API version 3
	APIVersion = "3"

	// PermalinkTemplate builds the public URL of a comment from image id and comment id
	PermalinkTemplate = "https://imgur.com/gallery/%s/comment/%d"
)

var (
	permalinkPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.)?imgur\.com/gallery/[^/]+/comment/(\d+)/?$`)
	commentIDPattern = regexp.MustCompile(`^\d+$`)
)

// CommentsPath returns the path of one page of an account's comments
func CommentsPath(version, user string, page, perPage int) string {
	params := url.Values{}
	params.Set("perPage", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("/%s/account/%s/comments?%s", version, url.PathEscape(user), params.Encode())
}

// AccountPath returns the path of an account's base record
func AccountPath(version, user string) string {
	return fmt.Sprintf("/%s/account/%s", version, url.PathEscape(user))
}

// CommentPath returns the path of a single comment
func CommentPath(version string, id int64) string {
	return fmt.Sprintf("/%s/comment/%d", version, id)
}

// Permalink returns the public URL of a comment
func Permalink(c Comment) string {
	return fmt.Sprintf(PermalinkTemplate, c.ImageID, c.ID)
}

// ParseCommentIdentifier accepts a numeric comment id or a comment permalink
// and returns the comment id
func ParseCommentIdentifier(identifier string) (int64, error) {
	identifier = strings.TrimSpace(identifier)

	var raw string
	if m := permalinkPattern.FindStringSubmatch(identifier); m != nil {
		raw = m[1]
	} else if commentIDPattern.MatchString(identifier) {
		raw = identifier
	} else {
		return 0, fmt.Errorf("unrecognized comment identifier %q", identifier)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid comment id %q: %w", raw, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("comment id 0 is the root of a thread and does not exist")
	}
	return id, nil
}
