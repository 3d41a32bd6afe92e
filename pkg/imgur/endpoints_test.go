package imgur

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentsPath(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		page     int
		perPage  int
		expected string
	}{
		{
			name:     "first page",
			user:     "someone",
			page:     0,
			perPage:  100,
			expected: "/3/account/someone/comments?page=0&perPage=100",
		},
		{
			name:     "later page with small size",
			user:     "someone",
			page:     7,
			perPage:  5,
			expected: "/3/account/someone/comments?page=7&perPage=5",
		},
		{
			name:     "username needing escape",
			user:     "a b",
			page:     1,
			perPage:  10,
			expected: "/3/account/a%20b/comments?page=1&perPage=10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CommentsPath(APIVersion, tt.user, tt.page, tt.perPage)
			assert.Equal(t, tt.expected, result)

			_, err := url.Parse(result)
			assert.NoError(t, err)
		})
	}
}

func TestAccountAndCommentPath(t *testing.T) {
	assert.Equal(t, "/3/account/someone", AccountPath("3", "someone"))
	assert.Equal(t, "/3/comment/42", CommentPath("3", 42))
}

func TestPermalink(t *testing.T) {
	c := Comment{ID: 1234, ImageID: "abcDEF", ParentID: 999}
	assert.Equal(t, "https://imgur.com/gallery/abcDEF/comment/1234", Permalink(c))
}

func TestParseCommentIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		expected   int64
		wantErr    bool
	}{
		{name: "plain id", identifier: "1234", expected: 1234},
		{name: "padded id", identifier: "  99 ", expected: 99},
		{name: "https permalink", identifier: "https://imgur.com/gallery/abc/comment/555", expected: 555},
		{name: "www permalink with slash", identifier: "http://www.imgur.com/gallery/abc/comment/12/", expected: 12},
		{name: "bare host permalink", identifier: "imgur.com/gallery/xyz/comment/7", expected: 7},
		{name: "zero id", identifier: "0", wantErr: true},
		{name: "zero id permalink", identifier: "https://imgur.com/gallery/abc/comment/0", wantErr: true},
		{name: "negative id", identifier: "-5", wantErr: true},
		{name: "not a comment link", identifier: "https://imgur.com/gallery/abc", wantErr: true},
		{name: "other host", identifier: "https://example.com/gallery/abc/comment/5", wantErr: true},
		{name: "empty", identifier: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseCommentIdentifier(tt.identifier)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}
