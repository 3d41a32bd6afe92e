package search

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgurcomments/pkg/imgur"
)

type sliceSource struct {
	comments []imgur.Comment
	pos      int
	err      error
}

func (s *sliceSource) Next(ctx context.Context) (imgur.Comment, error) {
	if s.pos >= len(s.comments) {
		if s.err != nil {
			return imgur.Comment{}, s.err
		}
		return imgur.Comment{}, io.EOF
	}
	c := s.comments[s.pos]
	s.pos++
	return c, nil
}

func texts(texts ...string) []imgur.Comment {
	out := make([]imgur.Comment, len(texts))
	for i, t := range texts {
		out[i] = imgur.Comment{ID: int64(i + 1), Datetime: int64(1000 - i), Text: t}
	}
	return out
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		text string
		want bool
	}{
		{"literal ignores case by default", Options{Query: "Cat"}, "my cAT sat", true},
		{"literal case sensitive", Options{Query: "Cat", CaseSensitive: true}, "my cat sat", false},
		{"literal case sensitive match", Options{Query: "Cat", CaseSensitive: true}, "my Cat sat", true},
		{"literal treats metacharacters as text", Options{Query: "a.c"}, "abc", false},
		{"regex", Options{Query: `^\d+ points`, Regex: true}, "12 points to you", true},
		{"regex ignores case", Options{Query: "hello", Regex: true}, "HELLO there", true},
		{"regex case sensitive", Options{Query: "hello", Regex: true, CaseSensitive: true}, "HELLO there", false},
		{"no match", Options{Query: "dog"}, "my cat sat", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatcher(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.text))
		})
	}
}

func TestMatcherErrors(t *testing.T) {
	_, err := NewMatcher(Options{})
	assert.Error(t, err)

	_, err = NewMatcher(Options{Query: "(unclosed", Regex: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func TestRun(t *testing.T) {
	history := texts("cat one", "dog", "cat two", "cat three", "bird")

	tests := []struct {
		name         string
		opts         Options
		wantHits     []int64
		wantScanned  int
		limitReached bool
		stopped      bool
	}{
		{
			name:        "all hits",
			opts:        Options{Query: "cat"},
			wantHits:    []int64{1, 3, 4},
			wantScanned: 5,
		},
		{
			name:         "limit reached by a further match",
			opts:         Options{Query: "cat", Limit: 2},
			wantHits:     []int64{1, 3},
			wantScanned:  4,
			limitReached: true,
		},
		{
			name:        "limit equal to hit count scans everything",
			opts:        Options{Query: "cat", Limit: 3},
			wantHits:    []int64{1, 3, 4},
			wantScanned: 5,
		},
		{
			name:        "stop when found",
			opts:        Options{Query: "cat", StopWhenFound: true},
			wantHits:    []int64{1},
			wantScanned: 1,
			stopped:     true,
		},
		{
			name:        "no hits",
			opts:        Options{Query: "fish"},
			wantScanned: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits []int64
			out, err := Run(context.Background(), &sliceSource{comments: history}, tt.opts, func(c imgur.Comment) error {
				hits = append(hits, c.ID)
				return nil
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantHits, hits)
			assert.Equal(t, len(tt.wantHits), out.Hits)
			assert.Equal(t, tt.wantScanned, out.Scanned)
			assert.Equal(t, tt.limitReached, out.LimitReached)
			assert.Equal(t, tt.stopped, out.Stopped)
		})
	}
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("page 2 failed")
	src := &sliceSource{comments: texts("cat"), err: boom}

	out, err := Run(context.Background(), src, Options{Query: "cat"}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, out.Hits)
}

func TestRunHitError(t *testing.T) {
	boom := errors.New("stdout closed")
	src := &sliceSource{comments: texts("cat", "cat")}

	out, err := Run(context.Background(), src, Options{Query: "cat"}, func(imgur.Comment) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, out.Scanned)
}
