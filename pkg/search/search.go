// Package search matches comment text against a literal or regular
// expression query while pulling from a comment cursor.
package search

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"imgurcomments/pkg/imgur"
)

// DefaultLimit is the number of hits shown when no limit is given
const DefaultLimit = 20

// Options configures a search
type Options struct {
	Query         string
	Regex         bool
	CaseSensitive bool
	// Limit caps the number of hits; 0 or less means unbounded
	Limit int
	// StopWhenFound ends the search at the first hit
	StopWhenFound bool
}

// Matcher tests comment text against a query
type Matcher struct {
	re    *regexp.Regexp
	query string
	fold  bool
}

// NewMatcher compiles the query of opts
func NewMatcher(opts Options) (*Matcher, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	if opts.Regex {
		pattern := opts.Query
		if !opts.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", opts.Query, err)
		}
		return &Matcher{re: re}, nil
	}

	m := &Matcher{query: opts.Query, fold: !opts.CaseSensitive}
	if m.fold {
		m.query = strings.ToLower(m.query)
	}
	return m, nil
}

// Match reports whether text contains the query
func (m *Matcher) Match(text string) bool {
	if m.re != nil {
		return m.re.MatchString(text)
	}
	if m.fold {
		return strings.Contains(strings.ToLower(text), m.query)
	}
	return strings.Contains(text, m.query)
}

// Source yields comments newest first until io.EOF
type Source interface {
	Next(ctx context.Context) (imgur.Comment, error)
}

// Outcome summarizes a finished search
type Outcome struct {
	Hits    int
	Scanned int
	// LimitReached is set when a match beyond the limit exists
	LimitReached bool
	// Stopped is set when the search ended at the first hit
	Stopped bool
}

// Run pulls comments from src until it is exhausted, the limit is exceeded
// or, with StopWhenFound, the first hit. onHit is called for every hit in
// order. Pulling stops as soon as the outcome is known, so no further pages
// are requested.
func Run(ctx context.Context, src Source, opts Options, onHit func(imgur.Comment) error) (*Outcome, error) {
	matcher, err := NewMatcher(opts)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	for {
		c, err := src.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out.Scanned++

		if !matcher.Match(c.Text) {
			continue
		}
		if opts.Limit > 0 && out.Hits >= opts.Limit {
			out.LimitReached = true
			return out, nil
		}

		out.Hits++
		if onHit != nil {
			if err := onHit(c); err != nil {
				return out, err
			}
		}
		if opts.StopWhenFound {
			out.Stopped = true
			return out, nil
		}
	}
}
