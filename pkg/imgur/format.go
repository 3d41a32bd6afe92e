package imgur

import (
	"fmt"
	"strings"
	"time"
)

// FormatHuman renders a comment as its text, permalink, local time and vote split
func FormatHuman(c Comment, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	b.WriteString(c.Text)
	b.WriteString("\n\t")
	b.WriteString(Permalink(c))
	b.WriteString("\n\t")
	b.WriteString(time.Unix(c.Datetime, 0).In(loc).Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  %d/%d", c.Ups, c.Downs)
	return b.String()
}

// FormatLink renders a comment as its permalink only
func FormatLink(c Comment) string {
	return Permalink(c)
}

// VoteRatio returns the share of upvotes among all votes, or 0 with no votes
func VoteRatio(c Comment) float64 {
	total := c.Ups + c.Downs
	if total == 0 {
		return 0
	}
	return float64(c.Ups) / float64(total)
}
