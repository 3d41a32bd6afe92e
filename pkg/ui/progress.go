package ui

import (
	"fmt"
	"sync"
	"time"

	"imgurcomments/pkg/commentsync"
	"imgurcomments/pkg/ratelimit"
)

// SyncTracker keeps track of how far a sync or a scan has progressed
type SyncTracker struct {
	mu       sync.Mutex
	printer  *Printer
	user     string
	scanned  int
	matches  int
	warnings int
	start    time.Time
	now      func() time.Time
}

// NewSyncTracker creates a tracker that reports on p
func NewSyncTracker(p *Printer, user string) *SyncTracker {
	if p == nil {
		p = std
	}
	return &SyncTracker{
		printer: p,
		user:    user,
		start:   time.Now(),
		now:     time.Now,
	}
}

// Scanned records one comment pulled from the history
func (t *SyncTracker) Scanned() {
	t.mu.Lock()
	t.scanned++
	t.mu.Unlock()
}

// Matched records one search hit
func (t *SyncTracker) Matched() {
	t.mu.Lock()
	t.matches++
	t.mu.Unlock()
}

// QuotaWarning prints w and counts it. It matches the OnQuotaWarning hook of
// commentsync.Request.
func (t *SyncTracker) QuotaWarning(w *ratelimit.QuotaWarning) {
	t.mu.Lock()
	t.warnings++
	t.mu.Unlock()
	t.printer.PrintWarning("API quota running low", w.Error())
}

// Counts returns the scanned, matched and quota warning counters
func (t *SyncTracker) Counts() (scanned, matches, warnings int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scanned, t.matches, t.warnings
}

// Elapsed returns the time since tracking started
func (t *SyncTracker) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}

// Rate returns comments scanned per second
func (t *SyncTracker) Rate() float64 {
	seconds := t.Elapsed().Seconds()
	if seconds <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.scanned) / seconds
}

// Line renders the current status on one line
func (t *SyncTracker) Line() string {
	scanned, matches, warnings := t.Counts()
	line := fmt.Sprintf("%s %s scanned: %d", t.printer.Green("[SYNC]"), t.user, scanned)
	if matches > 0 {
		line += fmt.Sprintf(" | matches: %d", matches)
	}
	if warnings > 0 {
		line += " | " + t.printer.Yellow(fmt.Sprintf("quota warnings: %d", warnings))
	}
	return line + t.printer.Dim(fmt.Sprintf(" | %.1f/s", t.Rate()))
}

// PrintProgress redraws the status line. It does nothing unless the printer
// is attached to a terminal.
func (t *SyncTracker) PrintProgress() {
	if !t.printer.Interactive() {
		return
	}
	t.printer.Printf("\r%s", t.Line())
}

// PrintSummary prints the outcome of a finished sync
func (t *SyncTracker) PrintSummary(stats commentsync.Stats, complete bool) {
	if t.printer.Interactive() {
		t.printer.Printf("\n")
	}
	t.printer.PrintInfo("Account", t.user)
	t.printer.PrintInfo("Cached comments", fmt.Sprintf("%d", stats.Cached))
	t.printer.PrintInfo("New comments", fmt.Sprintf("%d (%d page requests)", stats.Live, stats.Pages))
	if stats.QuotaWarnings > 0 {
		t.printer.PrintWarning("Quota warnings", stats.QuotaWarnings)
	}
	if stats.Persisted {
		t.printer.PrintInfo("Cache", "updated")
	}
	t.printer.PrintInfo("Elapsed", t.Elapsed().Round(time.Millisecond).String())
	if complete {
		t.printer.PrintSuccess("All comments retrieved")
	} else {
		t.printer.PrintWarning("Limit reached, more comments available")
	}
}
