// Package cache persists the known comment history of each account.
//
// A history is stored newest first and always replaced as a whole. Every
// backend makes the replacement atomic in its own way:
//
//   - file: <directory>/<account id>.json written through a temporary file and rename
//   - sqlite, postgres: one transaction deletes and re-inserts the account's rows
//   - redis: the JSON array and its timestamp are written in one MULTI/EXEC
//
// Loading never fails a sync. A missing entry is an empty history, and an
// unreadable or corrupt entry is logged and also treated as empty, which makes
// the next sync a cold start that rewrites it.
package cache
