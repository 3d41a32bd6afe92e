// Package logger provides structured logging for imgurcomments.
//
// It wraps zerolog behind a small Logger interface. Console output goes to
// stderr so that command results on stdout stay machine readable; an optional
// log file receives the same events. TestLogger captures messages for
// assertions in tests.
//
//	l, err := logger.New(&cfg.Logging)
//	l.WithField("account", id).InfoWithFields("sync finished", map[string]interface{}{
//	    "live": 12,
//	})
package logger
