package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"imgurcomments/pkg/errors"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
)

// createHistoryTableSQL holds one row per cached comment; position 0 is the newest
const createHistoryTableSQL = `
CREATE TABLE IF NOT EXISTS comment_history (
    account_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    comment_id BIGINT NOT NULL,
    datetime BIGINT NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (account_id, position)
);
`

// createMetaTableSQL records when each account's history was last replaced
const createMetaTableSQL = `
CREATE TABLE IF NOT EXISTS history_meta (
    account_id TEXT PRIMARY KEY,
    updated_at TEXT NOT NULL
);
`

// SQLStore keeps histories in a SQL database. The same schema serves the
// sqlite and postgres backends.
type SQLStore struct {
	db       *sqlx.DB
	backend  string
	location string
	logger   logger.Logger
}

type historyRow struct {
	Payload string `db:"payload"`
}

type historySummary struct {
	Count  int   `db:"count"`
	Newest int64 `db:"newest"`
	Oldest int64 `db:"oldest"`
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path
func NewSQLiteStore(ctx context.Context, path string, log logger.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "failed to create database directory")
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "failed to open database")
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return newSQLStore(ctx, db, "sqlite", path, log)
}

// NewPostgresStore connects to the database described by dsn
func NewPostgresStore(ctx context.Context, dsn string, log logger.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New(errors.ErrorTypeCacheIO, 0, "postgres dsn is empty")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "failed to connect to postgres")
	}

	return newSQLStore(ctx, db, "postgres", "postgres", log)
}

func newSQLStore(ctx context.Context, db *sqlx.DB, backend, location string, log logger.Logger) (*SQLStore, error) {
	for _, stmt := range []string{createHistoryTableSQL, createMetaTableSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "failed to create schema")
		}
	}

	return &SQLStore{
		db:       db,
		backend:  backend,
		location: location,
		logger:   log.WithField("component", "cache."+backend),
	}, nil
}

// Load reads the cached history of accountID in position order
func (s *SQLStore) Load(ctx context.Context, accountID string) ([]imgur.Comment, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	comments, err := s.read(ctx, accountID)
	if err != nil {
		return coldStart(s.logger, accountID, "read", err), nil
	}

	s.logger.DebugWithFields("cached history loaded", map[string]interface{}{
		"account_id": accountID,
		"count":      len(comments),
	})
	return comments, nil
}

func (s *SQLStore) read(ctx context.Context, accountID string) ([]imgur.Comment, error) {
	var rows []historyRow
	query := s.db.Rebind(`SELECT payload FROM comment_history WHERE account_id = ? ORDER BY position`)
	if err := s.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "read cache for %s", accountID)
	}

	comments := make([]imgur.Comment, 0, len(rows))
	for i, row := range rows {
		var c imgur.Comment
		if err := json.Unmarshal([]byte(row.Payload), &c); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "decode cached comment %d for %s", i, accountID)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// Save replaces the cached history of accountID in one transaction
func (s *SQLStore) Save(ctx context.Context, accountID string, comments []imgur.Comment) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}

	if err := s.replace(ctx, accountID, comments); err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "save cache for %s", accountID)
	}

	s.logger.DebugWithFields("cached history saved", map[string]interface{}{
		"account_id": accountID,
		"count":      len(comments),
	})
	return nil
}

func (s *SQLStore) replace(ctx context.Context, accountID string, comments []imgur.Comment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM comment_history WHERE account_id = ?`), accountID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(
		`INSERT INTO comment_history (account_id, position, comment_id, datetime, payload) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range comments {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode comment %d: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, accountID, i, c.ID, c.Datetime, string(payload)); err != nil {
			return fmt.Errorf("insert comment %d: %w", c.ID, err)
		}
	}

	upsert := tx.Rebind(`
		INSERT INTO history_meta (account_id, updated_at) VALUES (?, ?)
		ON CONFLICT (account_id) DO UPDATE SET updated_at = excluded.updated_at
	`)
	if _, err := tx.ExecContext(ctx, upsert, accountID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}

	return tx.Commit()
}

// Delete removes the cached history of accountID
func (s *SQLStore) Delete(ctx context.Context, accountID string) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "delete cache for %s", accountID)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM comment_history WHERE account_id = ?`,
		`DELETE FROM history_meta WHERE account_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), accountID); err != nil {
			return errors.Wrap(errors.ErrorTypeCacheIO, err, "delete cache for %s", accountID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "delete cache for %s", accountID)
	}
	return nil
}

// Info summarizes the cached history of accountID
func (s *SQLStore) Info(ctx context.Context, accountID string) (*Info, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	info := &Info{AccountID: accountID, Backend: s.backend, Location: s.location}

	var updated string
	err := s.db.GetContext(ctx, &updated, s.db.Rebind(`SELECT updated_at FROM history_meta WHERE account_id = ?`), accountID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return info, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "read cache metadata for %s", accountID)
	}
	info.Exists = true
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		info.ModifiedAt = t
	}

	var summary historySummary
	query := s.db.Rebind(`
		SELECT COUNT(*) AS count,
		       COALESCE(MAX(datetime), 0) AS newest,
		       COALESCE(MIN(datetime), 0) AS oldest
		FROM comment_history WHERE account_id = ?
	`)
	if err := s.db.GetContext(ctx, &summary, query, accountID); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "summarize cache for %s", accountID)
	}
	info.Count = summary.Count
	info.Newest = summary.Newest
	info.Oldest = summary.Oldest
	return info, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
