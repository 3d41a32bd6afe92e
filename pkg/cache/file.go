package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"io/fs"
	"os"

	"imgurcomments/pkg/errors"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
	"imgurcomments/pkg/storage"
)

// FileStore keeps one JSON array per account at <root>/<accountID>.json
type FileStore struct {
	files  *storage.Manager
	logger logger.Logger
}

// NewFileStore creates a file-backed store rooted at dir
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	files, err := storage.NewManager(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "file cache")
	}
	return &FileStore{
		files:  files,
		logger: log.WithField("component", "cache.file"),
	}, nil
}

func fileName(accountID string) string {
	return accountID + ".json"
}

// Path returns the cache file of accountID
func (s *FileStore) Path(accountID string) string {
	return s.files.Path(fileName(accountID))
}

// Load reads the cached history of accountID
func (s *FileStore) Load(ctx context.Context, accountID string) ([]imgur.Comment, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	comments, err := s.read(accountID)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			s.logger.DebugWithFields("no cached history", map[string]interface{}{
				"account_id": accountID,
			})
			return []imgur.Comment{}, nil
		}
		return coldStart(s.logger, accountID, "read", err), nil
	}

	s.logger.DebugWithFields("cached history loaded", map[string]interface{}{
		"account_id": accountID,
		"count":      len(comments),
	})
	return comments, nil
}

func (s *FileStore) read(accountID string) ([]imgur.Comment, error) {
	data, err := s.files.Read(fileName(accountID))
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "read cache for %s", accountID)
	}

	var comments []imgur.Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "decode cache for %s", accountID)
	}
	return nonNil(comments), nil
}

// Save atomically replaces the cached history of accountID
func (s *FileStore) Save(ctx context.Context, accountID string, comments []imgur.Comment) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}

	err := s.files.WriteAtomic(fileName(accountID), func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(nonNil(comments))
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "save cache for %s", accountID)
	}

	s.logger.DebugWithFields("cached history saved", map[string]interface{}{
		"account_id": accountID,
		"count":      len(comments),
		"path":       s.Path(accountID),
	})
	return nil
}

// Delete removes the cache file of accountID
func (s *FileStore) Delete(ctx context.Context, accountID string) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}
	if err := s.files.Remove(fileName(accountID)); err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "delete cache for %s", accountID)
	}
	return nil
}

// Info summarizes the cache file of accountID
func (s *FileStore) Info(ctx context.Context, accountID string) (*Info, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	info := &Info{AccountID: accountID, Backend: "file", Location: s.Path(accountID)}

	stat, err := s.files.Stat(fileName(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "stat cache for %s", accountID)
	}
	info.Exists = true
	info.ModifiedAt = stat.ModTime()

	comments, err := s.read(accountID)
	if err != nil {
		return info, err
	}
	summarize(info, comments)
	return info, nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}
