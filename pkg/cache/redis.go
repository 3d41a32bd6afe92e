package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"imgurcomments/pkg/errors"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
)

// DefaultRedisPrefix namespaces history keys
const DefaultRedisPrefix = "imgurcomments:history:"

// RedisStore keeps each account's history as one JSON string value
type RedisStore struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

// NewRedisStore connects to the server described by redisURL.
// URL format: redis://[:password@]host:port[/db]
func NewRedisStore(ctx context.Context, redisURL, prefix string, log logger.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.ErrorTypeCacheIO, err, "redis ping")
	}

	return NewRedisStoreWithClient(client, prefix, log), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: log.WithField("component", "cache.redis"),
	}
}

func (s *RedisStore) key(accountID string) string {
	return s.prefix + accountID
}

func (s *RedisStore) updatedKey(accountID string) string {
	return s.prefix + accountID + ":updated"
}

// Load reads the cached history of accountID
func (s *RedisStore) Load(ctx context.Context, accountID string) ([]imgur.Comment, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	comments, found, err := s.read(ctx, accountID)
	if err != nil {
		return coldStart(s.logger, accountID, "read", err), nil
	}
	if !found {
		return []imgur.Comment{}, nil
	}
	return comments, nil
}

func (s *RedisStore) read(ctx context.Context, accountID string) ([]imgur.Comment, bool, error) {
	data, err := s.client.Get(ctx, s.key(accountID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrorTypeCacheIO, err, "read cache for %s", accountID)
	}

	var comments []imgur.Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, false, errors.Wrap(errors.ErrorTypeCacheIO, err, "decode cache for %s", accountID)
	}
	return nonNil(comments), true, nil
}

// Save replaces the cached history of accountID in one MULTI/EXEC block
func (s *RedisStore) Save(ctx context.Context, accountID string, comments []imgur.Comment) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}

	payload, err := json.Marshal(nonNil(comments))
	if err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "encode cache for %s", accountID)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(accountID), payload, 0)
		pipe.Set(ctx, s.updatedKey(accountID), time.Now().UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "save cache for %s", accountID)
	}

	s.logger.DebugWithFields("cached history saved", map[string]interface{}{
		"account_id": accountID,
		"count":      len(comments),
		"bytes":      len(payload),
	})
	return nil
}

// Delete removes the cached history of accountID
func (s *RedisStore) Delete(ctx context.Context, accountID string) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(accountID), s.updatedKey(accountID)).Err(); err != nil {
		return errors.Wrap(errors.ErrorTypeCacheIO, err, "delete cache for %s", accountID)
	}
	return nil
}

// Info summarizes the cached history of accountID
func (s *RedisStore) Info(ctx context.Context, accountID string) (*Info, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	info := &Info{AccountID: accountID, Backend: "redis", Location: s.key(accountID)}

	comments, found, err := s.read(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !found {
		return info, nil
	}
	info.Exists = true
	summarize(info, comments)

	if updated, err := s.client.Get(ctx, s.updatedKey(accountID)).Result(); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			info.ModifiedAt = t
		}
	}
	return info, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
