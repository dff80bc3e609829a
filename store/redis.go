package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "opmatrix:history:"

// RedisStore keeps one JSON record per run name.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    log.Logger
}

var _ HistoryStore = (*RedisStore)(nil)

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps client. A ttl of zero keeps records forever.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration, logger log.Logger) *RedisStore {
	if logger == nil {
		logger = log.New()
	}
	return &RedisStore{client: client, ttl: ttl, log: logger.New("component", "history")}
}

func (r *RedisStore) Save(ctx context.Context, runName string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+runName, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save history for %s: %w", runName, err)
	}
	r.log.Debug("Saved run history", "run", runName, "run_id", rec.RunID, "items", len(rec.Statuses))
	return nil
}

func (r *RedisStore) Load(ctx context.Context, runName string) (*Record, error) {
	data, err := r.client.Get(ctx, keyPrefix+runName).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", runName, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode history for %s: %w", runName, err)
	}
	for key, status := range rec.Statuses {
		if !status.IsValid() {
			r.log.Warn("Dropping history entry with unknown status", "key", key, "status", status)
			delete(rec.Statuses, key)
		}
	}
	return &rec, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
