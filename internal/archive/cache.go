package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/arsipdigital/arsipktp/internal/platform/constants"
	"github.com/arsipdigital/arsipktp/internal/record"
)

// SnapshotCache stores the last good archive listing in Redis so that a
// restarted server can serve the history view before its first live refresh.
//
// Every method tolerates a nil receiver, which is how the service runs when
// no Redis URL is configured. Cache failures are logged and swallowed; the
// cache is an optimization, never a source of truth.
type SnapshotCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewSnapshotCache wraps an established Redis client.
func NewSnapshotCache(client *redis.Client, logger *slog.Logger) *SnapshotCache {
	return &SnapshotCache{client: client, logger: logger}
}

// Load returns the cached listing, or nil when the cache is disabled, empty,
// or unreadable.
func (c *SnapshotCache) Load(ctx context.Context) []record.Record {
	if c == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, constants.RedisKeyHistorySnapshot).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("history_snapshot_load_failed", slog.Any("error", err))
		}
		return nil
	}

	var history []record.Record
	if err := json.Unmarshal(raw, &history); err != nil {
		c.logger.Warn("history_snapshot_corrupt", slog.Any("error", err))
		return nil
	}
	return history
}

// Save overwrites the cached listing. Failures are returned for logging but
// callers are expected to treat them as non-fatal.
func (c *SnapshotCache) Save(ctx context.Context, history []record.Record) error {
	if c == nil {
		return nil
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("archive: encode snapshot: %w", err)
	}

	if err := c.client.Set(ctx, constants.RedisKeyHistorySnapshot, raw, constants.HistorySnapshotTTL).Err(); err != nil {
		return fmt.Errorf("archive: store snapshot: %w", err)
	}
	return nil
}
