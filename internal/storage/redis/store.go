package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"upwatch/internal/models"
	"upwatch/internal/storage"
)

const (
	targetsKey  = "targets:zset"
	settingsKey = "settings"
)

func targetKey(id string) string { return fmt.Sprintf("target:%s:info", id) }
func healthKey(id string) string { return fmt.Sprintf("target:%s:health", id) }

// RedisStore implements the storage.Storer interface on Redis. It is the
// alternate backend for deployments where several clients share one cache.
type RedisStore struct {
	client *redis.Client
}

// New creates a RedisStore and verifies connectivity.
func New(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

// CreateTarget registers a new target.
func (s *RedisStore) CreateTarget(ctx context.Context, target *models.Target) (*models.Target, error) {
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, targetsKey, redis.Z{
		Score:  float64(target.CreatedAt.UnixNano()),
		Member: target.ID,
	})
	pipe.HSet(ctx, targetKey(target.ID),
		"name", target.Name,
		"url", target.URL,
		"group_ref", target.GroupRef,
		"created_at", target.CreatedAt.Format(time.RFC3339Nano),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipe execution failed: %w", err)
	}
	return target, nil
}

// GetTargetByID retrieves a single target.
func (s *RedisStore) GetTargetByID(ctx context.Context, id string) (*models.Target, error) {
	info, err := s.client.HGetAll(ctx, targetKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get target %s: %w", id, err)
	}
	if info["url"] == "" {
		return nil, storage.ErrNotFound
	}
	return targetFromHash(id, info), nil
}

// ListTargets retrieves all registered targets in registration order.
func (s *RedisStore) ListTargets(ctx context.Context) ([]models.Target, error) {
	ids, err := s.client.ZRange(ctx, targetsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list target ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, targetKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipe execution failed: %w", err)
	}

	targets := make([]models.Target, 0, len(ids))
	for _, id := range ids {
		info, err := cmds[id].Result()
		if err != nil || info["url"] == "" {
			continue
		}
		targets = append(targets, *targetFromHash(id, info))
	}
	return targets, nil
}

// DeleteTarget removes a target and its health record.
func (s *RedisStore) DeleteTarget(ctx context.Context, id string) error {
	removed, err := s.client.ZRem(ctx, targetsKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete target %s: %w", id, err)
	}
	if removed == 0 {
		return storage.ErrNotFound
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, targetKey(id))
	pipe.Del(ctx, healthKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipe execution failed: %w", err)
	}
	return nil
}

// UpsertHealth writes the health record hash for a target. HSet replaces
// the previous fields, so repeated writes keep exactly one record per target.
func (s *RedisStore) UpsertHealth(ctx context.Context, record *models.HealthRecord) error {
	responseTime := ""
	if record.LastResponseTimeMS != nil {
		responseTime = strconv.FormatInt(*record.LastResponseTimeMS, 10)
	}
	err := s.client.HSet(ctx, healthKey(record.TargetID),
		"status", string(record.Status),
		"last_checked_at", record.LastCheckedAt.Format(time.RFC3339Nano),
		"last_response_time_ms", responseTime,
		"updated_at", record.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to upsert health record for %s: %w", record.TargetID, err)
	}
	return nil
}

// GetHealth retrieves the health record for a target.
func (s *RedisStore) GetHealth(ctx context.Context, targetID string) (*models.HealthRecord, error) {
	fields, err := s.client.HGetAll(ctx, healthKey(targetID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get health record for %s: %w", targetID, err)
	}
	if fields["status"] == "" {
		return nil, storage.ErrNotFound
	}
	return healthFromHash(targetID, fields), nil
}

// ListHealth retrieves the health records of all registered targets.
func (s *RedisStore) ListHealth(ctx context.Context) ([]models.HealthRecord, error) {
	ids, err := s.client.ZRange(ctx, targetsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list target ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, healthKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipe execution failed: %w", err)
	}

	records := make([]models.HealthRecord, 0, len(ids))
	for _, id := range ids {
		fields, err := cmds[id].Result()
		if err != nil || fields["status"] == "" {
			continue
		}
		records = append(records, *healthFromHash(id, fields))
	}
	return records, nil
}

// GetSettings loads the persisted engine settings.
func (s *RedisStore) GetSettings(ctx context.Context) (*storage.Settings, error) {
	fields, err := s.client.HGetAll(ctx, settingsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	settings := &storage.Settings{
		MonitoringEnabled: fields["monitoring_enabled"] == "true",
		SessionToken:      fields["session_token"],
	}
	settings.IntervalMinutes, _ = strconv.Atoi(fields["monitoring_interval_minutes"])
	return settings, nil
}

// SetMonitoring persists the desired monitoring schedule.
func (s *RedisStore) SetMonitoring(ctx context.Context, enabled bool, intervalMinutes int) error {
	enabledStr := "false"
	if enabled {
		enabledStr = "true"
	}
	err := s.client.HSet(ctx, settingsKey,
		"monitoring_enabled", enabledStr,
		"monitoring_interval_minutes", strconv.Itoa(intervalMinutes),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to persist monitoring settings: %w", err)
	}
	return nil
}

// SetSessionToken persists the stored credential. An empty token clears it.
func (s *RedisStore) SetSessionToken(ctx context.Context, token string) error {
	if err := s.client.HSet(ctx, settingsKey, "session_token", token).Err(); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	return nil
}

func targetFromHash(id string, info map[string]string) *models.Target {
	t := &models.Target{
		ID:       id,
		Name:     info["name"],
		URL:      info["url"],
		GroupRef: info["group_ref"],
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, info["created_at"])
	return t
}

func healthFromHash(targetID string, fields map[string]string) *models.HealthRecord {
	r := &models.HealthRecord{
		TargetID: targetID,
		Status:   models.Status(fields["status"]),
	}
	r.LastCheckedAt, _ = time.Parse(time.RFC3339Nano, fields["last_checked_at"])
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	if v := fields["last_response_time_ms"]; v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.LastResponseTimeMS = &ms
		}
	}
	return r
}
