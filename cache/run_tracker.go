package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"VoxNote/model"

	"github.com/go-redis/redis/v8"
)

// RunTracker 在 Redis 中记录流水线每次状态迁移，供轮询查询
type RunTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunTracker 创建状态记录器
func NewRunTracker(client *redis.Client, ttl time.Duration) *RunTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunTracker{client: client, ttl: ttl}
}

// RunKey 状态在 Redis 中的 key
func RunKey(runID string) string {
	return "note:run:" + runID
}

// Record 覆盖写入当前状态并刷新过期时间
func (t *RunTracker) Record(ctx context.Context, status *model.RunStatus) error {
	key := RunKey(status.RunID)
	fields := map[string]interface{}{
		"run_id":       status.RunID,
		"user_id":      status.UserID,
		"stage":        status.Stage,
		"failed_stage": status.FailedStage,
		"error":        status.Error,
		"note_id":      status.NoteID,
		"updated_at":   status.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, t.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record run status %s: %w", status.RunID, err)
	}
	return nil
}

// Get 读取任务状态，不存在或已过期时返回 nil
func (t *RunTracker) Get(ctx context.Context, runID string) (*model.RunStatus, error) {
	vals, err := t.client.HGetAll(ctx, RunKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get run status %s: %w", runID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	status := &model.RunStatus{
		RunID:       vals["run_id"],
		Stage:       vals["stage"],
		FailedStage: vals["failed_stage"],
		Error:       vals["error"],
	}
	status.UserID, _ = strconv.ParseInt(vals["user_id"], 10, 64)
	status.NoteID, _ = strconv.ParseInt(vals["note_id"], 10, 64)
	status.UpdatedAt, _ = time.Parse(time.RFC3339Nano, vals["updated_at"])
	return status, nil
}
