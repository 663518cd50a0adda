package cache

import (
	"context"
	"net"
	"testing"
	"time"

	"VoxNote/config"
	"VoxNote/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRunTrackerRecordAndGet(t *testing.T) {
	mr, client := newTestRedis(t)
	tracker := NewRunTracker(client, 30*time.Minute)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.Record(ctx, &model.RunStatus{RunID: "r1", UserID: 7, Stage: "Probed", UpdatedAt: at}))
	require.NoError(t, tracker.Record(ctx, &model.RunStatus{
		RunID: "r1", UserID: 7, Stage: "Failed", FailedStage: "Stored", Error: "upload recording: denied", UpdatedAt: at,
	}))

	got, err := tracker.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "Failed", got.Stage)
	assert.Equal(t, "Stored", got.FailedStage)
	assert.Equal(t, "upload recording: denied", got.Error)
	assert.True(t, at.Equal(got.UpdatedAt))

	assert.Equal(t, 30*time.Minute, mr.TTL(RunKey("r1")))
	mr.FastForward(31 * time.Minute)

	expired, err := tracker.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestRunTrackerUnknownRun(t *testing.T) {
	_, client := newTestRedis(t)
	got, err := NewRunTracker(client, 0).Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConnectRedisAndCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	require.NoError(t, ConnectRedis(&config.Config{RedisHost: host, RedisPort: port}))
	t.Cleanup(func() { CloseRedis() })

	require.NoError(t, CheckRedis(context.Background(), RedisClient))
	assert.False(t, mr.Exists("voxnote:healthcheck"))
}
