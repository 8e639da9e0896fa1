package redisstream

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockroom/internal/transport"
	"github.com/roach88/stockroom/internal/transport/transporttest"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

// newTestLog returns a Log on a stream unique to this test.
func newTestLog(t *testing.T, client *redis.Client) *Log {
	t.Helper()
	stream := "stockroom:test:" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(context.Background(), stream, stream+":seq", stream+":ids")
	})
	return New(client, WithStream(stream), WithBlock(50*time.Millisecond))
}

func TestLogSuite(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	transporttest.Run(t, func(t *testing.T) transport.Log {
		return newTestLog(t, client)
	})
}

func TestAppend_StreamIDMatchesSeq(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()
	ctx := context.Background()
	l := newTestLog(t, client)

	rec, err := l.Append(ctx, transport.Envelope{ID: "a", Kind: "add_name", Payload: []byte(`{}`)})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, l.stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "0-1", msgs[0].ID)
	assert.Equal(t, int64(1), rec.Seq)
}

func TestClose_DoesNotCloseBorrowedClient(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()
	l := newTestLog(t, client)

	require.NoError(t, l.Close())
	_, err := l.Head(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestParseMessage(t *testing.T) {
	rec, err := parseMessage(redis.XMessage{
		ID: "0-42",
		Values: map[string]interface{}{
			"id": "abc", "actor": "ops", "kind": "add_name", "payload": `{"a":1}`,
			"sec": "1700000000", "usec": "250000",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.Seq)
	assert.Equal(t, time.Unix(1700000000, 250000000).UTC(), rec.CommittedAt)
	assert.Equal(t, `{"a":1}`, string(rec.Payload))

	_, err = parseMessage(redis.XMessage{ID: "garbage"})
	assert.Error(t, err)
}
