package stream

import (
	"context"

	"github.com/redis/go-redis/v9"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
)

// Field names of entries appended by RedisPublisher.
const (
	RedisFieldPartitionKey = "partition_key"
	RedisFieldData         = "data"
)

// RedisPublisher appends records to a Redis stream with XADD.
type RedisPublisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewRedisPublisher creates a publisher appending to stream. A positive
// maxLen trims the stream approximately to that many entries.
func NewRedisPublisher(client redis.UniversalClient, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends one entry holding the partition key and payload.
func (r *RedisPublisher) Publish(ctx context.Context, partitionKey string, data []byte) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			RedisFieldPartitionKey: partitionKey,
			RedisFieldData:         data,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return pipeerrors.NewStreamError("failed to append to redis stream", err).
			WithDetails(map[string]interface{}{"stream": r.stream})
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
