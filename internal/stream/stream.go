// Package stream publishes ingested events to a downstream record stream.
// Kinesis backs cloud deployments, Redis streams self-hosted ones, and an
// in-process sharded stream serves local runs and tests.
package stream

import (
	"context"
)

// Publisher appends one record to a stream. Records sharing a partition key
// land on the same shard. Implementations make a single attempt.
type Publisher interface {
	Publish(ctx context.Context, partitionKey string, data []byte) error
}
