package stream

import (
	"context"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Record is one entry of a LocalStream shard.
type Record struct {
	PartitionKey string
	Data         []byte
	Sequence     uint64
}

// LocalStream is an in-process sharded stream. Partition keys are routed to
// shards by murmur3 hash, so per-key order is preserved within a shard.
type LocalStream struct {
	mu     sync.Mutex
	shards [][]Record
	seq    uint64
}

// NewLocalStream creates a stream with the given number of shards (minimum 1).
func NewLocalStream(shards int) *LocalStream {
	if shards < 1 {
		shards = 1
	}
	return &LocalStream{shards: make([][]Record, shards)}
}

// ShardFor returns the shard index partitionKey routes to.
func (l *LocalStream) ShardFor(partitionKey string) int {
	return int(murmur3.Sum32([]byte(partitionKey)) % uint32(len(l.shards)))
}

// Publish appends a copy of data to the key's shard.
func (l *LocalStream) Publish(ctx context.Context, partitionKey string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	shard := l.ShardFor(partitionKey)
	l.shards[shard] = append(l.shards[shard], Record{
		PartitionKey: partitionKey,
		Data:         buf,
		Sequence:     l.seq,
	})
	return nil
}

// Records returns a snapshot of the records in one shard.
func (l *LocalStream) Records(shard int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if shard < 0 || shard >= len(l.shards) {
		return nil
	}
	out := make([]Record, len(l.shards[shard]))
	copy(out, l.shards[shard])
	return out
}

// Len returns the total number of records across all shards.
func (l *LocalStream) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, s := range l.shards {
		n += len(s)
	}
	return n
}
