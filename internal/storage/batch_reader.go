package storage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ReadFunc receives the content of the i-th requested object. It may be
// called concurrently for different indexes.
type ReadFunc func(i int, objectPath string, data []byte) error

// BatchReader fetches many objects from object storage in parallel.
type BatchReader struct {
	storage     ObjectStorage
	concurrency int
}

// NewBatchReader creates a new batch reader.
// storage: the ObjectStorage implementation to read from
// concurrency: maximum number of parallel reads (values < 1 mean 1)
func NewBatchReader(storage ObjectStorage, concurrency int) *BatchReader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchReader{
		storage:     storage,
		concurrency: concurrency,
	}
}

// ReadAll reads every object in objectPaths and hands it to fn together with
// its index, so callers can keep results in input order without locking.
// The first failing read or callback cancels the remaining work and is
// returned; ReadAll returns only after all started reads have finished.
func (b *BatchReader) ReadAll(ctx context.Context, objectPaths []string, fn ReadFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, p := range objectPaths {
		i, p := i, p
		g.Go(func() error {
			data, err := b.storage.Get(gctx, p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			return fn(i, p, data)
		})
	}

	return g.Wait()
}
