package normalize

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/internal/storage"
	"github.com/eventlake/eventlake/pkg/types"
)

// OpenFunc returns object storage for the named bucket.
type OpenFunc func(ctx context.Context, bucket string) (storage.ObjectStorage, error)

// StaticStorage returns an OpenFunc that ignores the bucket name.
func StaticStorage(s storage.ObjectStorage) OpenFunc {
	return func(context.Context, string) (storage.ObjectStorage, error) { return s, nil }
}

// Normalizer runs normalization jobs.
type Normalizer struct {
	open      OpenFunc
	cfg       Config
	resolvers []Resolver
	log       *zap.Logger
	metrics   *observability.Metrics
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithResolvers replaces the timestamp fallback chain.
func WithResolvers(r []Resolver) Option {
	return func(n *Normalizer) { n.resolvers = r }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(n *Normalizer) {
		if log != nil {
			n.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Normalizer) { n.metrics = m }
}

// New creates a Normalizer.
func New(open OpenFunc, cfg Config, opts ...Option) *Normalizer {
	n := &Normalizer{
		open:      open,
		cfg:       cfg.withDefaults(),
		resolvers: DefaultResolvers,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// partial is the filtered output of one input file.
type partial struct {
	inputRows int
	rows      []types.InteractionRow
}

// Normalize runs job end to end. It fails when the input prefix holds no
// JSON files. When no row survives filtering nothing is written and the
// result reports Written=false.
func (n *Normalizer) Normalize(ctx context.Context, job Job) (res *Result, err error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	job = job.Resolved()
	log := n.log.With(zap.String("job", job.JobName), zap.String("bucket", job.Bucket))

	res = &Result{}
	defer func() {
		n.metrics.NormalizeRun(res.Files, res.InputRows, res.OutputRows, err)
	}()

	store, err := n.open(ctx, job.Bucket)
	if err != nil {
		return res, pipeerrors.NewStorageError(pipeerrors.CodeUnexpected, "failed to open bucket", err)
	}

	keys, err := n.enumerate(ctx, store, job.InputPrefix)
	if err != nil {
		return res, pipeerrors.NewStorageError(pipeerrors.CodeListFailed, "failed to list input files", err)
	}
	res.Files = len(keys)
	log.Info("input files enumerated",
		zap.String("input_prefix", job.InputPrefix),
		zap.String("output_prefix", job.OutputPrefix),
		zap.Int("json_files_found", len(keys)))

	if len(keys) == 0 {
		return res, pipeerrors.NewJobError(pipeerrors.CodeNoInput,
			fmt.Sprintf("no JSON files found under %s/%s", job.Bucket, job.InputPrefix), nil)
	}

	// Each file is parsed and filtered independently into its own slot.
	partials := make([]partial, len(keys))
	reader := storage.NewBatchReader(store, n.cfg.Concurrency)
	err = reader.ReadAll(ctx, keys, func(i int, key string, data []byte) error {
		records, err := ParseRecords(data)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		p := partial{inputRows: len(records), rows: make([]types.InteractionRow, 0, len(records))}
		for _, rec := range records {
			if row, ok := NormalizeRecord(rec, n.resolvers); ok {
				p.rows = append(p.rows, row)
			}
		}
		partials[i] = p
		return nil
	})
	if err != nil {
		return res, pipeerrors.NewJobError(pipeerrors.CodeLoadFailed, "failed to load input files", err)
	}

	// Merge barrier: every partial is complete once ReadAll has returned.
	var rows []types.InteractionRow
	for _, p := range partials {
		res.InputRows += p.inputRows
		rows = append(rows, p.rows...)
	}
	res.OutputRows = len(rows)
	log.Info("rows normalized", zap.Int("input_rows", res.InputRows), zap.Int("filtered_rows", res.OutputRows))

	key := job.OutputPrefix + n.cfg.FileName
	if len(rows) == 0 {
		removed, err := removeStale(ctx, store, key)
		if err != nil {
			return res, err
		}
		res.StaleRemoved = removed
		log.Info("no rows passed filter; nothing to write", zap.Bool("stale_removed", removed))
		return res, nil
	}

	if err := n.writeArtifact(ctx, store, key, rows); err != nil {
		return res, err
	}
	res.Key = key
	res.Written = true
	log.Info("artifact written", zap.String("key", key), zap.Int("rows", len(rows)))
	return res, nil
}

// enumerate lists up to MaxFiles keys ending in ".json" (any case) under
// prefix, in lexical order.
func (n *Normalizer) enumerate(ctx context.Context, store storage.ObjectStorage, prefix string) ([]string, error) {
	var keys []string
	err := store.Walk(ctx, prefix, func(key string) error {
		if !strings.HasSuffix(strings.ToLower(key), ".json") {
			return nil
		}
		keys = append(keys, key)
		if len(keys) >= n.cfg.MaxFiles {
			return storage.ErrStopWalk
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (n *Normalizer) writeArtifact(ctx context.Context, store storage.ObjectStorage, key string, rows []types.InteractionRow) error {
	if n.cfg.WorkDir != "" {
		if err := os.MkdirAll(n.cfg.WorkDir, 0755); err != nil {
			return pipeerrors.NewInternalError("failed to create work directory", err)
		}
	}

	path, err := writeCSV(n.cfg.WorkDir, rows, n.cfg.IncludeHeader)
	if err != nil {
		return pipeerrors.NewInternalError("failed to build artifact", err)
	}
	defer os.Remove(path)

	if _, err := store.UploadMultipart(ctx, path, key, "text/csv"); err != nil {
		return pipeerrors.NewStorageError(pipeerrors.CodeUploadFailed, "failed to upload artifact", err).
			WithDetails(map[string]interface{}{"key": key})
	}
	return nil
}

// removeStale deletes an artifact an earlier run left at key, so an empty
// run never leaves old output looking current.
func removeStale(ctx context.Context, store storage.ObjectStorage, key string) (bool, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return false, pipeerrors.NewStorageError(pipeerrors.CodeDeleteFailed, "failed to check for stale artifact", err).
			WithDetails(map[string]interface{}{"key": key})
	}
	if !exists {
		return false, nil
	}
	if err := store.Delete(ctx, key); err != nil {
		return false, pipeerrors.NewStorageError(pipeerrors.CodeDeleteFailed, "failed to remove stale artifact", err).
			WithDetails(map[string]interface{}{"key": key})
	}
	return true, nil
}
