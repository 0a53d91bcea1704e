// Package config provides unified configuration for all eventlake services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeIngest Mode = "ingest"
	ModeRelay  Mode = "relay"
)

// Backend names.
const (
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"

	StorageLocal = "local"
	StorageS3    = "s3"

	StreamNone    = "none"
	StreamLocal   = "local"
	StreamKinesis = "kinesis"
	StreamRedis   = "redis"
)

// Config holds the unified configuration for all eventlake services.
type Config struct {
	// Mode specifies which services to run: all, ingest, relay
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all local data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Region is the cloud region shared by every AWS backend
	Region string `json:"region" yaml:"region"`

	// Endpoint overrides the AWS endpoint (LocalStack and similar)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Stream    StreamConfig    `json:"stream" yaml:"stream"`
	Batch     BatchConfig     `json:"batch" yaml:"batch"`
	Relay     RelayConfig     `json:"relay" yaml:"relay"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address of the API server
	Addr string `json:"addr" yaml:"addr"`

	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds how long in-flight requests may drain
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// StoreConfig selects the source-of-record store.
type StoreConfig struct {
	// Type is the store type: sqlite, dynamodb
	Type string `json:"type" yaml:"type"`

	// Table is the DynamoDB table name
	Table string `json:"table" yaml:"table"`

	// Path is the SQLite database file
	Path string `json:"path" yaml:"path"`
}

// StorageConfig selects the object storage holding the data lake.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Bucket is the data lake bucket
	Bucket string `json:"bucket" yaml:"bucket"`

	// Path is the local storage root (for local type); buckets are subdirectories
	Path string `json:"path" yaml:"path"`

	// UsePathStyle enables path-style S3 addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// StreamConfig selects the optional record stream.
type StreamConfig struct {
	// Type is the stream type: none, local, kinesis, redis
	Type string `json:"type" yaml:"type"`

	// Name is the stream name; empty disables publishing
	Name string `json:"name" yaml:"name"`

	// RedisAddr is the Redis address (for redis type)
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	// MaxLen approximately trims Redis streams (0 keeps everything)
	MaxLen int64 `json:"max_len" yaml:"max_len"`

	// Shards is the shard count of the local stream
	Shards int `json:"shards" yaml:"shards"`
}

// BatchConfig configures the batch partition writer.
type BatchConfig struct {
	// Prefix is the key prefix of batch objects
	Prefix string `json:"prefix" yaml:"prefix"`
}

// RelayConfig configures the local change relay.
type RelayConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	BatchSize    int           `json:"batch_size" yaml:"batch_size"`
}

// NormalizeConfig configures normalization jobs.
type NormalizeConfig struct {
	MaxFiles      int    `json:"max_files" yaml:"max_files"`
	Concurrency   int    `json:"concurrency" yaml:"concurrency"`
	IncludeHeader bool   `json:"include_header" yaml:"include_header"`
	FileName      string `json:"file_name" yaml:"file_name"`
	WorkDir       string `json:"work_dir" yaml:"work_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Development switches to human-readable console output
	Development bool `json:"development" yaml:"development"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/eventlake",
		Region:  "us-east-1",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Store: StoreConfig{
			Type: StoreSQLite,
		},
		Storage: StorageConfig{
			Type:   StorageLocal,
			Bucket: "datalake",
		},
		Stream: StreamConfig{
			Type:   StreamNone,
			Shards: 4,
		},
		Batch: BatchConfig{
			Prefix: "events",
		},
		Relay: RelayConfig{
			Enabled:      true,
			PollInterval: 5 * time.Second,
			BatchSize:    500,
		},
		Normalize: NormalizeConfig{
			MaxFiles:      10000,
			Concurrency:   8,
			IncludeHeader: true,
			FileName:      "interactions.csv",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/eventlake"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}

	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "events.db")
	}

	if c.Normalize.WorkDir == "" {
		c.Normalize.WorkDir = filepath.Join(c.DataDir, "work")
	}

	// A named stream with no explicit type means the deployment's Kinesis stream.
	if c.Stream.Type == "" {
		c.Stream.Type = StreamNone
		if c.Stream.Name != "" {
			c.Stream.Type = StreamKinesis
		}
	}
}

// StreamEnabled reports whether events are published to a stream.
func (c *Config) StreamEnabled() bool {
	if c.Stream.Type == StreamNone || c.Stream.Type == "" {
		return false
	}
	return c.Stream.Type == StreamLocal || c.Stream.Name != ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeIngest, ModeRelay:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, ingest, or relay)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Store.Type {
	case StoreSQLite:
	case StoreDynamoDB:
		if c.Store.Table == "" {
			return fmt.Errorf("store.table is required when store type is dynamodb")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be sqlite or dynamodb)", c.Store.Type)
	}

	if c.Storage.Type != StorageLocal && c.Storage.Type != StorageS3 {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}

	switch c.Stream.Type {
	case StreamNone, StreamLocal, StreamKinesis:
	case StreamRedis:
		if c.Stream.RedisAddr == "" && c.Stream.Name != "" {
			return fmt.Errorf("stream.redis_addr is required when stream type is redis")
		}
	default:
		return fmt.Errorf("invalid stream type: %s (must be none, local, kinesis, or redis)", c.Stream.Type)
	}

	if c.Mode == ModeRelay && c.Store.Type != StoreSQLite {
		return fmt.Errorf("relay mode requires the sqlite store")
	}

	if c.Normalize.Concurrency < 1 {
		return fmt.Errorf("normalize.concurrency must be at least 1, got %d", c.Normalize.Concurrency)
	}

	return nil
}

// ShouldRunIngest returns true if the ingest API should run.
func (c *Config) ShouldRunIngest() bool {
	return c.Mode == ModeAll || c.Mode == ModeIngest
}

// ShouldRunRelay returns true if the change relay should run. The relay
// reads the local store's change feed, so it needs the sqlite store.
func (c *Config) ShouldRunRelay() bool {
	if c.Store.Type != StoreSQLite {
		return false
	}
	return c.Mode == ModeRelay || (c.Mode == ModeAll && c.Relay.Enabled)
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the EVENTLAKE_ prefix. The deployment variables
// REGION, DDB_TABLE, BUCKET and KINESIS_STREAM are honoured as well and
// select the AWS backends they name.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("DDB_TABLE"); v != "" {
		cfg.Store.Type = StoreDynamoDB
		cfg.Store.Table = v
	}
	if v := os.Getenv("BUCKET"); v != "" {
		cfg.Storage.Type = StorageS3
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("KINESIS_STREAM"); v != "" {
		cfg.Stream.Type = StreamKinesis
		cfg.Stream.Name = v
	}

	if v := os.Getenv("EVENTLAKE_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("EVENTLAKE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("EVENTLAKE_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("EVENTLAKE_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}

	// HTTP configuration
	if v := os.Getenv("EVENTLAKE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Store configuration
	if v := os.Getenv("EVENTLAKE_STORE_TYPE"); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv("EVENTLAKE_STORE_TABLE"); v != "" {
		cfg.Store.Table = v
	}
	if v := os.Getenv("EVENTLAKE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	// Storage configuration
	if v := os.Getenv("EVENTLAKE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("EVENTLAKE_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("EVENTLAKE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}

	// Stream configuration
	if v := os.Getenv("EVENTLAKE_STREAM_TYPE"); v != "" {
		cfg.Stream.Type = v
	}
	if v := os.Getenv("EVENTLAKE_STREAM_NAME"); v != "" {
		cfg.Stream.Name = v
	}
	if v := os.Getenv("EVENTLAKE_STREAM_REDIS_ADDR"); v != "" {
		cfg.Stream.RedisAddr = v
	}

	// Batch and relay configuration
	if v := os.Getenv("EVENTLAKE_BATCH_PREFIX"); v != "" {
		cfg.Batch.Prefix = v
	}
	if v := os.Getenv("EVENTLAKE_RELAY_ENABLED"); v != "" {
		cfg.Relay.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("EVENTLAKE_RELAY_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Relay.PollInterval = d
		}
	}
	if v := os.Getenv("EVENTLAKE_RELAY_BATCH_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Relay.BatchSize)
	}

	// Normalize configuration
	if v := os.Getenv("EVENTLAKE_NORMALIZE_MAX_FILES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Normalize.MaxFiles)
	}
	if v := os.Getenv("EVENTLAKE_NORMALIZE_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Normalize.Concurrency)
	}
	if v := os.Getenv("EVENTLAKE_NORMALIZE_HEADER"); v != "" {
		cfg.Normalize.IncludeHeader = v == "true" || v == "1"
	}

	// Log configuration
	if v := os.Getenv("EVENTLAKE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("EVENTLAKE_LOG_DEVELOPMENT"); v != "" {
		cfg.Log.Development = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Normalize.WorkDir,
	}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
	}
	if c.Store.Type == StoreSQLite {
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
