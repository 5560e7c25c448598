package app

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/tablecraft/ttrpg-core/pkg/audiocache"
	"github.com/tablecraft/ttrpg-core/pkg/ingest"
	"github.com/tablecraft/ttrpg-core/pkg/paths"
	"github.com/tablecraft/ttrpg-core/pkg/searchdb"
	"github.com/tablecraft/ttrpg-core/pkg/ttsqueue"
	"github.com/tablecraft/ttrpg-core/pkg/ttsworker"
)

// Config assembles every tunable the subsystems expose: data directory,
// index size ceiling, queue bounds, cache bounds, worker poll interval,
// chunking policy, and logging. Zero values of the search, queue, chunk
// and log settings fall back to each subsystem's default; the cache and
// worker settings are passed through as given, so a zero cache size
// disables eviction and a zero poll interval makes the worker poll
// without pausing.
type Config struct {
	// DataDir is the root under which search/, audio_cache/ and logs
	// live. Defaults to the per-user data directory.
	DataDir string `yaml:"data_dir"`

	Search SearchConfig `yaml:"search"`
	Queue  QueueConfig  `yaml:"queue"`
	Cache  CacheConfig  `yaml:"cache"`
	Worker WorkerConfig `yaml:"worker"`
	Chunk  ChunkConfig  `yaml:"chunk"`
	Log    LogConfig    `yaml:"log"`
}

// SearchConfig bounds the embedded search engine.
type SearchConfig struct {
	MaxIndexSizeBytes int64 `yaml:"max_index_size_bytes"`
}

// QueueConfig bounds the synthesis queue.
type QueueConfig struct {
	// MaxQueueSize caps pending jobs; 0 means unbounded.
	MaxQueueSize int `yaml:"max_queue_size"`
	// MaxHistory caps retained terminal jobs.
	MaxHistory int `yaml:"max_history"`
}

// CacheConfig bounds the audio cache.
type CacheConfig struct {
	MaxSizeBytes      int64 `yaml:"max_size_bytes"`
	MinAgeForEviction int64 `yaml:"min_age_for_eviction_secs"`
}

// WorkerConfig tunes the background synthesis worker.
type WorkerConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
	MaxRetries     int `yaml:"max_retries"`
}

// ChunkConfig tunes the ingestion chunker.
type ChunkConfig struct {
	TargetSize int `yaml:"target_size"`
	MinSize    int `yaml:"min_size"`
	Overlap    int `yaml:"overlap"`
}

// LogConfig routes slog output through a size-rotating file.
type LogConfig struct {
	// Path of the log file; empty logs to stderr.
	Path         string `yaml:"path"`
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
	MaxBackups   int    `yaml:"max_backups"`
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		DataDir: paths.DataDir(),
		Search:  SearchConfig{MaxIndexSizeBytes: searchdb.DefaultMaxIndexSize},
		Queue:   QueueConfig{MaxHistory: ttsqueue.DefaultMaxHistory},
		Cache:   CacheConfig{MaxSizeBytes: audiocache.DefaultMaxSizeBytes},
		Worker: WorkerConfig{
			PollIntervalMS: int(ttsworker.DefaultPollInterval / time.Millisecond),
			MaxRetries:     2,
		},
		Chunk: ChunkConfig{
			TargetSize: 1200,
			MinSize:    100,
			Overlap:    150,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads path as YAML over the defaults; an empty path means
// the default config file location. A missing file is not an error: the
// defaults are returned as-is. TTRPG_DATA_DIR, when set, overrides the
// data directory from either source.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = paths.DefaultConfigFile()
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to defaults
	case err != nil:
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if dir := os.Getenv("TTRPG_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func (c Config) chunkerConfig() ingest.ChunkerConfig {
	out := ingest.DefaultChunkerConfig()
	if c.Chunk.TargetSize > 0 {
		out.TargetSize = c.Chunk.TargetSize
	}
	if c.Chunk.MinSize > 0 {
		out.MinSize = c.Chunk.MinSize
	}
	if c.Chunk.Overlap > 0 {
		out.Overlap = c.Chunk.Overlap
	}
	return out
}
