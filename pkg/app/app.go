// Package app is the application root: it builds every subsystem from a
// Config, anchors the process-wide search handle and synthesis queue,
// runs the background worker, and tears everything down in reverse
// acquisition order at shutdown.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tablecraft/ttrpg-core/pkg/audiocache"
	"github.com/tablecraft/ttrpg-core/pkg/hybridsearch"
	"github.com/tablecraft/ttrpg-core/pkg/ingest"
	"github.com/tablecraft/ttrpg-core/pkg/library"
	"github.com/tablecraft/ttrpg-core/pkg/logging"
	"github.com/tablecraft/ttrpg-core/pkg/paths"
	"github.com/tablecraft/ttrpg-core/pkg/personality"
	"github.com/tablecraft/ttrpg-core/pkg/queryprep"
	"github.com/tablecraft/ttrpg-core/pkg/searchdb"
	"github.com/tablecraft/ttrpg-core/pkg/ttsqueue"
	"github.com/tablecraft/ttrpg-core/pkg/ttsworker"
)

// Deps carries the external collaborators the core cannot construct
// itself: the document extractor, embedding providers, and TTS
// providers. Any of them may be nil/empty; the corresponding features
// degrade (ingestion returns an error, keyword-only search, no synthesis
// dispatch).
type Deps struct {
	Extractor          ingest.Extractor
	EmbeddingProviders []hybridsearch.EmbeddingProvider
	TTSProviders       []ttsworker.Provider

	// DefaultPersonalityID is the fallback when no blend rule matches.
	DefaultPersonalityID string
}

// App owns every subsystem for the lifetime of the process.
type App struct {
	cfg Config

	logCloser io.Closer

	DB         *searchdb.Handle
	Library    *library.Repository
	Ingest     *ingest.Pipeline
	Query      *queryprep.Pipeline
	Search     *hybridsearch.Engine
	Queue      *ttsqueue.Queue
	AudioCache *audiocache.Cache
	Profiles   *personality.ProfileStore
	Rules      *personality.RuleStore
	Blender    *personality.Blender
	Contextual *personality.ContextualBlender

	worker       *ttsworker.Worker
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New builds the full subsystem graph. Construction order follows the
// dependency graph leaves-first; Close releases in the reverse order.
func New(cfg Config, deps Deps) (*App, error) {
	a := &App{cfg: cfg}

	if err := a.setupLogging(); err != nil {
		return nil, err
	}

	db, err := searchdb.Open(paths.SearchDir(cfg.DataDir), cfg.Search.MaxIndexSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("app: open search: %w", err)
	}
	a.DB = db

	a.Library = library.NewRepository(db)

	var embedder ingest.EmbeddingProvider
	if len(deps.EmbeddingProviders) > 0 {
		embedder = deps.EmbeddingProviders[0]
	}
	a.Ingest = ingest.New(db, a.Library, deps.Extractor, embedder, cfg.chunkerConfig())

	a.Query = queryprep.New(
		queryprep.NewDictionary(nil, queryprep.DefaultTTRPGWhitelist()),
		queryprep.DefaultTTRPGSynonyms(),
	)
	a.Search = hybridsearch.New(db, deps.EmbeddingProviders...)

	var queueOpts []ttsqueue.Option
	if cfg.Queue.MaxQueueSize > 0 {
		queueOpts = append(queueOpts, ttsqueue.WithMaxQueueSize(cfg.Queue.MaxQueueSize))
	}
	if cfg.Queue.MaxHistory > 0 {
		queueOpts = append(queueOpts, ttsqueue.WithMaxHistory(cfg.Queue.MaxHistory))
	}
	a.Queue = ttsqueue.New(queueOpts...)

	cache, err := audiocache.Open(paths.AudioCacheDir(cfg.DataDir),
		audiocache.WithMaxSizeBytes(cfg.Cache.MaxSizeBytes),
		audiocache.WithMinAge(time.Duration(cfg.Cache.MinAgeForEviction)*time.Second),
	)
	if err != nil {
		_ = a.DB.Shutdown()
		return nil, fmt.Errorf("app: open audio cache: %w", err)
	}
	a.AudioCache = cache

	a.worker = ttsworker.New(a.Queue, a.AudioCache, deps.TTSProviders,
		ttsworker.WithPollInterval(time.Duration(cfg.Worker.PollIntervalMS)*time.Millisecond),
		ttsworker.WithMaxRetries(cfg.Worker.MaxRetries),
	)

	a.Profiles = personality.NewProfileStore()
	a.Rules = personality.NewRuleStore()
	a.Blender = personality.NewBlender(a.Profiles, personality.DefaultBlendCacheCapacity)
	a.Contextual = personality.NewContextualBlender(
		personality.NewContextDetector(), a.Rules, deps.DefaultPersonalityID)

	return a, nil
}

// Start launches the background synthesis worker. It is a no-op if the
// worker is already running.
func (a *App) Start(ctx context.Context) {
	if a.workerDone != nil {
		return
	}
	workerCtx, cancel := context.WithCancel(ctx)
	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	go func() {
		defer close(a.workerDone)
		a.worker.Run(workerCtx)
	}()
	slog.Info("app: worker started")
}

// Close stops the worker, then releases subsystems in reverse
// acquisition order: audio cache, search handle, log writer. Safe to
// call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.workerCancel != nil {
			a.workerCancel()
			<-a.workerDone
		}
		if err := a.AudioCache.Close(); err != nil {
			a.closeErr = fmt.Errorf("app: close audio cache: %w", err)
		}
		if err := a.DB.Shutdown(); err != nil && a.closeErr == nil {
			a.closeErr = fmt.Errorf("app: shutdown search: %w", err)
		}
		if a.logCloser != nil {
			_ = a.logCloser.Close()
		}
	})
	return a.closeErr
}

// setupLogging routes the default slog logger to a size-rotating file
// when one is configured, stderr otherwise.
func (a *App) setupLogging() error {
	var w io.Writer = os.Stderr
	if a.cfg.Log.Path != "" {
		var opts []logging.Option
		if a.cfg.Log.MaxSizeBytes > 0 {
			opts = append(opts, logging.WithMaxSize(a.cfg.Log.MaxSizeBytes))
		}
		if a.cfg.Log.MaxBackups > 0 {
			opts = append(opts, logging.WithMaxBackups(a.cfg.Log.MaxBackups))
		}
		rf, err := logging.NewRotatingFile(a.cfg.Log.Path, opts...)
		if err != nil {
			return fmt.Errorf("app: open log file: %w", err)
		}
		a.logCloser = rf
		w = rf
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(a.cfg.Log.Level),
	})))
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
