// Package mindgraph provides the embedded API for a persistent semantic
// memory graph.
//
// Short text memories are stored as nodes carrying vector embeddings, linked
// by typed directed edges, and retrieved by meaning rather than keyword. The
// graph only grows: nodes, edges, and access log entries are never updated
// or deleted, and the single mutation in the system is the per-node access
// counter, incremented once per logged read event.
//
// Example Usage:
//
//	embedder := embed.NewOllama(nil)
//	cfg := mindgraph.DefaultConfig()
//	cfg.Embedder = embedder
//
//	db, err := mindgraph.Open("./data", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	res, err := db.Insert(ctx, mindgraph.InsertRequest{
//		Content:  "badger iterators stream keys in ascending order",
//		Tags:     []string{"storage", "badger"},
//		Priority: storage.PriorityHigh,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, s := range res.Suggestions {
//		fmt.Printf("related: %s (%.2f)\n", s.NodeID, s.Similarity)
//	}
//
//	hits, err := db.Search(ctx, "key ordering in badger", nil, 5)
package mindgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentmind/mindgraph/pkg/embed"
	"github.com/agentmind/mindgraph/pkg/search"
	"github.com/agentmind/mindgraph/pkg/storage"
)

// Public error taxonomy. Every operation fails with exactly one of these,
// wrapped with detail; match with errors.Is.
var (
	// ErrNotFound marks a referenced node or edge id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an explicit id that already exists.
	ErrConflict = errors.New("already exists")

	// ErrInvalidArgument marks empty content or relationship, a self-loop,
	// an unknown priority, or a mismatched embedding dimensionality.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable marks an embedding provider failure or timeout.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrStorage marks an underlying persistence failure.
	ErrStorage = errors.New("storage failure")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("database closed")
)

// Config holds the tunable behavior of the graph.
type Config struct {
	// Embedder converts text to vectors. Required.
	Embedder embed.Embedder

	// AutoConnectThreshold is the minimum raw cosine similarity for a
	// node to appear among insert-time connection suggestions.
	AutoConnectThreshold float64

	// SearchDefaultTopK is the result cap used when a search passes a
	// non-positive top-k.
	SearchDefaultTopK int

	// SuggestionLimit caps the insert-time suggestion list.
	SuggestionLimit int

	// SnippetLength bounds the content excerpt included with each
	// suggestion, in runes.
	SnippetLength int

	// EmbedTimeout bounds each embedding provider call.
	EmbedTimeout time.Duration

	// SyncWrites forces fsync on every write in the durable store.
	SyncWrites bool

	// Logger receives structured operational logging. Nil means silent.
	Logger *zap.Logger
}

// DefaultConfig returns the documented defaults. Embedder must still be set
// by the caller.
func DefaultConfig() *Config {
	return &Config{
		AutoConnectThreshold: 0.5,
		SearchDefaultTopK:    5,
		SuggestionLimit:      5,
		SnippetLength:        100,
		EmbedTimeout:         30 * time.Second,
	}
}

// DB is a handle to one memory graph. All methods are safe for concurrent
// use; each public operation is an isolated unit of work against the
// underlying engine.
type DB struct {
	config *Config
	engine storage.Engine
	ranker search.Ranker
	log    *zap.Logger

	mu     sync.RWMutex // guards closed
	closed bool
}

// Open opens (or creates) a durable memory graph stored under dataDir.
// The embedding dimensionality is taken from cfg.Embedder and fixed for the
// lifetime of the store; reopening with a different embedder vector size
// fails.
func Open(dataDir string, cfg *Config) (*DB, error) {
	if cfg == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: an embedder is required", ErrInvalidArgument)
	}

	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
		DataDir:    dataDir,
		Dimensions: cfg.Embedder.Dimensions(),
		SyncWrites: cfg.SyncWrites,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	db, err := New(engine, cfg)
	if err != nil {
		engine.Close()
		return nil, err
	}
	db.log.Info("memory graph opened",
		zap.String("data_dir", dataDir),
		zap.String("model", cfg.Embedder.Model()),
		zap.Int("dimensions", cfg.Embedder.Dimensions()))
	return db, nil
}

// New wraps an existing storage engine. Useful for tests and for callers
// that manage their own engine lifecycle; Close still closes the engine.
func New(engine storage.Engine, cfg *Config) (*DB, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: an engine is required", ErrInvalidArgument)
	}
	if cfg == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: an embedder is required", ErrInvalidArgument)
	}
	if cfg.Embedder.Dimensions() != engine.Dimensions() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, store uses %d",
			ErrInvalidArgument, cfg.Embedder.Dimensions(), engine.Dimensions())
	}

	resolved := *cfg
	defaults := DefaultConfig()
	if resolved.SearchDefaultTopK <= 0 {
		resolved.SearchDefaultTopK = defaults.SearchDefaultTopK
	}
	if resolved.SuggestionLimit <= 0 {
		resolved.SuggestionLimit = defaults.SuggestionLimit
	}
	if resolved.SnippetLength <= 0 {
		resolved.SnippetLength = defaults.SnippetLength
	}
	if resolved.EmbedTimeout <= 0 {
		resolved.EmbedTimeout = defaults.EmbedTimeout
	}
	if resolved.Logger == nil {
		resolved.Logger = zap.NewNop()
	}

	return &DB{
		config: &resolved,
		engine: engine,
		ranker: search.NewBruteForce(),
		log:    resolved.Logger,
	}, nil
}

// Close shuts down the underlying engine. Idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true
	db.log.Info("memory graph closed")
	return db.engine.Close()
}

func (db *DB) checkOpen() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return nil
}

// embedText calls the provider under the configured timeout. Provider
// failures, including timeouts, surface as ErrUnavailable.
func (db *DB) embedText(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, db.config.EmbedTimeout)
	defer cancel()

	vec, err := db.config.Embedder.Embed(embedCtx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vec) != db.engine.Dimensions() {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, store uses %d",
			ErrInvalidArgument, len(vec), db.engine.Dimensions())
	}
	return vec, nil
}

// wrapStorageErr translates engine sentinels into the public taxonomy.
func wrapStorageErr(err error, context string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidEdge):
		return fmt.Errorf("%s: %w", context, ErrNotFound)
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%s: %w", context, ErrConflict)
	case errors.Is(err, storage.ErrDimensionMismatch), errors.Is(err, storage.ErrInvalidData), errors.Is(err, storage.ErrInvalidID):
		return fmt.Errorf("%s: %w", context, ErrInvalidArgument)
	default:
		return fmt.Errorf("%s: %w: %v", context, ErrStorage, err)
	}
}
