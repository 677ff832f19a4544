// Package engine implements the associative memory engine: dedup-aware
// writes, tag auto-relation, case records, Beta-Bernoulli feedback with
// half-life decay, and case-based context retrieval with text/tag/vector
// fallback.
//
// The engine is stateless between calls. All durable state lives in the
// backing graph.Store; decay is computed lazily from the wall clock at
// update time, never by a background sweep.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/graph"
	"github.com/fyrsmithlabs/recalld/internal/memory"
	"github.com/fyrsmithlabs/recalld/internal/vectorindex"
)

// DefaultHalfLife is the evidence half-life when the config leaves it unset.
const DefaultHalfLife = 30 * 24 * time.Hour

// ErrUnsupportedRelation is returned by Link for relation types outside the
// allowed set. Unsupported relations are a programmer error, rejected
// synchronously, never silently ignored.
var ErrUnsupportedRelation = errors.New("unsupported relation type")

// allowedRelations is the closed set of relation types Link will merge.
var allowedRelations = map[string]struct{}{
	"ABOUT":         {},
	"TAGGED":        {},
	"TOUCHED":       {},
	"USED_TOOL":     {},
	"HAS_ERROR_SIG": {},
	"CO_USED_WITH":  {},
	"RELATED_TO":    {},
	"PRODUCED":      {},
	"WROTE":         {},
	"RAN":           {},
	"HAS_SYMPTOM":   {},
}

// Config carries engine tunables. Zero values fall back to defaults.
type Config struct {
	// HalfLife is the evidence decay half-life.
	HalfLife time.Duration `koanf:"half_life"`

	// AutoRelate overrides the default auto-relation policy.
	AutoRelate *memory.AutoRelateConfig `koanf:"auto_relate"`

	// DedupCacheEntries sizes the contentHash lookup cache.
	DedupCacheEntries int64 `koanf:"dedup_cache_entries"`
}

// Option customizes a Service at construction time.
type Option func(*Service)

// WithLogger injects a structured logger. Nil keeps the no-op default.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithObserver injects the event side-channel. Nil keeps the no-op default.
func WithObserver(obs Observer) Option {
	return func(s *Service) {
		if obs != nil {
			s.observer = obs
		}
	}
}

// WithVectorIndex enables the optional vector-similarity retrieval leg.
func WithVectorIndex(idx vectorindex.Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithSecretScanner replaces the default secret-pattern rule set.
func WithSecretScanner(sc memory.SecretScanner) Option {
	return func(s *Service) { s.scanner = sc }
}

// WithClock replaces the wall clock, for deterministic decay in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the engine facade. Safe for concurrent use: it holds no
// per-request state and the store serializes edge writes.
type Service struct {
	store      graph.Store
	index      vectorindex.Index
	dedupCache *ristretto.Cache
	log        *zap.Logger
	observer   Observer
	now        func() time.Time

	halfLife   time.Duration
	autoRelate memory.AutoRelatePolicy
	scanner    memory.SecretScanner
}

// New builds a Service over store.
func New(store graph.Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	cacheEntries := cfg.DedupCacheEntries
	if cacheEntries <= 0 {
		cacheEntries = 16384
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheEntries * 10,
		MaxCost:     cacheEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("building dedup cache: %w", err)
	}

	halfLife := cfg.HalfLife
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}

	s := &Service{
		store:      store,
		dedupCache: cache,
		log:        zap.NewNop(),
		observer:   NopObserver{},
		now:        time.Now,
		halfLife:   halfLife,
		autoRelate: memory.BuildAutoRelatePolicy(cfg.AutoRelate),
		scanner:    memory.NewSecretScanner(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the engine's resources. The store is owned by the caller
// and is not closed here.
func (s *Service) Close() {
	s.dedupCache.Close()
}

// ListMemories returns stored memories, newest first.
func (s *Service) ListMemories(ctx context.Context, kind memory.Kind, limit int) ([]memory.Memory, error) {
	if kind != "" && !kind.Valid() {
		return nil, memory.ErrInvalidKind
	}
	out, err := s.store.ListMemories(ctx, graph.ListQuery{Kind: kind, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	s.emitRead("listMemories", map[string]any{"count": len(out)})
	return out, nil
}

// GetMemoriesByID fetches memories preserving id order; unknown ids are
// skipped.
func (s *Service) GetMemoriesByID(ctx context.Context, ids []string) ([]memory.Memory, error) {
	out, err := s.store.GetMemoriesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching memories: %w", err)
	}
	return out, nil
}

// ListMemoryEdges exports co-used and related edges above minStrength.
func (s *Service) ListMemoryEdges(ctx context.Context, limit int, minStrength float64) ([]memory.EdgeExport, error) {
	out, err := s.store.ListEdges(ctx, graph.EdgeQuery{Limit: limit, MinStrength: minStrength})
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	s.emitRead("listMemoryEdges", map[string]any{"count": len(out)})
	return out, nil
}

// Relate merges the symmetric RELATED_TO edge between two memories. A
// negative weight selects the default 0.5; values above 1 are clamped.
func (s *Service) Relate(ctx context.Context, a, b string, weight float64) error {
	if a == "" || b == "" || a == b {
		return errors.New("relate requires two distinct memory ids")
	}
	if weight < 0 {
		weight = 0.5
	}
	weight = memory.Clamp01(weight)
	if err := s.store.MergeRelatedEdge(ctx, a, b, weight); err != nil {
		return fmt.Errorf("merging related edge: %w", err)
	}
	s.emitWrite("relate", map[string]any{"a": a, "b": b, "weight": weight})
	return nil
}

// Link merges a generic named relationship. Relation types outside the
// allowed set fail with ErrUnsupportedRelation.
func (s *Service) Link(ctx context.Context, fromID, relType, toID string, props map[string]any) error {
	if _, ok := allowedRelations[relType]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedRelation, relType)
	}
	if err := s.store.MergeLink(ctx, fromID, relType, toID, props); err != nil {
		return fmt.Errorf("merging link: %w", err)
	}
	s.emitWrite("link", map[string]any{"from": fromID, "rel": relType, "to": toID})
	return nil
}
