// Package graph defines the contract the engine expects from its backing
// transactional graph-like store, plus two implementations: a mutex-guarded
// in-memory store for tests and embedded use, and a SQLite-backed store for
// the CLI.
//
// The engine owns the algorithms; the store owns atomicity. Edge mutations go
// through read-modify-write closures so that decay and update of one edge are
// a single atomic step even under concurrent feedback.
package graph

import (
	"context"
	"errors"
	"strings"

	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// Sentinel errors for store operations.
var (
	// ErrDuplicateID is returned when inserting a memory whose id exists.
	ErrDuplicateID = errors.New("memory id already exists")

	// ErrNotFound is returned for lookups of absent entities.
	ErrNotFound = errors.New("not found")
)

// ListQuery filters memory listings.
type ListQuery struct {
	Kind  memory.Kind // empty matches all kinds
	Limit int
}

// TagOverlapQuery asks for memories sharing tags with a subject memory.
// Filters are applied by the store; ranking happens in the engine.
type TagOverlapQuery struct {
	MemoryID      string   // subject; excluded from results
	Tags          []string // subject's normalized tags
	MinSharedTags int
	SameKind      bool
	Kind          memory.Kind
	SamePolarity  bool
	Polarity      memory.Polarity
	AllowedKinds  []memory.Kind
	Limit         int
}

// TagCandidate is one tag-overlap match with the counts the engine needs to
// compute an overlap weight.
type TagCandidate struct {
	ID         string
	SharedTags int
	TotalTags  int
}

// CaseQuery asks for case candidates that share at least one symptom with
// the query or sit in the exact same environment.
type CaseQuery struct {
	Symptoms []string // normalized
	EnvHash  string
	Limit    int
}

// TextQuery is a full-text lookup over memory title and content.
type TextQuery struct {
	Query string
	Limit int
}

// Hit is a scored memory returned by text or tag search.
type Hit struct {
	Memory memory.Memory
	Score  float64
}

// EdgeQuery filters edge listings.
type EdgeQuery struct {
	Limit       int
	MinStrength float64
}

// EdgeUpdate computes the next posterior from the prior one. A nil prior
// means no edge exists yet. Stores must run the read, the closure, and the
// write as one atomic step per edge.
type EdgeUpdate func(prior *memory.BetaEdge) memory.BetaEdge

// MemoryStore persists memory nodes and their static relations.
type MemoryStore interface {
	// UpsertMemory inserts a new memory. Content is immutable: callers
	// dedup by content hash before inserting.
	UpsertMemory(ctx context.Context, m *memory.Memory) error

	// FindIDByContentHash returns the id holding hash, or "" when absent.
	FindIDByContentHash(ctx context.Context, hash string) (string, error)

	// AttachEnvironment merges the environment node by hash and links the
	// memory to it.
	AttachEnvironment(ctx context.Context, memoryID string, env memory.EnvironmentFingerprint) error

	// GetMemoriesByID fetches memories preserving the order of ids;
	// unknown ids are skipped.
	GetMemoriesByID(ctx context.Context, ids []string) ([]memory.Memory, error)

	// ListMemories returns memories matching the query, newest first.
	ListMemories(ctx context.Context, q ListQuery) ([]memory.Memory, error)

	// FindTagCandidates returns memories sharing at least MinSharedTags
	// tags with the query, after kind/polarity filters.
	FindTagCandidates(ctx context.Context, q TagOverlapQuery) ([]TagCandidate, error)

	// SearchText scores memories by term matches over title and content.
	SearchText(ctx context.Context, q TextQuery) ([]Hit, error)

	// FindByTags scores memories by tag overlap with the given tags.
	FindByTags(ctx context.Context, tags []string, limit int) ([]Hit, error)
}

// CaseStore persists case nodes and their memory links.
type CaseStore interface {
	// UpsertCase merges a case by id, replacing fields and links.
	UpsertCase(ctx context.Context, c *memory.Case) error

	// MatchCaseCandidates returns cases sharing a symptom or environment
	// with the query. Ranking happens in the engine.
	MatchCaseCandidates(ctx context.Context, q CaseQuery) ([]memory.Case, error)
}

// EdgeStore persists the reinforcement-learning edges.
type EdgeStore interface {
	// EnsureAgent merges the agent node by id.
	EnsureAgent(ctx context.Context, agentID string) error

	// GetRecallEdges returns existing agent->memory posteriors keyed by
	// memory id. Absent edges are simply missing from the map.
	GetRecallEdges(ctx context.Context, agentID string, memoryIDs []string) (map[string]memory.BetaEdge, error)

	// UpdateRecallEdge atomically applies update to one recall edge and
	// returns the stored result.
	UpdateRecallEdge(ctx context.Context, agentID, memoryID string, update EdgeUpdate) (memory.BetaEdge, error)

	// UpdateCoUsedEdge atomically applies update to the co-used edge for
	// the canonical pair (a < b).
	UpdateCoUsedEdge(ctx context.Context, a, b string, update EdgeUpdate) (memory.BetaEdge, error)

	// MergeRelatedEdge merges the symmetric RELATED_TO edge for the
	// canonical pair, overwriting its weight.
	MergeRelatedEdge(ctx context.Context, a, b string, weight float64) error

	// MergeLink merges a generic named relationship with properties.
	MergeLink(ctx context.Context, fromID, relType, toID string, props map[string]any) error

	// ListEdges exports co-used and related edges above MinStrength.
	ListEdges(ctx context.Context, q EdgeQuery) ([]memory.EdgeExport, error)
}

// Store is the full contract the engine consumes.
type Store interface {
	MemoryStore
	CaseStore
	EdgeStore

	Close() error
}

// PairKey canonicalizes an unordered memory pair so (A,B) and (B,A) address
// the same edge.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// TextScore is the shared naive relevance score used by both store
// implementations: per query term, title matches count double.
func TextScore(m *memory.Memory, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	title := strings.ToLower(m.Title)
	content := strings.ToLower(m.Content)
	var score float64
	for _, t := range terms {
		if t == "" {
			continue
		}
		if strings.Contains(title, t) {
			score += 2
		}
		if strings.Contains(content, t) {
			score++
		}
	}
	return score / float64(len(terms))
}

// TextTerms splits a prompt into lowercase search terms.
func TextTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}
