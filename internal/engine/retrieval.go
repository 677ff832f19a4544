package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recalld/internal/graph"
	"github.com/fyrsmithlabs/recalld/internal/memory"
)

// Default section caps when a retrieval request leaves them unset.
const (
	DefaultCaseLimit = 5
	DefaultFixLimit  = 8
	DefaultDontLimit = 6
)

// FallbackConfig toggles the secondary search legs. Fallback as a whole is
// opt-in: it runs only when Enabled is explicitly true. Within an enabled
// fallback, nil leg pointers default to full-text on, tags on, vector off.
type FallbackConfig struct {
	Enabled  *bool `json:"enabled,omitempty"`
	FullText *bool `json:"fullText,omitempty"`
	Tags     *bool `json:"tags,omitempty"`
	Vector   *bool `json:"vector,omitempty"`
}

type fallbackPolicy struct {
	enabled  bool
	fullText bool
	tags     bool
	vector   bool
}

func resolveFallback(cfg *FallbackConfig) fallbackPolicy {
	p := fallbackPolicy{enabled: false, fullText: true, tags: true, vector: false}
	if cfg == nil {
		return p
	}
	if cfg.Enabled != nil {
		p.enabled = *cfg.Enabled
	}
	if cfg.FullText != nil {
		p.fullText = *cfg.FullText
	}
	if cfg.Tags != nil {
		p.tags = *cfg.Tags
	}
	if cfg.Vector != nil {
		p.vector = *cfg.Vector
	}
	return p
}

// RetrieveArgs describes the situation to match against stored cases.
type RetrieveArgs struct {
	AgentID  string                         `json:"agentId"`
	Prompt   string                         `json:"prompt,omitempty"`
	Symptoms []string                       `json:"symptoms,omitempty"`
	Tags     []string                       `json:"tags,omitempty"`
	Env      *memory.EnvironmentFingerprint `json:"env,omitempty"`

	CaseLimit int `json:"caseLimit,omitempty"`
	FixLimit  int `json:"fixLimit,omitempty"`
	DontLimit int `json:"dontLimit,omitempty"`

	Fallback *FallbackConfig `json:"fallback,omitempty"`
}

// RankedMemory is one bundle entry: the memory plus the recall posterior the
// agent held before this retrieval's feedback is recorded.
type RankedMemory struct {
	Memory     memory.Memory   `json:"memory"`
	EdgeBefore memory.BetaEdge `json:"edgeBefore"`
}

// Sections split the bundle by polarity.
type Sections struct {
	Fix     []RankedMemory `json:"fix"`
	DoNotDo []RankedMemory `json:"doNotDo"`
}

// Injection holds the rendered plain-text blocks, one per section, in the
// section's ranked order.
type Injection struct {
	FixBlock     string `json:"fixBlock"`
	DoNotDoBlock string `json:"doNotDoBlock"`
}

// ContextBundle is the retrieval result.
type ContextBundle struct {
	SessionID string    `json:"sessionId"`
	Sections  Sections  `json:"sections"`
	Injection Injection `json:"injection"`
}

// RetrieveContextBundle matches the situation against stored cases and
// returns ranked fix and do-not-do sections with injection blocks. When the
// primary path finds nothing and the request opts into fallback, a
// full-text/tag/vector search over the memories runs instead; a fallback
// infrastructure failure degrades to empty sections plus a read event, never
// to an error.
func (s *Service) RetrieveContextBundle(ctx context.Context, args *RetrieveArgs) (*ContextBundle, error) {
	if args.AgentID == "" {
		return nil, memory.ErrEmptyAgentID
	}

	caseLimit := defaultLimit(args.CaseLimit, DefaultCaseLimit)
	fixLimit := defaultLimit(args.FixLimit, DefaultFixLimit)
	dontLimit := defaultLimit(args.DontLimit, DefaultDontLimit)

	symptoms := normalizeSymptoms(args.Symptoms)
	var env memory.EnvironmentFingerprint
	if args.Env != nil {
		env = memory.EnsureEnvHash(*args.Env)
	}

	fixIDs, dontIDs, err := s.matchCases(ctx, symptoms, env, caseLimit, fixLimit, dontLimit)
	if err != nil {
		return nil, err
	}
	path := "cases"

	if len(fixIDs) == 0 && len(dontIDs) == 0 {
		policy := resolveFallback(args.Fallback)
		if policy.enabled {
			fixIDs, dontIDs = s.fallbackSearch(ctx, args, policy, fixLimit, dontLimit)
			path = "fallback"
		}
	}
	if len(fixIDs) == 0 && len(dontIDs) == 0 {
		path = "empty"
	}
	RetrievalsTotal.WithLabelValues(path).Inc()

	fix, err := s.rankedMemories(ctx, args.AgentID, fixIDs)
	if err != nil {
		return nil, err
	}
	dont, err := s.rankedMemories(ctx, args.AgentID, dontIDs)
	if err != nil {
		return nil, err
	}

	bundle := &ContextBundle{
		SessionID: memory.NewID("session"),
		Sections:  Sections{Fix: fix, DoNotDo: dont},
		Injection: Injection{
			FixBlock:     RenderInjectionBlock("## Recommended fixes", fix),
			DoNotDoBlock: RenderInjectionBlock("## Do not do", dont),
		},
	}
	s.emitRead("retrieveContextBundle", map[string]any{
		"sessionId": bundle.SessionID,
		"fix":       len(fix),
		"doNotDo":   len(dont),
		"path":      path,
	})
	return bundle, nil
}

func defaultLimit(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// scoredCase pairs a case with its match score.
type scoredCase struct {
	c     memory.Case
	score float64
}

// matchCases runs the primary path: candidate cases share a symptom or the
// exact environment hash; ranking is overlap-dominant with environment and
// recency as tiebreakers.
func (s *Service) matchCases(ctx context.Context, symptoms []string, env memory.EnvironmentFingerprint, caseLimit, fixLimit, dontLimit int) (fixIDs, dontIDs []string, err error) {
	if len(symptoms) == 0 && env.Hash == "" {
		return nil, nil, nil
	}

	candidates, err := s.store.MatchCaseCandidates(ctx, graph.CaseQuery{
		Symptoms: symptoms,
		EnvHash:  env.Hash,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("matching cases: %w", err)
	}

	scored := make([]scoredCase, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scoredCase{c: c, score: s.scoreCase(c, symptoms, env)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].c.ID < scored[j].c.ID
	})
	if len(scored) > caseLimit {
		scored = scored[:caseLimit]
	}

	// Union linked memories preserving case rank order.
	fixIDs = unionIDs(scored, func(c memory.Case) []string { return c.ResolvedByIDs }, fixLimit)
	dontIDs = unionIDs(scored, func(c memory.Case) []string { return c.NegativeMemoryIDs }, dontLimit)
	return fixIDs, dontIDs, nil
}

func unionIDs(cases []scoredCase, pick func(memory.Case) []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sc := range cases {
		for _, id := range pick(sc.c) {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// scoreCase blends symptom overlap (dominant), environment similarity, and
// recency of resolution.
func (s *Service) scoreCase(c memory.Case, symptoms []string, env memory.EnvironmentFingerprint) float64 {
	var overlap float64
	if len(symptoms) > 0 {
		caseSymptoms := make(map[string]struct{}, len(c.Symptoms))
		for _, sym := range c.Symptoms {
			caseSymptoms[sym] = struct{}{}
		}
		shared := 0
		for _, sym := range symptoms {
			if _, ok := caseSymptoms[sym]; ok {
				shared++
			}
		}
		overlap = float64(shared) / float64(len(symptoms))
	}

	envScore := environmentScore(c.Env, env)

	var recency float64
	if c.ResolvedAt != nil {
		age := s.now().Sub(*c.ResolvedAt).Seconds()
		if age < 0 {
			age = 0
		}
		recency = math.Exp2(-age / s.halfLife.Seconds())
	}

	return 2*overlap + envScore + 0.5*recency
}

// environmentScore is 1.0 on an exact hash match, else half the fraction of
// matching fields among those the query sets.
func environmentScore(caseEnv, queryEnv memory.EnvironmentFingerprint) float64 {
	if queryEnv.Hash == "" {
		return 0
	}
	if caseEnv.Hash == queryEnv.Hash {
		return 1.0
	}

	type pair struct{ got, want string }
	fields := []pair{
		{caseEnv.OS, queryEnv.OS},
		{caseEnv.Distro, queryEnv.Distro},
		{caseEnv.CI, queryEnv.CI},
		{caseEnv.Filesystem, queryEnv.Filesystem},
		{caseEnv.WorkspaceMount, queryEnv.WorkspaceMount},
		{caseEnv.RuntimeVersion, queryEnv.RuntimeVersion},
		{caseEnv.PackageManager, queryEnv.PackageManager},
		{caseEnv.PMVersion, queryEnv.PMVersion},
	}
	set, matched := 0, 0
	for _, f := range fields {
		if f.want == "" {
			continue
		}
		set++
		if f.got == f.want {
			matched++
		}
	}
	if queryEnv.Container != nil {
		set++
		if caseEnv.Container != nil && *caseEnv.Container == *queryEnv.Container {
			matched++
		}
	}
	if set == 0 {
		return 0
	}
	return 0.5 * float64(matched) / float64(set)
}

// fallbackSearch combines the enabled secondary legs and splits candidates
// by polarity. Any leg failure degrades the whole fallback to empty results.
func (s *Service) fallbackSearch(ctx context.Context, args *RetrieveArgs, policy fallbackPolicy, fixLimit, dontLimit int) (fixIDs, dontIDs []string) {
	hits := make(map[string]graph.Hit)
	merge := func(found []graph.Hit) {
		for _, h := range found {
			if prev, ok := hits[h.Memory.ID]; !ok || h.Score > prev.Score {
				hits[h.Memory.ID] = h
			}
		}
	}

	degrade := func(leg string, err error) {
		s.log.Warn("retrieval fallback failed",
			zap.String("leg", leg),
			zap.Error(err))
		RetrievalFallbackErrorsTotal.Inc()
		s.emitRead("retrieveContextBundle.fallbackError", map[string]any{
			"leg":   leg,
			"error": err.Error(),
		})
	}

	if policy.fullText && strings.TrimSpace(args.Prompt) != "" {
		found, err := s.store.SearchText(ctx, graph.TextQuery{Query: args.Prompt, Limit: fixLimit + dontLimit})
		if err != nil {
			degrade("fulltext", err)
			return nil, nil
		}
		merge(found)
	}
	if policy.tags && len(args.Tags) > 0 {
		found, err := s.store.FindByTags(ctx, args.Tags, fixLimit+dontLimit)
		if err != nil {
			degrade("tags", err)
			return nil, nil
		}
		merge(found)
	}
	if policy.vector && s.index != nil && strings.TrimSpace(args.Prompt) != "" {
		results, err := s.index.Query(ctx, args.Prompt, fixLimit+dontLimit)
		if err != nil {
			degrade("vector", err)
			return nil, nil
		}
		ids := make([]string, 0, len(results))
		sim := make(map[string]float64, len(results))
		for _, r := range results {
			ids = append(ids, r.ID)
			sim[r.ID] = float64(r.Similarity)
		}
		mems, err := s.store.GetMemoriesByID(ctx, ids)
		if err != nil {
			degrade("vector", err)
			return nil, nil
		}
		for _, m := range mems {
			merge([]graph.Hit{{Memory: m, Score: sim[m.ID]}})
		}
	}

	ranked := make([]graph.Hit, 0, len(hits))
	for _, h := range hits {
		ranked = append(ranked, h)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Memory.ID < ranked[j].Memory.ID
	})

	for _, h := range ranked {
		if h.Memory.Polarity == memory.PolarityNegative {
			if len(dontIDs) < dontLimit {
				dontIDs = append(dontIDs, h.Memory.ID)
			}
		} else if len(fixIDs) < fixLimit {
			fixIDs = append(fixIDs, h.Memory.ID)
		}
	}
	return fixIDs, dontIDs
}

// rankedMemories fetches memories in ranked order and attaches each one's
// current recall posterior. An absent edge reports the floor default with
// mean 0.5.
func (s *Service) rankedMemories(ctx context.Context, agentID string, ids []string) ([]RankedMemory, error) {
	if len(ids) == 0 {
		return []RankedMemory{}, nil
	}
	mems, err := s.store.GetMemoriesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching bundle memories: %w", err)
	}
	edges, err := s.store.GetRecallEdges(ctx, agentID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching recall edges: %w", err)
	}

	out := make([]RankedMemory, 0, len(mems))
	for _, m := range mems {
		edge, ok := edges[m.ID]
		if !ok {
			edge = memory.DefaultEdge()
		}
		out = append(out, RankedMemory{Memory: m, EdgeBefore: edge})
	}
	return out, nil
}

// RenderInjectionBlock renders one section as a plain-text block in ranked
// order. Output must stay byte-stable: golden tests pin it.
func RenderInjectionBlock(header string, items []RankedMemory) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	for _, item := range items {
		sb.WriteString("\n\n### [MEM:")
		sb.WriteString(item.Memory.ID)
		sb.WriteString("] ")
		sb.WriteString(item.Memory.Title)
		sb.WriteString("\n")
		sb.WriteString(item.Memory.Content)
	}
	return sb.String()
}
