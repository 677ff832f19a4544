// Package memory defines the domain model for the associative agent-memory
// engine: memories, cases, environment fingerprints, and the Beta-posterior
// edges that drive recall ranking.
//
// Everything in this package is pure data and pure functions. Persistence
// lives behind the graph store contract, and the algorithms that mutate this
// state live in the engine package.
package memory

import (
	"errors"
	"time"
)

// Common errors for memory operations.
var (
	ErrMemoryNotFound = errors.New("memory not found")
	ErrInvalidKind    = errors.New("kind must be semantic, procedural, or episodic")
	ErrEmptyAgentID   = errors.New("agent ID cannot be empty")
)

// Kind classifies what a memory holds.
type Kind string

const (
	// KindSemantic is a reusable fact or concept.
	KindSemantic Kind = "semantic"

	// KindProcedural is a skill: steps that fix or verify something.
	KindProcedural Kind = "procedural"

	// KindEpisodic is a trace of a specific run.
	KindEpisodic Kind = "episodic"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindSemantic || k == KindProcedural || k == KindEpisodic
}

// Polarity marks a memory as something to do or something to avoid.
type Polarity string

const (
	// PolarityPositive is a pattern worth repeating.
	PolarityPositive Polarity = "positive"

	// PolarityNegative is an anti-pattern to avoid.
	PolarityNegative Polarity = "negative"
)

// Scope bounds where a memory applies.
type Scope struct {
	Repo     string   `json:"repo,omitempty"`
	Package  string   `json:"package,omitempty"`
	Module   string   `json:"module,omitempty"`
	Runtime  string   `json:"runtime,omitempty"`
	Versions []string `json:"versions,omitempty"`
}

// IsZero reports whether no scope field is set.
func (s Scope) IsZero() bool {
	return s.Repo == "" && s.Package == "" && s.Module == "" && s.Runtime == "" && len(s.Versions) == 0
}

// Triage captures the diagnostic shape of a problem a memory resolves.
type Triage struct {
	Symptoms          []string `json:"symptoms,omitempty"`
	LikelyCauses      []string `json:"likelyCauses,omitempty"`
	VerificationSteps []string `json:"verificationSteps,omitempty"`
	FixSteps          []string `json:"fixSteps,omitempty"`
	Gotchas           []string `json:"gotchas,omitempty"`
}

// Signals are raw observations attached to a memory at capture time.
type Signals struct {
	Symptoms    []string `json:"symptoms,omitempty"`
	Environment []string `json:"environment,omitempty"`
}

// DistilledInvariant is a single distilled rule with its supporting context.
type DistilledInvariant struct {
	Invariant     string   `json:"invariant"`
	Justification string   `json:"justification,omitempty"`
	Verification  []string `json:"verification,omitempty"`
	Applicability []string `json:"applicability,omitempty"`
	Risks         []string `json:"risks,omitempty"`
}

// Distilled holds the structured distillation of a memory, when one exists.
type Distilled struct {
	Invariants        []DistilledInvariant `json:"invariants,omitempty"`
	Steps             []string             `json:"steps,omitempty"`
	VerificationSteps []string             `json:"verificationSteps,omitempty"`
	Gotchas           []string             `json:"gotchas,omitempty"`
}

// AntiPattern describes what not to do and why. Required for negative
// polarity memories.
type AntiPattern struct {
	Action           string `json:"action"`
	WhyBad           string `json:"whyBad"`
	SaferAlternative string `json:"saferAlternative,omitempty"`
}

// ErrorSignature is a hashed reference to a recognizable error string.
type ErrorSignature struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// EnvironmentFingerprint is a hashed, low-cardinality description of the
// execution context a memory or case was observed in. The hash is computed
// over a fixed key order so identical environments collapse to one node.
type EnvironmentFingerprint struct {
	Hash   string `json:"hash,omitempty"`
	OS     string `json:"os,omitempty"`
	Distro string `json:"distro,omitempty"`
	CI     string `json:"ci,omitempty"`

	// Container is tri-state: nil is unknown, and an explicit false is a
	// distinct observation that hashes differently from absence.
	Container *bool `json:"container,omitempty"`

	Filesystem     string `json:"filesystem,omitempty"`
	WorkspaceMount string `json:"workspaceMount,omitempty"`
	RuntimeVersion string `json:"runtimeVersion,omitempty"`
	PackageManager string `json:"packageManager,omitempty"`
	PMVersion      string `json:"pmVersion,omitempty"`
}

// Memory is a reusable unit of knowledge. Content is immutable once written:
// a second submission with the same contentHash resolves to the existing id.
type Memory struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Polarity Polarity `json:"polarity"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Summary  string   `json:"summary,omitempty"`

	WhenToUse  []string `json:"whenToUse,omitempty"`
	HowToApply []string `json:"howToApply,omitempty"`
	Gotchas    []string `json:"gotchas,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
	Scope      Scope    `json:"scope,omitempty"`

	// Tags are unique and kept in submission order for display; hashing
	// sorts its own normalized copy.
	Tags []string `json:"tags"`

	// Confidence is the author's trust in the memory, 0..1.
	Confidence float64 `json:"confidence"`

	// Utility starts low and rises only through feedback.
	Utility float64 `json:"utility"`

	// ContentHash is the dedup fingerprint. Never changes after creation.
	ContentHash string `json:"contentHash"`

	Outcome   string     `json:"outcome,omitempty"`
	ValidFrom *time.Time `json:"validFrom,omitempty"`
	ValidTo   *time.Time `json:"validTo,omitempty"`

	Triage      *Triage      `json:"triage,omitempty"`
	Signals     *Signals     `json:"signals,omitempty"`
	Distilled   *Distilled   `json:"distilled,omitempty"`
	AntiPattern *AntiPattern `json:"antiPattern,omitempty"`

	Concepts        []string                `json:"concepts,omitempty"`
	Symptoms        []string                `json:"symptoms,omitempty"`
	FilePaths       []string                `json:"filePaths,omitempty"`
	ToolNames       []string                `json:"toolNames,omitempty"`
	ErrorSignatures []ErrorSignature        `json:"errorSignatures,omitempty"`
	Env             *EnvironmentFingerprint `json:"env,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CaseOutcome is how a recorded situation ended.
type CaseOutcome string

const (
	CaseResolved   CaseOutcome = "resolved"
	CaseUnresolved CaseOutcome = "unresolved"
	CaseWorkaround CaseOutcome = "workaround"
)

// Case is an episodic record of symptoms plus environment, linked to the
// memories that resolved it and the ones that made things worse.
type Case struct {
	ID                string                 `json:"id"`
	Title             string                 `json:"title"`
	Summary           string                 `json:"summary"`
	Outcome           CaseOutcome            `json:"outcome"`
	Symptoms          []string               `json:"symptoms"`
	Env               EnvironmentFingerprint `json:"env"`
	ResolvedByIDs     []string               `json:"resolvedByMemoryIds"`
	NegativeMemoryIDs []string               `json:"negativeMemoryIds"`
	ResolvedAt        *time.Time             `json:"resolvedAt,omitempty"`
}

// LearningCandidate is a submission to the save path, before validation.
type LearningCandidate struct {
	ID       string   `json:"id,omitempty"`
	Kind     Kind     `json:"kind"`
	Polarity Polarity `json:"polarity,omitempty"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Summary  string   `json:"summary,omitempty"`

	WhenToUse  []string `json:"whenToUse,omitempty"`
	HowToApply []string `json:"howToApply,omitempty"`
	Gotchas    []string `json:"gotchas,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
	Scope      Scope    `json:"scope,omitempty"`

	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`

	// Utility overrides the default starting utility. Nil means "not set";
	// an explicit 0 is honored.
	Utility *float64 `json:"utility,omitempty"`

	ContentHash string `json:"contentHash,omitempty"`
	Outcome     string `json:"outcome,omitempty"`

	Triage      *Triage      `json:"triage,omitempty"`
	Signals     *Signals     `json:"signals,omitempty"`
	Distilled   *Distilled   `json:"distilled,omitempty"`
	AntiPattern *AntiPattern `json:"antiPattern,omitempty"`

	Concepts        []string                `json:"concepts,omitempty"`
	FilePaths       []string                `json:"filePaths,omitempty"`
	ToolNames       []string                `json:"toolNames,omitempty"`
	ErrorSignatures []string                `json:"errorSignatures,omitempty"`
	Env             *EnvironmentFingerprint `json:"env,omitempty"`
}

// EffectivePolarity returns the candidate's polarity, defaulting to positive.
func (l *LearningCandidate) EffectivePolarity() Polarity {
	if l.Polarity == PolarityNegative {
		return PolarityNegative
	}
	return PolarityPositive
}

// CollectSymptoms merges normalized symptoms from triage and signals,
// deduplicated, dropping empties.
func (l *LearningCandidate) CollectSymptoms() []string {
	var raw []string
	if l.Triage != nil {
		raw = append(raw, l.Triage.Symptoms...)
	}
	if l.Signals != nil {
		raw = append(raw, l.Signals.Symptoms...)
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		n := NormalizeSymptom(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// BetaEdge is the Beta-Bernoulli posterior carried by recall, co-used, and
// related-to edges. Invariant: A and B stay above their floors, so strength
// is always strictly inside (0,1).
type BetaEdge struct {
	A float64 `json:"a"`
	B float64 `json:"b"`

	// Strength is the cached posterior mean a/(a+b).
	Strength float64 `json:"strength"`

	// Evidence is the cached mass a+b.
	Evidence float64 `json:"evidence"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Floors for Beta parameters. Decay can approach these but never cross them.
const (
	AMin = 1e-3
	BMin = 1e-3
)

// DefaultEdge is the posterior reported for an agent/memory pair that has
// never received feedback: both parameters at their floor, mean 0.5.
func DefaultEdge() BetaEdge {
	return BetaEdge{A: AMin, B: BMin, Strength: 0.5, Evidence: AMin + BMin}
}

// EdgeKind names the relationship types carried between graph nodes.
type EdgeKind string

const (
	EdgeRecalls   EdgeKind = "RECALLS"
	EdgeCoUsed    EdgeKind = "CO_USED_WITH"
	EdgeRelatedTo EdgeKind = "RELATED_TO"
)

// EdgeExport is a flattened edge for listing and inspection.
type EdgeExport struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Kind      EdgeKind  `json:"kind"`
	Strength  float64   `json:"strength"`
	Evidence  float64   `json:"evidence"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event is the read/write notification emitted to the observability
// side-channel. Purely informational; consumers must never be able to
// affect engine control flow.
type Event struct {
	Type   string         `json:"type"` // "read" or "write"
	Action string         `json:"action"`
	At     time.Time      `json:"at"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
