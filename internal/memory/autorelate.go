package memory

// AutoRelateConfig controls the tag-overlap relation proposer that runs after
// writes. Zero-value fields fall back to defaults via BuildAutoRelateConfig.
type AutoRelateConfig struct {
	Enabled       *bool    `json:"enabled,omitempty" koanf:"enabled"`
	MinSharedTags *int     `json:"minSharedTags,omitempty" koanf:"min_shared_tags"`
	MinWeight     *float64 `json:"minWeight,omitempty" koanf:"min_weight"`
	MaxCandidates *int     `json:"maxCandidates,omitempty" koanf:"max_candidates"`
	SameKind      *bool    `json:"sameKind,omitempty" koanf:"same_kind"`
	SamePolarity  *bool    `json:"samePolarity,omitempty" koanf:"same_polarity"`
	AllowedKinds  []Kind   `json:"allowedKinds,omitempty" koanf:"allowed_kinds"`
}

// AutoRelatePolicy is the fully resolved configuration the writer consumes.
type AutoRelatePolicy struct {
	Enabled       bool
	MinSharedTags int
	MinWeight     float64
	MaxCandidates int
	SameKind      bool
	SamePolarity  bool
	AllowedKinds  []Kind
}

// Hard lower bounds; a config asking for less is clamped, not rejected.
const (
	autoRelateMinSharedTagsFloor = 1
	autoRelateMaxCandidatesFloor = 1
)

// DefaultAutoRelatePolicy returns the stock policy: enabled, two shared tags,
// weight floor 0.2, same kind and polarity, semantic+procedural only.
func DefaultAutoRelatePolicy() AutoRelatePolicy {
	return AutoRelatePolicy{
		Enabled:       true,
		MinSharedTags: 2,
		MinWeight:     0.2,
		MaxCandidates: 12,
		SameKind:      true,
		SamePolarity:  true,
		AllowedKinds:  []Kind{KindSemantic, KindProcedural},
	}
}

// BuildAutoRelatePolicy resolves overrides against defaults and clamps
// values into their legal ranges.
func BuildAutoRelatePolicy(cfg *AutoRelateConfig) AutoRelatePolicy {
	p := DefaultAutoRelatePolicy()
	if cfg == nil {
		return p
	}
	if cfg.Enabled != nil {
		p.Enabled = *cfg.Enabled
	}
	if cfg.MinSharedTags != nil {
		p.MinSharedTags = max(autoRelateMinSharedTagsFloor, *cfg.MinSharedTags)
	}
	if cfg.MinWeight != nil {
		p.MinWeight = Clamp01(*cfg.MinWeight)
	}
	if cfg.MaxCandidates != nil {
		p.MaxCandidates = max(autoRelateMaxCandidatesFloor, *cfg.MaxCandidates)
	}
	if cfg.SameKind != nil {
		p.SameKind = *cfg.SameKind
	}
	if cfg.SamePolarity != nil {
		p.SamePolarity = *cfg.SamePolarity
	}
	if cfg.AllowedKinds != nil {
		p.AllowedKinds = append([]Kind(nil), cfg.AllowedKinds...)
	}
	return p
}

// AllowsKind reports whether the policy admits memories of kind k.
// An empty allow-list admits every kind.
func (p AutoRelatePolicy) AllowsKind(k Kind) bool {
	if len(p.AllowedKinds) == 0 {
		return true
	}
	for _, allowed := range p.AllowedKinds {
		if allowed == k {
			return true
		}
	}
	return false
}
