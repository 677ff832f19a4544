package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Normalize trims, lowercases, and collapses internal whitespace so that
// submissions differing only in casing or spacing hash identically.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// NormalizeSymptom applies the same normalization used for tags so that
// symptom matching is case- and whitespace-insensitive.
func NormalizeSymptom(s string) string {
	return Normalize(s)
}

// NormalizeTags normalizes, deduplicates, and sorts tags for hashing.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SHA256Hex returns the hex-encoded SHA-256 digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CanonicalForHash joins the normalized title, content, and sorted tags into
// the canonical dedup payload.
func CanonicalForHash(title, content string, tags []string) string {
	return Normalize(title) + "\n" + Normalize(content) + "\n" + strings.Join(NormalizeTags(tags), ",")
}

// canonicalCardLines serializes a candidate's structured fields in a fixed
// order. Field order is part of the fingerprint contract; changing it would
// orphan every stored hash.
func canonicalCardLines(l *LearningCandidate) string {
	var lines []string
	if l.Summary != "" {
		lines = append(lines, "summary:"+l.Summary)
	}
	if l.Outcome != "" {
		lines = append(lines, "outcome:"+l.Outcome)
	}
	for _, x := range l.WhenToUse {
		lines = append(lines, "whenToUse:"+x)
	}
	for _, x := range l.HowToApply {
		lines = append(lines, "howToApply:"+x)
	}
	for _, x := range l.Gotchas {
		lines = append(lines, "gotchas:"+x)
	}
	if l.Scope.Repo != "" {
		lines = append(lines, "scope.repo:"+l.Scope.Repo)
	}
	if l.Scope.Package != "" {
		lines = append(lines, "scope.package:"+l.Scope.Package)
	}
	if l.Scope.Module != "" {
		lines = append(lines, "scope.module:"+l.Scope.Module)
	}
	if l.Scope.Runtime != "" {
		lines = append(lines, "scope.runtime:"+l.Scope.Runtime)
	}
	for _, x := range l.Scope.Versions {
		lines = append(lines, "scope.versions:"+x)
	}
	for _, x := range l.Evidence {
		lines = append(lines, "evidence:"+x)
	}
	lines = append(lines, "content:"+l.Content)
	return strings.Join(lines, "\n")
}

// ContentHash computes the dedup fingerprint for a candidate. A caller-set
// contentHash wins so that externally computed fingerprints round-trip.
func ContentHash(l *LearningCandidate) string {
	if h := strings.TrimSpace(l.ContentHash); h != "" {
		return h
	}
	return SHA256Hex(CanonicalForHash(l.Title, canonicalCardLines(l), l.Tags))
}

// envHashPayload fixes the key order and makes absence explicit: a missing
// optional field hashes as null, not as an omission.
type envHashPayload struct {
	OS             *string `json:"os"`
	Distro         *string `json:"distro"`
	CI             *string `json:"ci"`
	Container      *bool   `json:"container"`
	Filesystem     *string `json:"filesystem"`
	WorkspaceMount *string `json:"workspaceMount"`
	RuntimeVersion *string `json:"runtimeVersion"`
	PackageManager *string `json:"packageManager"`
	PMVersion      *string `json:"pmVersion"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EnvHash fingerprints the high-signal environment keys in a stable order so
// identical environments collapse to one node.
func EnvHash(env EnvironmentFingerprint) string {
	payload := envHashPayload{
		OS:             optString(env.OS),
		Distro:         optString(env.Distro),
		CI:             optString(env.CI),
		Container:      env.Container,
		Filesystem:     optString(env.Filesystem),
		WorkspaceMount: optString(env.WorkspaceMount),
		RuntimeVersion: optString(env.RuntimeVersion),
		PackageManager: optString(env.PackageManager),
		PMVersion:      optString(env.PMVersion),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		// Marshalling a flat struct of pointers cannot fail.
		panic(err)
	}
	return SHA256Hex(string(b))
}

// EnsureEnvHash fills in the hash when absent and returns the fingerprint.
func EnsureEnvHash(env EnvironmentFingerprint) EnvironmentFingerprint {
	if env.Hash == "" {
		env.Hash = EnvHash(env)
	}
	return env
}

// NewID mints a prefixed unique id, e.g. "mem_1f0c...".
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String())
}
