package memory

import "regexp"

// SecretScanner flags content that looks like it embeds a credential.
// It is a conservative pattern scan, not a guarantee.
type SecretScanner interface {
	HasSecret(text string) bool
}

// secretRule pairs a rule id with its compiled pattern for diagnostics.
type secretRule struct {
	id      string
	pattern *regexp.Regexp
}

// defaultSecretRules covers cloud keys, private-key headers, and OAuth-style
// tokens. Patterns favor self-identifying prefixes to keep false positives
// low; content that merely talks about secrets should pass.
var defaultSecretRules = []secretRule{
	{"aws-access-key-id", regexp.MustCompile(`(A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`)},
	{"private-key", regexp.MustCompile(`-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`)},
	{"github-token", regexp.MustCompile(`(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}`)},
	{"github-fine-grained", regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`)},
	{"gitlab-token", regexp.MustCompile(`glpat-[A-Za-z0-9\-]{20,}`)},
	{"slack-token", regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`)},
	{"stripe-key", regexp.MustCompile(`(?:sk|pk)_(?:live|test)_[A-Za-z0-9]{24,}`)},
	{"google-api-key", regexp.MustCompile(`AIza[A-Za-z0-9_\-]{35}`)},
	{"anthropic-api-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{90,}`)},
	{"openai-api-key", regexp.MustCompile(`sk-[A-Za-z0-9]{48,}`)},
	{"npm-token", regexp.MustCompile(`npm_[A-Za-z0-9]{36}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`)},
	{"database-url", regexp.MustCompile(`(?i)(?:postgres|mysql|mongodb|redis|amqp)://[^:\s]+:[^@\s]+@[^\s]+`)},
}

// RegexSecretScanner is the default SecretScanner backed by the rule set
// above.
type RegexSecretScanner struct {
	rules []secretRule
}

// NewSecretScanner returns the default scanner.
func NewSecretScanner() *RegexSecretScanner {
	return &RegexSecretScanner{rules: defaultSecretRules}
}

// HasSecret reports whether any rule matches text.
func (s *RegexSecretScanner) HasSecret(text string) bool {
	return s.MatchRule(text) != ""
}

// MatchRule returns the id of the first matching rule, or "" if none match.
func (s *RegexSecretScanner) MatchRule(text string) string {
	for _, r := range s.rules {
		if r.pattern.MatchString(text) {
			return r.id
		}
	}
	return ""
}
