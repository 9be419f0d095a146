// Package ingredient maps surface forms of ingredient names onto canonical
// names so that lexical lookups agree on one spelling.
package ingredient

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rule maps every fragment starting with Pattern to Canonical.
type Rule struct {
	Pattern   string `yaml:"pattern"`
	Canonical string `yaml:"canonical"`
}

type compiledRule struct {
	re        *regexp.Regexp
	canonical string
}

// Normalizer applies an ordered rule list. First match wins. It is immutable
// after construction and safe for concurrent use.
type Normalizer struct {
	rules []compiledRule
}

// Match is one ingredient mention found by Extract.
type Match struct {
	Surface   string
	Canonical string
}

// NewNormalizer compiles rules in order.
func NewNormalizer(rules []Rule) (*Normalizer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.Pattern == "" || r.Canonical == "" {
			return nil, fmt.Errorf("rule %d: pattern and canonical are required", i)
		}
		re, err := regexp.Compile(`^(?:` + r.Pattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Canonical, err)
		}
		compiled = append(compiled, compiledRule{re: re, canonical: r.Canonical})
	}
	return &Normalizer{rules: compiled}, nil
}

// Default returns a normalizer over DefaultRules.
func Default() *Normalizer {
	n, err := NewNormalizer(DefaultRules)
	if err != nil {
		panic(err)
	}
	return n
}

// Load builds a normalizer from an optional YAML rule file. File rules are
// tried before DefaultRules. An empty path yields Default().
func Load(path string) (*Normalizer, error) {
	if path == "" {
		return Default(), nil
	}
	extra, err := ReadRules(path)
	if err != nil {
		return nil, err
	}
	return NewNormalizer(append(extra, DefaultRules...))
}

// ReadRules parses a YAML document of the form {rules: [{pattern, canonical}]}.
func ReadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read alias rules %s: %w", path, err)
	}
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse alias rules %s: %w", path, err)
	}
	if len(doc.Rules) == 0 {
		return nil, errors.New("alias rules file has no rules")
	}
	return doc.Rules, nil
}

// Len returns the number of rules.
func (n *Normalizer) Len() int { return len(n.rules) }

// Canonical maps a single fragment. Unmatched fragments come back unchanged.
func (n *Normalizer) Canonical(fragment string) string {
	for _, r := range n.rules {
		if r.re.MatchString(fragment) {
			return r.canonical
		}
	}
	return fragment
}

// NormalizeTokens splits input into fragments and canonicalizes each one.
func (n *Normalizer) NormalizeTokens(input string) []string {
	fragments := Split(input)
	out := make([]string, len(fragments))
	for i, f := range fragments {
		out[i] = n.Canonical(f)
	}
	return out
}

// Normalize canonicalizes every fragment and joins them with one space.
// Input without any fragment is returned unchanged.
func (n *Normalizer) Normalize(input string) string {
	tokens := n.NormalizeTokens(input)
	if len(tokens) == 0 {
		return input
	}
	return strings.Join(tokens, " ")
}

// Extract scans free text for ingredient mentions, left to right, without
// requiring separators. Overlapping mentions are not reported.
func (n *Normalizer) Extract(text string) []Match {
	var out []Match
	for i := 0; i < len(text); {
		if m, size := n.matchAt(text[i:]); size > 0 {
			out = append(out, Match{Surface: text[i : i+size], Canonical: m})
			i += size
			continue
		}
		_, w := utf8.DecodeRuneInString(text[i:])
		i += w
	}
	return out
}

func (n *Normalizer) matchAt(s string) (string, int) {
	for _, r := range n.rules {
		if loc := r.re.FindStringIndex(s); loc != nil && loc[1] > 0 {
			return r.canonical, loc[1]
		}
	}
	return "", 0
}

// Split breaks input on ASCII and ideographic whitespace, commas, 、 and ・.
func Split(input string) []string {
	return strings.FieldsFunc(input, isSeparator)
}

func isSeparator(r rune) bool {
	switch r {
	case ',', '，', '、', '・':
		return true
	}
	return unicode.IsSpace(r)
}
