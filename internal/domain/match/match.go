// Package match defines the request and result types of recipe matching.
package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/recipematch/internal/domain"
	"github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

// Mode selects the matching strategy.
type Mode string

const (
	// ModeFree ranks by embedding similarity with diversity re-ranking.
	ModeFree Mode = "free"
	// ModeStrict ranks deterministically and honours named ingredients.
	ModeStrict Mode = "strict"
	// ModeLexical uses title and ingredient keyword search only.
	ModeLexical Mode = "lexical"
)

// ParseMode parses a mode string. Empty input yields ModeFree.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFree:
		return ModeFree, nil
	case ModeStrict:
		return ModeStrict, nil
	case ModeLexical:
		return ModeLexical, nil
	}
	return "", domain.NewInvalidRequest("mode", fmt.Sprintf("unknown mode %q", s))
}

// Reason tags an empty result with why it is empty.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonInvalidInput Reason = "invalid-input"
	ReasonInvalidQuery Reason = "invalid-query"
	ReasonNoMatch      Reason = "no-match"
)

// Request is one match request. User is carried for logging only.
type Request struct {
	Text string
	Mode Mode
	User string
}

// MaxTextLen bounds the query length accepted at the boundary.
const MaxTextLen = 500

// Validate rejects requests the pipeline must never see.
func (r *Request) Validate() error {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return domain.NewInvalidRequest("text", "must not be empty")
	}
	if n := len([]rune(text)); n > MaxTextLen {
		return domain.NewInvalidRequest("text", fmt.Sprintf("must be at most %d characters, got %d", MaxTextLen, n))
	}
	return nil
}

// Candidate is a recipe scored against one query. Similarities are only
// comparable within the same query.
type Candidate struct {
	Recipe     recipe.Recipe
	Similarity float64
	Rank       int
}

// Outcome is the result of one match request.
type Outcome struct {
	Candidates []Candidate
	Reason     Reason
	Rewritten  string
	Threshold  float64
}

// Empty returns an outcome with no candidates and the given reason.
func Empty(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// FormatSimilarity renders a similarity in [0,1] as a whole percentage, e.g. "87%".
func FormatSimilarity(sim float64) string {
	sim = min(1, max(0, sim))
	return fmt.Sprintf("%d%%", int(math.Round(sim*100)))
}
