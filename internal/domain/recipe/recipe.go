// Package recipe holds the read model of the indexed recipe corpus.
package recipe

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Recipe is one indexed corpus entry.
type Recipe struct {
	ID          string
	Title       string
	TitleCore   string // normalized title used for lexical comparison
	Category    string
	URL         string
	Description string
	Image       string
	Ingredients []string // canonical ingredient names
}

// DedupKey identifies a recipe for de-duplication: the URL when present,
// otherwise the title.
func (r *Recipe) DedupKey() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Title
}

// Validate checks the fields required for indexing.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("recipe id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("recipe title is required")
	}
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("recipe url is required")
	}
	return nil
}

// Ingredient is one row of the ingredient side-table.
type Ingredient struct {
	ID             string
	Name           string // canonical raw name
	NameNormalized string // textnorm form of Name
	Kana           string // hiragana reading, textnorm form
}

var ingredientNamespace = uuid.MustParse("6f1c3c52-8d0e-4b7a-9f1e-3b7d2a9c5e41")

// IngredientID derives a stable id from a canonical ingredient name, so
// repeated ingestion of the same name lands on the same side-table row.
func IngredientID(name string) string {
	return uuid.NewSHA1(ingredientNamespace, []byte(strings.TrimSpace(name))).String()
}

// NewID returns a random recipe id for corpus rows that carry none.
func NewID() string {
	return uuid.NewString()
}

// IndexSpec describes the vector index built over recipe documents.
type IndexSpec struct {
	Dimensions  int
	HNSWM       int
	EFConstruct int
}
