package recipe

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"

	domrecipe "github.com/kailas-cloud/recipematch/internal/domain/recipe"
)

// Hash field names of a recipe document.
const (
	fieldID          = "id"
	fieldTitle       = "title"
	fieldTitleCore   = "title_core"
	fieldCategory    = "category"
	fieldURL         = "url"
	fieldDescription = "description"
	fieldImage       = "image"
	fieldIngredients = "ingredients"
	fieldVector      = "vector"

	ingredientSeparator = "|"
)

var returnFields = []string{
	fieldID, fieldTitle, fieldTitleCore, fieldCategory, fieldURL,
	fieldDescription, fieldImage, fieldIngredients,
}

// titleEntry is one value of the title catalog hash.
type titleEntry struct {
	Title     string `json:"title"`
	TitleCore string `json:"title_core"`
	URL       string `json:"url"`
	Category  string `json:"category"`
}

func buildHashFields(r *domrecipe.Recipe, vec []float32) map[string]string {
	return map[string]string{
		fieldID:          r.ID,
		fieldTitle:       r.Title,
		fieldTitleCore:   r.TitleCore,
		fieldCategory:    r.Category,
		fieldURL:         r.URL,
		fieldDescription: r.Description,
		fieldImage:       r.Image,
		fieldIngredients: strings.Join(r.Ingredients, ingredientSeparator),
		fieldVector:      vectorToBytes(vec),
	}
}

func parseHashFields(id string, m map[string]string) domrecipe.Recipe {
	r := domrecipe.Recipe{
		ID:          id,
		Title:       m[fieldTitle],
		TitleCore:   m[fieldTitleCore],
		Category:    m[fieldCategory],
		URL:         m[fieldURL],
		Description: m[fieldDescription],
		Image:       m[fieldImage],
	}
	if v := m[fieldID]; v != "" {
		r.ID = v
	}
	if v := m[fieldIngredients]; v != "" {
		r.Ingredients = strings.Split(v, ingredientSeparator)
	}
	return r
}

func encodeTitle(r *domrecipe.Recipe) string {
	b, _ := json.Marshal(titleEntry{Title: r.Title, TitleCore: r.TitleCore, URL: r.URL, Category: r.Category}) //nolint:errchkjson // plain strings
	return string(b)
}

func decodeTitle(id, raw string) (domrecipe.Recipe, error) {
	var e titleEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return domrecipe.Recipe{}, err //nolint:wrapcheck // wrapped by caller
	}
	return domrecipe.Recipe{ID: id, Title: e.Title, TitleCore: e.TitleCore, URL: e.URL, Category: e.Category}, nil
}

// vectorToBytes encodes a vector as little-endian FLOAT32.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
