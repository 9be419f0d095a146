// Package query holds the outcome types of intent classification and query
// rewriting, plus the phrase detection both adapters share.
package query

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Kind says what drives a valid query.
type Kind string

const (
	KindIngredient Kind = "ingredient"
	KindDish       Kind = "dish"
	KindGeneral    Kind = "general"
)

// Verdict is the classifier output.
type Verdict struct {
	Valid       bool
	Kind        Kind
	Ingredients []string // surface forms named by the user
}

// IngredientDriven reports whether the query asks for recipes using named ingredients.
func (v Verdict) IngredientDriven() bool {
	return v.Valid && v.Kind == KindIngredient && len(v.Ingredients) > 0
}

// Focus says what the rewritten query targets.
type Focus string

const (
	// FocusComplement targets a dish that accompanies the one the user named.
	FocusComplement Focus = "complement"
	// FocusTarget targets the named dish itself.
	FocusTarget Focus = "target"
	// FocusGeneral is anything else.
	FocusGeneral Focus = "general"
)

// Rewrite is the rewriter output. The zero value means no usable query.
type Rewrite struct {
	Text    string
	Focus   Focus
	Subject string
}

// Empty reports whether the rewrite carries no usable query.
func (r Rewrite) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// Classifier decides whether a query is a food or recipe request.
type Classifier interface {
	Classify(ctx context.Context, q string) (Verdict, error)
}

// Rewriter turns a raw query into a retrieval-oriented one.
type Rewriter interface {
	Rewrite(ctx context.Context, q string) (Rewrite, error)
}

// Pairing is a "something that goes with X" request.
type Pairing struct {
	Dish     string // the dish the user already has
	Category string // what the user wants, e.g. 副菜
	English  bool
}

// Default complement categories.
const (
	DefaultCategoryJA = "副菜"
	DefaultCategoryEN = "side dish"
)

var (
	pairingJA = []*regexp.Regexp{
		regexp.MustCompile(`^(.+?)(?:に|と)(?:合う|あう|合わせる|相性(?:の|が)(?:良い|いい|よい))(.*)$`),
		regexp.MustCompile(`^(.+?)に(?:もう一品|もう1品|もう一つ)(.*)$`),
		regexp.MustCompile(`^(.+?)の(?:付け合わせ|付け合せ|つけあわせ|お供|おとも)(.*)$`),
		regexp.MustCompile(`^(.+?)と一緒に(?:食べる|食べたい|出す|出せる)?(.*)$`),
	}
	pairingEN = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(.*?)\b(?:goes|go|pairs|pair)\s+(?:well\s+)?with\s+(.+)$`),
		regexp.MustCompile(`(?i)^(.*?)\bto\s+(?:serve|eat)\s+with\s+(.+)$`),
		regexp.MustCompile(`(?i)^(.*?\b(?:side\s+dish(?:es)?|sides?|soups?|salads?|desserts?))\s+(?:for|with)\s+(.+)$`),
	}
	targetJA = []*regexp.Regexp{
		regexp.MustCompile(`^(.+?)の(?:作り方|つくり方|レシピ)`),
		regexp.MustCompile(`^(.+?)(?:を|が)(?:作りたい|つくりたい|作る方法)`),
	}
	targetEN = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:how\s+(?:to|do\s+i)\s+(?:make|cook)|recipes?\s+for)\s+(.+)$`),
		regexp.MustCompile(`(?i)^(.+?)\s+recipes?$`),
	}

	categoriesJA = []struct{ pattern, category string }{
		{"汁物", "汁物"}, {"スープ", "汁物"}, {"味噌汁", "汁物"}, {"みそ汁", "汁物"},
		{"サラダ", "サラダ"},
		{"デザート", "デザート"}, {"甘いもの", "デザート"},
		{"主菜", "主菜"}, {"メイン", "主菜"},
		{"ご飯もの", "ご飯もの"}, {"主食", "ご飯もの"},
	}
	categoriesEN = []struct{ pattern, category string }{
		{"soup", "soup"}, {"salad", "salad"}, {"dessert", "dessert"},
		{"main", "main dish"}, {"rice", "rice dish"},
	}

	requestTail = []string{
		"を教えてください", "を教えて下さい", "を教えて", "教えてください", "教えて",
		"が知りたい", "を知りたい", "ください", "下さい", "がほしい", "が欲しい", "はありますか",
		"はある", "はない",
	}
)

// Clean trims whitespace, trailing punctuation and polite request endings.
func Clean(q string) string {
	s := strings.TrimSpace(q)
	for {
		before := s
		s = strings.TrimRightFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		for _, tail := range requestTail {
			if t, ok := strings.CutSuffix(s, tail); ok && t != "" {
				s = t
				break
			}
		}
		if s == before {
			return s
		}
	}
}

// DetectPairing recognises a complement request and extracts the named dish.
func DetectPairing(q string) (Pairing, bool) {
	s := Clean(q)
	for _, re := range pairingJA {
		if m := re.FindStringSubmatch(s); m != nil {
			dish := trimDish(m[1])
			if dish == "" {
				continue
			}
			return Pairing{Dish: dish, Category: categoryJA(m[2])}, true
		}
	}
	for _, re := range pairingEN {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		dish := trimDish(m[2])
		if dish == "" {
			continue
		}
		return Pairing{Dish: dish, Category: categoryEN(m[1]), English: true}, true
	}
	return Pairing{}, false
}

// DetectTarget recognises a request for a specific dish and returns it verbatim.
func DetectTarget(q string) (string, bool) {
	s := Clean(q)
	for _, re := range targetJA {
		if m := re.FindStringSubmatch(s); m != nil {
			if dish := trimDish(m[1]); dish != "" {
				return dish, true
			}
		}
	}
	for _, re := range targetEN {
		if m := re.FindStringSubmatch(s); m != nil {
			if dish := trimDish(m[1]); dish != "" {
				return dish, true
			}
		}
	}
	return "", false
}

// ErrPairingViolated is returned by CheckRewrite when a complement request was
// rewritten with the named dish as its subject.
var ErrPairingViolated = errors.New("rewrite targets the paired dish instead of its complement")

// CheckRewrite verifies the constraint-versus-target rule for q and its rewrite:
// a complement request must not be rewritten around the dish the user already has.
func CheckRewrite(q string, r Rewrite) error {
	p, ok := DetectPairing(q)
	if !ok || r.Empty() {
		return nil
	}
	text := strings.TrimSpace(r.Text)
	switch {
	case r.Focus != FocusComplement:
		return ErrPairingViolated
	case strings.EqualFold(strings.TrimSpace(r.Subject), p.Dish):
		return ErrPairingViolated
	case strings.HasPrefix(strings.ToLower(text), strings.ToLower(p.Dish)):
		return ErrPairingViolated
	case strings.Count(strings.ToLower(text), strings.ToLower(p.Dish)) > 1:
		return ErrPairingViolated
	}
	return nil
}

func trimDish(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "「」『』\"' ")
	for _, article := range []string{"a ", "an ", "the ", "my "} {
		if len(s) > len(article) && strings.EqualFold(s[:len(article)], article) {
			s = s[len(article):]
			break
		}
	}
	return strings.TrimSpace(s)
}

func categoryJA(rest string) string {
	for _, c := range categoriesJA {
		if strings.Contains(rest, c.pattern) {
			return c.category
		}
	}
	return DefaultCategoryJA
}

func categoryEN(head string) string {
	h := strings.ToLower(head)
	for _, c := range categoriesEN {
		if strings.Contains(h, c.pattern) {
			return c.category
		}
	}
	return DefaultCategoryEN
}
