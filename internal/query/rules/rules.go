// Package rules is a deterministic classifier and rewriter. It backs the
// "rules" reasoning adapter and is the fallback when the LLM rewrite breaks
// the pairing rule.
package rules

import (
	"context"
	"regexp"
	"strings"

	"github.com/kailas-cloud/recipematch/internal/domain/query"
	"github.com/kailas-cloud/recipematch/internal/ingredient"
)

var (
	_ query.Classifier = (*Engine)(nil)
	_ query.Rewriter   = (*Engine)(nil)
)

var (
	foodWords = regexp.MustCompile(
		`料理|レシピ|献立|おかず|副菜|主菜|主食|汁物|スープ|味噌汁|みそ汁|サラダ|丼|麺|パスタ|うどん|そば|ラーメン|` +
			`カレー|鍋|弁当|煮|焼|揚|炒|蒸|和え|漬|作り方|つくり方|ご飯|ごはん|食べ|朝食|昼食|夕食|晩ご飯|夜ご飯|` +
			`デザート|お菓子|おつまみ|つまみ|一品|付け合わせ|じゃが|寿司|天ぷら|餃子|ハンバーグ|オムライス|グラタン`)
	foodWordsEN = regexp.MustCompile(
		`(?i)\b(?:recipes?|dish(?:es)?|cook(?:ing)?|meals?|dinner|lunch|breakfast|soups?|salads?|desserts?|` +
			`snacks?|food|eat|bake|fry|fried|grill(?:ed)?|stew|curry|pasta|noodles?|side)\b`)

	usageMarkers = regexp.MustCompile(`使った|使う|使い|使って|で作る|でできる|消費|余った|余り|あるもの|だけで|(?i:\bwith\b|\busing\b|\bleftover)`)

	blocked = regexp.MustCompile(`(?i)死ね|殺す|爆弾|パスワード|password|hack|ignore (?:all|previous) instructions`)

	fillerJA = []string{
		"レシピ", "料理", "おすすめ", "オススメ", "何か", "なにか", "教えて", "ください", "作り方", "を", "の", "が", "は",
	}
	fillerEN = regexp.MustCompile(`(?i)\b(?:recipes?|something|anything|dish(?:es)?|food|please|any|a|an|the|some|good|me|give|show|tell)\b`)
)

// Engine implements query.Classifier and query.Rewriter without network calls.
type Engine struct {
	aliases *ingredient.Normalizer
}

// New creates a rules engine that recognises ingredients through aliases.
func New(aliases *ingredient.Normalizer) *Engine {
	return &Engine{aliases: aliases}
}

// Classify marks food and recipe requests VALID and everything else INVALID.
// Ingredient mentions are reported by surface form.
func (e *Engine) Classify(_ context.Context, q string) (query.Verdict, error) {
	s := query.Clean(q)
	if s == "" || blocked.MatchString(s) {
		return query.Verdict{}, nil
	}

	var surfaces []string
	for _, m := range e.aliases.Extract(s) {
		surfaces = append(surfaces, m.Surface)
	}

	_, pairing := query.DetectPairing(s)
	_, target := query.DetectTarget(s)
	food := foodWords.MatchString(s) || foodWordsEN.MatchString(s)

	switch {
	case pairing || target:
		return query.Verdict{Valid: true, Kind: query.KindDish, Ingredients: surfaces}, nil
	case len(surfaces) > 0 && (usageMarkers.MatchString(s) || onlyIngredients(s, surfaces)):
		return query.Verdict{Valid: true, Kind: query.KindIngredient, Ingredients: surfaces}, nil
	case len(surfaces) > 0 || food:
		return query.Verdict{Valid: true, Kind: query.KindDish, Ingredients: surfaces}, nil
	}
	return query.Verdict{}, nil
}

// Rewrite applies the pairing and target rules. Queries made only of filler
// words yield an empty Rewrite.
func (e *Engine) Rewrite(_ context.Context, q string) (query.Rewrite, error) {
	return Rewrite(q), nil
}

// Rewrite is the pure form of Engine.Rewrite.
func Rewrite(q string) query.Rewrite {
	s := query.Clean(q)
	if degenerate(s) {
		return query.Rewrite{}
	}

	if p, ok := query.DetectPairing(s); ok {
		if p.English {
			return query.Rewrite{
				Text:    p.Category + " recipe that pairs well with " + p.Dish,
				Focus:   query.FocusComplement,
				Subject: p.Category,
			}
		}
		return query.Rewrite{
			Text:    p.Category + "のレシピ（" + p.Dish + "に合う）",
			Focus:   query.FocusComplement,
			Subject: p.Category,
		}
	}

	if dish, ok := query.DetectTarget(s); ok {
		text := dish + "のレシピ"
		if isASCII(dish) {
			text = dish + " recipe"
		}
		return query.Rewrite{Text: text, Focus: query.FocusTarget, Subject: dish}
	}

	return query.Rewrite{Text: s, Focus: query.FocusGeneral}
}

// onlyIngredients reports whether s is a bare list of ingredients.
func onlyIngredients(s string, surfaces []string) bool {
	rest := s
	for _, sf := range surfaces {
		rest = strings.Replace(rest, sf, "", 1)
	}
	for _, f := range []string{"と", "や", "、", "・", ",", "料理", "レシピ", "で", "を"} {
		rest = strings.ReplaceAll(rest, f, "")
	}
	return strings.TrimSpace(rest) == ""
}

func degenerate(s string) bool {
	rest := fillerEN.ReplaceAllString(s, "")
	for _, f := range fillerJA {
		rest = strings.ReplaceAll(rest, f, "")
	}
	return strings.TrimSpace(query.Clean(rest)) == ""
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
