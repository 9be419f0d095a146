package query

import (
	"errors"
	"testing"
)

func TestClean(t *testing.T) {
	tests := map[string]string{
		"  唐揚げの作り方を教えてください。 ": "唐揚げの作り方",
		"肉じゃが":                "肉じゃが",
		"何か副菜ある？":             "何か副菜ある",
		"side dish for curry?!": "side dish for curry",
		"":                     "",
	}
	for in, want := range tests {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectPairing(t *testing.T) {
	tests := []struct {
		in       string
		dish     string
		category string
		english  bool
	}{
		{"唐揚げに合う副菜", "唐揚げ", "副菜", false},
		{"唐揚げに合うスープを教えて", "唐揚げ", "汁物", false},
		{"ハンバーグにもう一品", "ハンバーグ", "副菜", false},
		{"カレーの付け合わせ", "カレー", "副菜", false},
		{"にんじんに合うサラダ", "にんじん", "サラダ", false},
		{"鮭と相性の良いデザート", "鮭", "デザート", false},
		{"what goes well with karaage?", "karaage", "side dish", true},
		{"a soup to serve with the curry", "curry", "soup", true},
		{"side dish for fried chicken", "fried chicken", "side dish", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, ok := DetectPairing(tt.in)
			if !ok {
				t.Fatal("expected pairing")
			}
			if p.Dish != tt.dish || p.Category != tt.category || p.English != tt.english {
				t.Errorf("got %+v", p)
			}
		})
	}
}

func TestDetectPairing_Negative(t *testing.T) {
	for _, in := range []string{
		"唐揚げの作り方",
		"鶏肉と人参を使った料理",
		"recipe for fried chicken",
		"what to make for dinner",
		"肉じゃが",
	} {
		if p, ok := DetectPairing(in); ok {
			t.Errorf("DetectPairing(%q) = %+v, want no pairing", in, p)
		}
	}
}

func TestDetectTarget(t *testing.T) {
	tests := map[string]string{
		"唐揚げの作り方":             "唐揚げ",
		"肉じゃがのレシピを教えて":        "肉じゃが",
		"オムライスを作りたい":          "オムライス",
		"how to make Pad Thai": "Pad Thai",
		"recipe for the lasagna": "lasagna",
		"ramen recipes":        "ramen",
	}
	for in, want := range tests {
		got, ok := DetectTarget(in)
		if !ok || got != want {
			t.Errorf("DetectTarget(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := DetectTarget("鶏肉と人参"); ok {
		t.Error("expected no target")
	}
}

func TestCheckRewrite(t *testing.T) {
	const q = "唐揚げに合う副菜"
	tests := []struct {
		name string
		r    Rewrite
		ok   bool
	}{
		{"complement", Rewrite{Text: "副菜のレシピ（唐揚げに合う）", Focus: FocusComplement, Subject: "副菜"}, true},
		{"target focus", Rewrite{Text: "副菜のレシピ", Focus: FocusTarget, Subject: "副菜"}, false},
		{"dish as subject", Rewrite{Text: "副菜", Focus: FocusComplement, Subject: "唐揚げ"}, false},
		{"leads with dish", Rewrite{Text: "唐揚げに合う副菜", Focus: FocusComplement, Subject: "副菜"}, false},
		{"dish twice", Rewrite{Text: "副菜 唐揚げ 唐揚げ", Focus: FocusComplement, Subject: "副菜"}, false},
		{"empty rewrite", Rewrite{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRewrite(q, tt.r)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrPairingViolated) {
				t.Errorf("expected ErrPairingViolated, got %v", err)
			}
		})
	}

	if err := CheckRewrite("唐揚げの作り方", Rewrite{Text: "唐揚げのレシピ", Focus: FocusTarget}); err != nil {
		t.Errorf("target queries are unconstrained, got %v", err)
	}
}

func TestVerdict_IngredientDriven(t *testing.T) {
	if !(Verdict{Valid: true, Kind: KindIngredient, Ingredients: []string{"鶏肉"}}).IngredientDriven() {
		t.Error("expected ingredient-driven")
	}
	if (Verdict{Valid: true, Kind: KindIngredient}).IngredientDriven() {
		t.Error("no ingredients means not ingredient-driven")
	}
	if (Verdict{Kind: KindIngredient, Ingredients: []string{"x"}}).IngredientDriven() {
		t.Error("invalid verdicts are never ingredient-driven")
	}
}
