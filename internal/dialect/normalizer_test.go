package dialect

import (
	"regexp"
	"strings"
	"testing"
)

func TestNormalize_PatternTable(t *testing.T) {
	n := Default()

	got := n.Normalize("chund das mit pommes", "de-CH")
	if !strings.Contains(got, "können") {
		t.Errorf("Normalize(%q) = %q, want output containing \"können\"", "chund das mit pommes", got)
	}
	if strings.Contains(got, "chund") {
		t.Errorf("dialect token survived normalization: %q", got)
	}
}

func TestNormalize_PhraseMap(t *testing.T) {
	n := Default()

	cases := []struct{ in, want string }{
		{"ich nehme zwöi güggeli", "ich nehme zwei hähnchen"},
		{"drü weggli und es bitzli chäs", "drei brötchen und ein bisschen käse"},
		{"eis glace bitte", "eins eiscreme bitte"},
		{"häsch härdöpfel", "hast du kartoffeln"},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.in, "de-CH"); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_CaseInsensitive(t *testing.T) {
	n := Default()
	got := n.Normalize("Zwöi Weggli", "de-CH")
	if !strings.Contains(got, "zwei") || !strings.Contains(got, "brötchen") {
		t.Errorf("case-insensitive matching failed: %q", got)
	}
}

func TestNormalize_WordBoundaries(t *testing.T) {
	n := Default()
	// "isch" embedded in a longer word must not be rewritten.
	got := n.Normalize("italienisch", "de-CH")
	if got != "italienisch" {
		t.Errorf("boundary violation: %q", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := Default()
	inputs := []string{
		"chund das mit pommes",
		"ich nehme zwöi güggeli und drü weggli",
		"eis glace und es bitzli chäs",
		"mir händ öppis gsi",
		"ein mineral bitte",
	}
	for _, in := range inputs {
		once := n.Normalize(in, "de-CH")
		twice := n.Normalize(once, "de-CH")
		if once != twice {
			t.Errorf("not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestNormalize_NonDialectPassThrough(t *testing.T) {
	n := Default()
	in := "zwöi güggeli isch gsi"
	if got := n.Normalize(in, "en-US"); got != in {
		t.Errorf("non-dialect language must pass through, got %q", got)
	}
	if got := n.Normalize(in, "de"); got != in {
		t.Errorf("standard German has no table, got %q", got)
	}
}

func TestNewTable_LongestPhraseWins(t *testing.T) {
	table := NewTable("xx", "test", nil, []Phrase{
		{Dialect: "chäs", Standard: "käse"},
		{Dialect: "fleisch chäs", Standard: "fleischkäse"},
	})
	got := table.Apply("ein fleisch chäs")
	if got != "ein fleischkäse" {
		t.Errorf("Apply = %q, want %q", got, "ein fleischkäse")
	}
}

func TestTable_Version(t *testing.T) {
	if SwissGerman().Version == "" {
		t.Error("built-in table must carry a version")
	}
}

func TestNewTable_RulesRunBeforePhrases(t *testing.T) {
	table := NewTable("xx", "test", []Rule{
		{Pattern: regexp.MustCompile(`(?i)\bfoo\b`), Replace: "bar baz"},
	}, []Phrase{
		{Dialect: "bar baz", Standard: "qux"},
	})
	if got := table.Apply("foo"); got != "qux" {
		t.Errorf("Apply = %q, want qux (pattern stage must precede phrase stage)", got)
	}
}
