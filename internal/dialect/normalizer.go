// Package dialect rewrites dialect-specific tokens and phrases into their
// standard-language form before transcripts reach intent resolution.
//
// Normalization data lives in versioned, per-language [Table] values rather
// than inline logic, so tables can be extended or swapped per language
// without touching control flow. A table applies two ordered stages:
//
//  1. Pattern rules: regular expressions mapping dialect verb and pronoun
//     forms to standard forms.
//  2. Phrase entries: literal dialect food, number and quantity words
//     mapped to standard equivalents, matched case-insensitively on word
//     boundaries.
//
// Normalization is idempotent: running it on already-normalized text is a
// no-op. Languages without a table pass through unchanged.
package dialect

import (
	"regexp"
	"strings"
)

// Rule is one compiled pattern → replacement rewrite.
type Rule struct {
	Pattern *regexp.Regexp
	Replace string
}

// Phrase is one literal dialect word or phrase and its standard form.
// Literals are matched case-insensitively on word boundaries, longest
// first, in table order.
type Phrase struct {
	Dialect  string
	Standard string

	// re is the compiled boundary-anchored matcher, built in NewTable.
	re *regexp.Regexp
}

// Table holds the normalization data for one language.
type Table struct {
	// Language is the BCP-47 tag this table applies to (e.g. "de-CH").
	Language string

	// Version identifies the table revision, for logs and diagnostics.
	Version string

	Rules   []Rule
	Phrases []Phrase
}

// NewTable compiles the phrase matchers and returns the ready table.
// Phrases are sorted longest-first so multi-word entries win over their
// substrings.
func NewTable(language, version string, rules []Rule, phrases []Phrase) *Table {
	compiled := make([]Phrase, len(phrases))
	copy(compiled, phrases)

	// Longest dialect literal first; stable for equal lengths.
	for i := 1; i < len(compiled); i++ {
		for j := i; j > 0 && len(compiled[j].Dialect) > len(compiled[j-1].Dialect); j-- {
			compiled[j], compiled[j-1] = compiled[j-1], compiled[j]
		}
	}
	for i := range compiled {
		compiled[i].re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(compiled[i].Dialect) + `\b`)
	}

	return &Table{
		Language: language,
		Version:  version,
		Rules:    rules,
		Phrases:  compiled,
	}
}

// Normalizer applies per-language normalization tables.
// It is read-only after construction and safe for concurrent use.
type Normalizer struct {
	tables map[string]*Table
}

// NewNormalizer builds a normalizer from the given tables, keyed by
// language code.
func NewNormalizer(tables ...*Table) *Normalizer {
	m := make(map[string]*Table, len(tables))
	for _, t := range tables {
		m[t.Language] = t
	}
	return &Normalizer{tables: m}
}

// Default returns a normalizer loaded with the built-in tables.
func Default() *Normalizer {
	return NewNormalizer(SwissGerman())
}

// Table returns the table for language, or nil when the language has none.
func (n *Normalizer) Table(language string) *Table {
	return n.tables[language]
}

// Normalize rewrites dialect forms in text according to the table for
// language. Text in languages without a table is returned unchanged.
func (n *Normalizer) Normalize(text, language string) string {
	t, ok := n.tables[language]
	if !ok {
		return text
	}
	return t.Apply(text)
}

// Apply runs the pattern stage then the phrase stage over text.
func (t *Table) Apply(text string) string {
	out := text
	for _, r := range t.Rules {
		out = r.Pattern.ReplaceAllString(out, r.Replace)
	}
	for _, p := range t.Phrases {
		out = p.re.ReplaceAllString(out, p.Standard)
	}
	return collapseSpaces(out)
}

// BaseLanguage strips a regional suffix from a BCP-47 tag:
// "de-CH" → "de". Tags without a region are lowercased and returned as-is.
func BaseLanguage(language string) string {
	if i := strings.IndexByte(language, '-'); i > 0 {
		return strings.ToLower(language[:i])
	}
	return strings.ToLower(language)
}

// collapseSpaces squeezes runs of spaces left behind by multi-word
// replacements.
func collapseSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
