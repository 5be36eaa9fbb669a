package dialect

import "regexp"

// swissGermanVersion identifies the built-in de-CH table revision.
const swissGermanVersion = "2024.2"

// SwissGerman returns the built-in normalization table for Swiss German
// (de-CH → standard German). Pattern rules cover frequent dialect verb and
// pronoun forms; the phrase list covers the food, number and quantity
// vocabulary of the ordering domain.
//
// Replacement targets are chosen so that no rule output matches another
// rule's input, which keeps normalization idempotent.
func SwissGerman() *Table {
	rules := []Rule{
		// Verb forms.
		{Pattern: regexp.MustCompile(`(?i)\bch(u|ö)nd\b`), Replace: "können"},
		{Pattern: regexp.MustCompile(`(?i)\bchunnt\b`), Replace: "kommt"},
		{Pattern: regexp.MustCompile(`(?i)\bhäsch\b`), Replace: "hast du"},
		{Pattern: regexp.MustCompile(`(?i)\bhät\b`), Replace: "hat"},
		{Pattern: regexp.MustCompile(`(?i)\bisch\b`), Replace: "ist"},
		{Pattern: regexp.MustCompile(`(?i)\bgsi\b`), Replace: "gewesen"},
		{Pattern: regexp.MustCompile(`(?i)\bwott\b`), Replace: "möchte"},
		{Pattern: regexp.MustCompile(`(?i)\bnimm?e?\b`), Replace: "nehme"},

		// Pronouns and particles.
		{Pattern: regexp.MustCompile(`(?i)\bmir\s+händ\b`), Replace: "wir haben"},
		{Pattern: regexp.MustCompile(`(?i)\bmir\s+s(i|ö)nd\b`), Replace: "wir sind"},
		{Pattern: regexp.MustCompile(`(?i)\böpp(i|e)s\b`), Replace: "etwas"},
		{Pattern: regexp.MustCompile(`(?i)\bnöd\b`), Replace: "nicht"},
		{Pattern: regexp.MustCompile(`(?i)\bau\b`), Replace: "auch"},
	}

	phrases := []Phrase{
		// Numbers.
		{Dialect: "eis", Standard: "eins"},
		{Dialect: "zwöi", Standard: "zwei"},
		{Dialect: "zwai", Standard: "zwei"},
		{Dialect: "drü", Standard: "drei"},
		{Dialect: "föif", Standard: "fünf"},
		{Dialect: "füf", Standard: "fünf"},
		{Dialect: "sächs", Standard: "sechs"},
		{Dialect: "sibe", Standard: "sieben"},
		{Dialect: "nün", Standard: "neun"},
		{Dialect: "zäh", Standard: "zehn"},
		{Dialect: "zwänzg", Standard: "zwanzig"},

		// Quantities.
		{Dialect: "es bitzli", Standard: "ein bisschen"},
		{Dialect: "chli", Standard: "klein"},
		{Dialect: "vil", Standard: "viel"},
		{Dialect: "es paar", Standard: "einige"},

		// Food vocabulary.
		{Dialect: "härdöpfel", Standard: "kartoffeln"},
		{Dialect: "güggeli", Standard: "hähnchen"},
		{Dialect: "poulet", Standard: "hähnchen"},
		{Dialect: "weggli", Standard: "brötchen"},
		{Dialect: "bürli", Standard: "brötchen"},
		{Dialect: "glace", Standard: "eiscreme"},
		{Dialect: "rüebli", Standard: "karotten"},
		{Dialect: "zmorge", Standard: "frühstück"},
		{Dialect: "zmittag", Standard: "mittagessen"},
		{Dialect: "znacht", Standard: "abendessen"},
		{Dialect: "znüni", Standard: "zwischenmahlzeit"},
		{Dialect: "öpfel", Standard: "apfel"},
		{Dialect: "anke", Standard: "butter"},
		{Dialect: "chäs", Standard: "käse"},
		{Dialect: "fleisch chäs", Standard: "fleischkäse"},
		{Dialect: "süessgetränk", Standard: "limonade"},
		{Dialect: "mineral", Standard: "mineralwasser"},
	}

	return NewTable("de-CH", swissGermanVersion, rules, phrases)
}
