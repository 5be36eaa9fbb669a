package session

import (
	"regexp"
	"strings"

	"github.com/ordervox/ordervox/internal/dialect"
	"github.com/ordervox/ordervox/internal/session/phonetic"
)

// Command is a fixed-vocabulary voice command handled locally, without the
// external intent resolver.
type Command string

const (
	CommandShowMenu Command = "show_menu"
	CommandShowCart Command = "show_cart"
	CommandCheckout Command = "checkout"
	CommandHelp     Command = "help"
	CommandRepeat   Command = "repeat"
	CommandCancel   Command = "cancel"
)

// commandPattern pairs a compiled phrase pattern with its command.
type commandPattern struct {
	command Command
	re      *regexp.Regexp
}

// CommandMatcher checks accepted transcripts against the per-language
// command phrase lists. Exact (regex) matching runs first; short
// utterances that miss get a phonetic pass against the canonical phrases,
// since single command words are where recognition garbles the most.
//
// Read-only after construction, safe for concurrent use.
type CommandMatcher struct {
	patterns map[string][]commandPattern // keyed by base language
	vocab    map[string]map[string]Command
	fuzzy    *phonetic.Matcher
}

// fuzzyMaxWords bounds the utterance length eligible for phonetic command
// matching. Longer utterances are order candidates, not commands.
const fuzzyMaxWords = 3

// NewCommandMatcher builds a matcher with the built-in vocabularies for
// English, German, French and Italian. Dialect tags match through their
// base language.
func NewCommandMatcher() *CommandMatcher {
	m := &CommandMatcher{
		patterns: make(map[string][]commandPattern),
		vocab:    make(map[string]map[string]Command),
		fuzzy:    phonetic.New(),
	}
	for lang, defs := range builtinCommands() {
		for _, d := range defs {
			m.patterns[lang] = append(m.patterns[lang], commandPattern{
				command: d.command,
				re:      regexp.MustCompile(`(?i)^(?:` + d.pattern + `)[.!?]?$`),
			})
			if m.vocab[lang] == nil {
				m.vocab[lang] = make(map[string]Command)
			}
			for _, phrase := range d.canonical {
				m.vocab[lang][phrase] = d.command
			}
		}
	}
	return m
}

// Match tests text against the command vocabulary for language. It returns
// the matched command and true, or "" and false.
func (m *CommandMatcher) Match(text, language string) (Command, bool) {
	base := dialect.BaseLanguage(language)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	for _, p := range m.patterns[base] {
		if p.re.MatchString(trimmed) {
			return p.command, true
		}
	}

	vocab := m.vocab[base]
	if vocab == nil || len(strings.Fields(trimmed)) > fuzzyMaxWords {
		return "", false
	}
	phrases := make([]string, 0, len(vocab))
	for phrase := range vocab {
		phrases = append(phrases, phrase)
	}
	best, _, ok := m.fuzzy.Best(strings.ToLower(strings.TrimSuffix(trimmed, ".")), phrases)
	if !ok {
		return "", false
	}
	return vocab[best], true
}

// commandDef declares one command's pattern and the canonical phrases used
// for phonetic fallback.
type commandDef struct {
	command   Command
	pattern   string
	canonical []string
}

func builtinCommands() map[string][]commandDef {
	return map[string][]commandDef{
		"en": {
			{CommandShowMenu, `show (?:me )?the menu|(?:the )?menu|menu please`, []string{"menu", "show menu"}},
			{CommandShowCart, `show (?:me )?(?:my |the )?cart|(?:my )?cart|shopping cart`, []string{"cart", "show cart"}},
			{CommandCheckout, `check ?out|pay(?: now)?|place (?:my |the )?order`, []string{"checkout"}},
			{CommandHelp, `help(?: me)?|what can i say`, []string{"help"}},
			{CommandRepeat, `repeat(?: that)?|say (?:that|it) again`, []string{"repeat"}},
			{CommandCancel, `cancel(?: (?:my |the )?order)?|stop|never mind`, []string{"cancel"}},
		},
		"de": {
			{CommandShowMenu, `zeig (?:mir )?(?:das |die )?(?:menü|speisekarte)|(?:das )?menü|(?:die )?speisekarte(?: anzeigen)?`, []string{"menü", "speisekarte"}},
			{CommandShowCart, `zeig (?:mir )?(?:den )?warenkorb|(?:mein |der )?warenkorb(?: anzeigen)?`, []string{"warenkorb"}},
			{CommandCheckout, `zur kasse(?: gehen)?|bezahlen|bestellung (?:abschliessen|abschließen|aufgeben)`, []string{"kasse", "bezahlen"}},
			{CommandHelp, `hilfe|was kann ich sagen`, []string{"hilfe"}},
			{CommandRepeat, `wiederholen?(?: das)?|noch(?: ein)?mal(?: bitte)?`, []string{"wiederholen"}},
			{CommandCancel, `abbrechen|stopp?|bestellung abbrechen|vergiss es`, []string{"abbrechen"}},
		},
		"fr": {
			{CommandShowMenu, `montre(?:-moi)? (?:le|la) (?:menu|carte)|(?:le )?menu|la carte`, []string{"menu", "carte"}},
			{CommandShowCart, `montre(?:-moi)? (?:le|mon) panier|(?:mon )?panier`, []string{"panier"}},
			{CommandCheckout, `payer|passer (?:la |ma )?commande`, []string{"payer"}},
			{CommandHelp, `aide(?:-moi)?|que puis-je dire`, []string{"aide"}},
			{CommandRepeat, `répète(?:r)?|encore une fois`, []string{"répéter"}},
			{CommandCancel, `annuler?(?: la commande)?|stop|laisse tomber`, []string{"annuler"}},
		},
		"it": {
			{CommandShowMenu, `mostra(?:mi)? il menu|(?:il )?menu`, []string{"menu"}},
			{CommandShowCart, `mostra(?:mi)? il carrello|(?:il mio )?carrello`, []string{"carrello"}},
			{CommandCheckout, `paga(?:re)?|concludi l'ordine`, []string{"pagare"}},
			{CommandHelp, `aiuto|cosa posso dire`, []string{"aiuto"}},
			{CommandRepeat, `ripeti(?:lo)?|ancora una volta`, []string{"ripetere"}},
			{CommandCancel, `annulla(?:re)?(?: l'ordine)?|stop|lascia perdere`, []string{"annullare"}},
		},
	}
}
