package session

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ordervox/ordervox/internal/dialect"
	"github.com/ordervox/ordervox/pkg/types"
)

// numberWords maps spoken number words to values, per base language.
// Dialect forms are already normalized away before extraction runs.
var numberWords = map[string]map[string]int{
	"en": {
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"a": 1, "an": 1,
	},
	"de": {
		"ein": 1, "eine": 1, "einen": 1, "eins": 1, "zwei": 2, "drei": 3,
		"vier": 4, "fünf": 5, "sechs": 6, "sieben": 7, "acht": 8,
		"neun": 9, "zehn": 10,
	},
	"fr": {
		"un": 1, "une": 1, "deux": 2, "trois": 3, "quatre": 4, "cinq": 5,
		"six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10,
	},
	"it": {
		"un": 1, "uno": 1, "una": 1, "due": 2, "tre": 3, "quattro": 4,
		"cinque": 5, "sei": 6, "sette": 7, "otto": 8, "nove": 9, "dieci": 10,
	},
}

// modifierWords are modifier adjectives recognized locally, per base
// language.
var modifierWords = map[string]map[string]bool{
	"en": {"large": true, "small": true, "medium": true, "cold": true, "hot": true, "extra": true},
	"de": {"gross": true, "große": true, "grosse": true, "klein": true, "kleine": true, "kalt": true, "kalte": true, "warm": true, "warme": true, "extra": true},
	"fr": {"grand": true, "grande": true, "petit": true, "petite": true, "froid": true, "chaud": true},
	"it": {"grande": true, "piccolo": true, "piccola": true, "freddo": true, "caldo": true},
}

// extractLocalEntities finds quantity and modifier entities in the
// transcript by word position. Product entities come from the resolver;
// the local pass only contributes what simple word lookup can find.
func extractLocalEntities(text, language string) []types.Entity {
	base := dialect.BaseLanguage(language)
	numbers := numberWords[base]
	modifiers := modifierWords[base]

	var out []types.Entity
	for pos, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?")
		if n, err := strconv.Atoi(word); err == nil && n > 0 {
			out = append(out, types.Entity{Type: "quantity", Value: strconv.Itoa(n), Position: pos})
			continue
		}
		if n, ok := numbers[word]; ok {
			out = append(out, types.Entity{Type: "quantity", Value: strconv.Itoa(n), Position: pos})
			continue
		}
		if modifiers[word] {
			out = append(out, types.Entity{Type: "modifier", Value: word, Position: pos})
		}
	}
	return out
}

// mergeEntities combines resolver entities with locally extracted ones.
// Resolver entities win on position collisions; local quantities and
// modifiers fill the gaps.
func mergeEntities(resolved, local []types.Entity) []types.Entity {
	taken := make(map[int]bool, len(resolved))
	out := make([]types.Entity, 0, len(resolved)+len(local))
	for _, e := range resolved {
		taken[e.Position] = true
		out = append(out, e)
	}
	for _, e := range local {
		if !taken[e.Position] {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// pairEntities turns a merged entity list into order items by pairing each
// quantity and modifier with the nearest product entity by word distance.
// Products without a quantity default to one.
func pairEntities(entities []types.Entity) []types.OrderItem {
	type slot struct {
		item types.OrderItem
		pos  int
	}
	var products []slot
	for _, e := range entities {
		if e.Type == "product" {
			products = append(products, slot{
				item: types.OrderItem{Product: e.Value, Quantity: 1},
				pos:  e.Position,
			})
		}
	}
	if len(products) == 0 {
		return nil
	}

	nearest := func(pos int) *slot {
		best := &products[0]
		bestDist := distance(pos, best.pos)
		for i := 1; i < len(products); i++ {
			if d := distance(pos, products[i].pos); d < bestDist {
				best, bestDist = &products[i], d
			}
		}
		return best
	}

	for _, e := range entities {
		switch e.Type {
		case "quantity":
			if n, err := strconv.Atoi(e.Value); err == nil && n > 0 {
				nearest(e.Position).item.Quantity = n
			}
		case "modifier":
			s := nearest(e.Position)
			s.item.Modifiers = append(s.item.Modifiers, e.Value)
		}
	}

	out := make([]types.OrderItem, len(products))
	for i, p := range products {
		out[i] = p.item
	}
	return out
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
