package phonetic

import "testing"

var commandVocab = []string{"checkout", "warenkorb", "speisekarte", "hilfe", "abbrechen"}

func TestBestMatchesMisheardCommand(t *testing.T) {
	m := New()

	cases := []struct {
		input string
		want  string
	}{
		{"checkout", "checkout"},
		{"checkaut", "checkout"},
		{"warenkorp", "warenkorb"},
		{"hilfä", "hilfe"},
	}
	for _, tc := range cases {
		got, score, ok := m.Best(tc.input, commandVocab)
		if !ok {
			t.Errorf("Best(%q): no match", tc.input)
			continue
		}
		if got != tc.want {
			t.Errorf("Best(%q) = %q (%.2f), want %q", tc.input, got, score, tc.want)
		}
	}
}

func TestBestRejectsUnrelatedInput(t *testing.T) {
	m := New()
	if got, _, ok := m.Best("zwei grosse cola", commandVocab); ok {
		t.Fatalf("unrelated input matched %q", got)
	}
}

func TestBestEmptyInputs(t *testing.T) {
	m := New()
	if _, _, ok := m.Best("", commandVocab); ok {
		t.Fatal("empty input must not match")
	}
	if _, _, ok := m.Best("checkout", nil); ok {
		t.Fatal("empty vocabulary must not match")
	}
}

func TestBestMultiWordPhrase(t *testing.T) {
	m := New()
	vocab := []string{"zeig mir das menü", "zeig mir den warenkorb"}
	got, _, ok := m.Best("zeig mir das menu", vocab)
	if !ok || got != "zeig mir das menü" {
		t.Fatalf("Best = %q, ok=%v", got, ok)
	}
}

func TestThresholdOptions(t *testing.T) {
	strict := New(WithPhoneticThreshold(0.99), WithFuzzyThreshold(0.99))
	if got, _, ok := strict.Best("checkaut", commandVocab); ok {
		t.Fatalf("strict matcher accepted %q", got)
	}
}
