package match

import "testing"

func TestResolve(t *testing.T) {
	t.Run("AbbreviationResolvesUniquely", func(t *testing.T) {
		m := Resolve("xmas", []string{"Christmas Songs", "Summer Hits"})

		if m.Kind != Unique {
			t.Fatalf("expected Unique, got kind %d (candidates %v)", m.Kind, m.Candidates)
		}
		if m.Name != "Christmas Songs" {
			t.Errorf("expected Christmas Songs, got %s", m.Name)
		}
	})

	t.Run("SharedPrefixIsAmbiguous", func(t *testing.T) {
		m := Resolve("S", []string{"Summer Hits", "Slow Jams"})

		if m.Kind != Ambiguous {
			t.Fatalf("expected Ambiguous, got kind %d (name %q)", m.Kind, m.Name)
		}
		if len(m.Candidates) != 2 {
			t.Errorf("expected both candidates ranked, got %v", m.Candidates)
		}
	})

	t.Run("ExactNameWins", func(t *testing.T) {
		m := Resolve("slow jams", []string{"Summer Hits", "Slow Jams"})

		if m.Kind != Unique || m.Name != "Slow Jams" {
			t.Errorf("expected exact match Slow Jams, got kind %d name %q", m.Kind, m.Name)
		}
	})

	t.Run("PrefixFragment", func(t *testing.T) {
		m := Resolve("summ", []string{"Summer Hits", "Slow Jams"})

		if m.Kind != Unique || m.Name != "Summer Hits" {
			t.Errorf("expected Summer Hits, got kind %d name %q", m.Kind, m.Name)
		}
	})

	t.Run("AccentedNameMatchesPlainFragment", func(t *testing.T) {
		// "fete" is not a subsequence of the name ('ê' never equals
		// 'e'), so resolution falls through to the windowed distance,
		// which must walk runes rather than bytes
		m := Resolve("fete", []string{"Fête de la Musique", "Summer Hits"})

		if m.Kind != Unique || m.Name != "Fête de la Musique" {
			t.Errorf("expected Fête de la Musique, got kind %d name %q", m.Kind, m.Name)
		}
	})

	t.Run("UnrelatedFragmentIsNone", func(t *testing.T) {
		m := Resolve("zzzzzz", []string{"Summer Hits", "Slow Jams"})

		if m.Kind != None {
			t.Errorf("expected None, got kind %d name %q candidates %v", m.Kind, m.Name, m.Candidates)
		}
	})

	t.Run("EmptyInputs", func(t *testing.T) {
		if m := Resolve("", []string{"A"}); m.Kind != None {
			t.Error("empty fragment should resolve to None")
		}
		if m := Resolve("a", nil); m.Kind != None {
			t.Error("no candidates should resolve to None")
		}
	})
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"kitten", "sitting", 3},
		{"xmas", "tmas", 1},
	}

	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
