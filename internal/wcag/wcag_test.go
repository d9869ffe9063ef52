package wcag

import (
	"testing"

	"allycheck/internal/types"
)

func TestCatalogIntegrity(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range All("") {
		if !types.ValidCriterion(c.ID) {
			t.Errorf("malformed id %q", c.ID)
		}
		if seen[c.ID] {
			t.Errorf("duplicate id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Name == "" || c.Slug == "" || c.Description == "" {
			t.Errorf("%s: incomplete entry", c.ID)
		}
		if _, ok := ParseLevel(string(c.Level)); !ok {
			t.Errorf("%s: bad level %q", c.ID, c.Level)
		}
	}
	if len(seen) != 86 {
		t.Errorf("expected 86 WCAG 2.2 criteria, got %d", len(seen))
	}
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("1.4.3")
	if !ok {
		t.Fatal("1.4.3 missing")
	}
	if c.Level != types.LevelAA || c.Principle() != types.PrinciplePerceivable {
		t.Errorf("unexpected criterion: %+v", c)
	}
	if c.UnderstandingURL() != "https://www.w3.org/WAI/WCAG22/Understanding/contrast-minimum.html" {
		t.Errorf("url = %s", c.UnderstandingURL())
	}
	if _, ok := Lookup("4.1.1"); ok {
		t.Error("4.1.1 is obsolete in WCAG 2.2")
	}
}

func TestByPrinciple(t *testing.T) {
	operableA := ByPrinciple(types.PrincipleOperable, types.LevelA)
	if len(operableA) == 0 {
		t.Fatal("expected operable level A criteria")
	}
	for _, c := range operableA {
		if c.Level != types.LevelA || c.ID[0] != '2' {
			t.Errorf("unexpected %s (%s)", c.ID, c.Level)
		}
	}
	if len(ByPrinciple(types.PrincipleRobust, "")) != 2 {
		t.Error("robust should have 4.1.2 and 4.1.3")
	}
}

func TestSearchRanksNameMatchesFirst(t *testing.T) {
	got := Search("keyboard")
	if len(got) < 2 {
		t.Fatalf("expected several matches, got %d", len(got))
	}
	if got[0].ID != "2.1.1" {
		t.Errorf("first hit = %s, want 2.1.1", got[0].ID)
	}
	if Search("   ") != nil {
		t.Error("blank query should return nil")
	}
}

func TestParsePrinciple(t *testing.T) {
	if p, ok := ParsePrinciple("Operable"); !ok || p != types.PrincipleOperable {
		t.Error("Operable not parsed")
	}
	if p, ok := ParsePrinciple("3"); !ok || p != types.PrincipleUnderstandable {
		t.Error("numeric principle not parsed")
	}
	if _, ok := ParsePrinciple("visible"); ok {
		t.Error("unknown principle accepted")
	}
}
