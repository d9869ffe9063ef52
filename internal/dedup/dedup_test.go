package dedup

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"allycheck/internal/types"
)

func ptr(f float64) *float64 { return &f }

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"bild", "båld", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"Missing alt text", "  missing ALT text ", 1},
		{"abcd", "abce", 0.75},
		{"abc", "xyz", 0},
		{"kitten", "sitting", 1 - 3.0/7.0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDuplicate(t *testing.T) {
	d := New()
	base := types.Issue{Criterion: "1.1.1", Title: "Image missing alt text", Description: "The hero image has no alternative text.", Selector: "img.hero"}

	tests := []struct {
		name  string
		other types.Issue
		want  bool
	}{
		{"same selector", types.Issue{Criterion: "1.1.1", Title: "Completely different", Selector: "img.hero"}, true},
		{"similar title", types.Issue{Criterion: "1.1.1", Title: "Image missing alt-text", Selector: "img.logo"}, true},
		{"similar description", types.Issue{Criterion: "1.1.1", Title: "Other", Description: "The hero image has no alternative text!"}, true},
		{"different criterion", types.Issue{Criterion: "1.4.3", Title: "Image missing alt text", Selector: "img.hero"}, false},
		{"nothing in common", types.Issue{Criterion: "1.1.1", Title: "Logo", Description: "Decorative icon lacks role", Selector: "svg.icon"}, false},
		{"both selectors empty", types.Issue{Criterion: "1.1.1", Title: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Duplicate(&base, &tt.other); got != tt.want {
				t.Errorf("Duplicate() = %v, want %v", got, tt.want)
			}
		})
	}

	noSel := types.Issue{Criterion: "1.1.1", Title: "x"}
	if d.Duplicate(&noSel, &types.Issue{Criterion: "1.1.1", Title: "y"}) {
		t.Error("empty selectors must not match each other")
	}
}

func TestThresholdsAreConfigurable(t *testing.T) {
	a := types.Issue{Criterion: "1.4.3", Title: "abcd"}
	b := types.Issue{Criterion: "1.4.3", Title: "abce"} // similarity 0.75

	if New().Duplicate(&a, &b) {
		t.Error("default title threshold 0.8 should reject 0.75")
	}
	loose := &Deduplicator{TitleThreshold: 0.7}
	if !loose.Duplicate(&a, &b) {
		t.Error("threshold 0.7 should accept 0.75")
	}
}

func TestMergeThreeSources(t *testing.T) {
	issues := []types.Issue{
		{Criterion: "1.4.3", Title: "Low contrast", Description: "short", Severity: types.SeverityModerate,
			Source: types.SourceAutomated, Sources: []types.DetectionSource{types.SourceAutomated}, Selector: "p.note", Confidence: ptr(0.6)},
		{Criterion: "1.4.3", Title: "Grey text", Description: "Grey text on white fails 4.5:1", Severity: types.SeveritySerious,
			Source: types.SourceHeuristic, Selector: "p.note", Remediation: "Darken the text", Confidence: ptr(0.9)},
		{Criterion: "1.4.3", Title: "Contrast", Description: "", Severity: types.SeverityMinor,
			Source: types.SourceAutomated, Selector: "p.note", UserImpact: "Low vision users cannot read it"},
	}

	got := New().Merge(issues)
	if len(got) != 1 {
		t.Fatalf("Merge() returned %d issues, want 1", len(got))
	}
	m := got[0]
	if m.Severity != types.SeveritySerious {
		t.Errorf("Severity = %s, want serious", m.Severity)
	}
	if m.Description != "Grey text on white fails 4.5:1" {
		t.Errorf("Description = %q", m.Description)
	}
	if diff := cmp.Diff([]types.DetectionSource{types.SourceAutomated, types.SourceHeuristic}, m.Sources); diff != "" {
		t.Errorf("Sources (-want +got):\n%s", diff)
	}
	if m.Remediation != "Darken the text" || m.UserImpact != "Low vision users cannot read it" {
		t.Errorf("optional fields not filled: %+v", m)
	}
	if m.Title != "Low contrast" {
		t.Errorf("Title = %q, want the first record's", m.Title)
	}
	if m.Confidence == nil || *m.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", m.Confidence)
	}

	if *issues[0].Confidence != 0.6 || len(issues[0].Sources) != 1 {
		t.Error("Merge mutated its input")
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	a := types.Issue{Criterion: "2.4.7", Selector: "button", Severity: types.SeverityMinor, Source: types.SourceHeuristic, Description: "Focus hidden"}
	b := types.Issue{Criterion: "2.4.7", Selector: "button", Severity: types.SeverityCritical, Source: types.SourceAutomated, Description: "Outline none on all buttons"}

	d := New()
	merged := d.Merge([]types.Issue{a, b})
	if len(merged) != 1 || merged[0].Severity != types.SeverityCritical {
		t.Fatalf("Merge() = %+v", merged)
	}
	for _, original := range []types.Issue{a, b} {
		again := d.Merge([]types.Issue{merged[0], original})
		if diff := cmp.Diff(merged, again); diff != "" {
			t.Errorf("re-merge changed result (-want +got):\n%s", diff)
		}
	}
}

func TestMergeKeepsDistinctIssues(t *testing.T) {
	issues := []types.Issue{
		{Criterion: "1.1.1", Title: "Logo lacks alt", Selector: "img.logo"},
		{Criterion: "1.4.3", Title: "Logo lacks alt", Selector: "img.logo"},
		{Criterion: "1.1.1", Title: "Chart has no text alternative", Selector: "canvas"},
	}
	if got := New().Merge(issues); len(got) != 3 {
		t.Errorf("Merge() returned %d issues, want 3", len(got))
	}
	if got := New().Merge(nil); len(got) != 0 {
		t.Errorf("Merge(nil) = %v", got)
	}
}

func TestSort(t *testing.T) {
	issues := []types.Issue{
		{Criterion: "1.4.10", Severity: types.SeveritySerious},
		{Criterion: "4.1.2", Severity: types.SeverityMinor},
		{Criterion: "1.4.3", Severity: types.SeveritySerious},
		{Criterion: "2.1.1", Severity: types.SeverityCritical},
		{Criterion: "1.1.1", Severity: types.SeverityModerate},
	}
	Sort(issues)

	var got []string
	for _, i := range issues {
		got = append(got, string(i.Severity)+" "+i.Criterion)
	}
	want := []string{"critical 2.1.1", "serious 1.4.3", "serious 1.4.10", "moderate 1.1.1", "minor 4.1.2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sort() order (-want +got):\n%s", diff)
	}
}
