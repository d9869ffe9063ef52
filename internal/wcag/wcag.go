// Package wcag is an in-memory catalog of WCAG 2.2 success criteria.
package wcag

import (
	"sort"
	"strings"

	"allycheck/internal/types"
)

const (
	understandingBase = "https://www.w3.org/WAI/WCAG22/Understanding/"
	quickRefBase      = "https://www.w3.org/WAI/WCAG22/quickref/#"
)

// Criterion describes one success criterion.
type Criterion struct {
	ID          string
	Name        string
	Level       types.Level
	Guideline   string
	Slug        string
	Description string
	Examples    []string
}

// Principle derives the WCAG principle from the criterion id.
func (c Criterion) Principle() types.Principle {
	return types.PrincipleForCriterion(c.ID)
}

// UnderstandingURL links to the W3C "Understanding" document.
func (c Criterion) UnderstandingURL() string {
	return understandingBase + c.Slug + ".html"
}

// QuickRefURL links to the "How to Meet" quick reference.
func (c Criterion) QuickRefURL() string {
	return quickRefBase + c.Slug
}

var byID map[string]Criterion

func init() {
	byID = make(map[string]Criterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}
}

// Lookup returns the criterion with the given id.
func Lookup(id string) (Criterion, bool) {
	c, ok := byID[strings.TrimSpace(id)]
	return c, ok
}

// All returns every criterion, optionally filtered to one exact level.
// An empty level returns the whole catalog.
func All(level types.Level) []Criterion {
	out := make([]Criterion, 0, len(criteria))
	for _, c := range criteria {
		if level == "" || c.Level == level {
			out = append(out, c)
		}
	}
	return out
}

// ByPrinciple returns criteria under a principle, optionally filtered by level.
func ByPrinciple(p types.Principle, level types.Level) []Criterion {
	var out []Criterion
	for _, c := range All(level) {
		if c.Principle() == p {
			out = append(out, c)
		}
	}
	return out
}

// Search matches the query against criterion names and descriptions,
// returning name matches first.
func Search(query string) []Criterion {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	type hit struct {
		c     Criterion
		score int
	}
	var hits []hit
	for _, c := range criteria {
		switch {
		case strings.Contains(strings.ToLower(c.Name), q):
			hits = append(hits, hit{c, 2})
		case strings.Contains(strings.ToLower(c.Description), q):
			hits = append(hits, hit{c, 1})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]Criterion, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out
}

// ParsePrinciple accepts a principle name in any case, or its number.
func ParsePrinciple(s string) (types.Principle, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "perceivable", "1":
		return types.PrinciplePerceivable, true
	case "operable", "2":
		return types.PrincipleOperable, true
	case "understandable", "3":
		return types.PrincipleUnderstandable, true
	case "robust", "4":
		return types.PrincipleRobust, true
	}
	return "", false
}

// ParseLevel accepts "A", "AA" or "AAA" in any case.
func ParseLevel(s string) (types.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return types.LevelA, true
	case "AA":
		return types.LevelAA, true
	case "AAA":
		return types.LevelAAA, true
	}
	return "", false
}
