// Package dedup merges duplicate issues and orders the final list.
package dedup

import (
	"sort"
	"strings"

	"allycheck/internal/types"
)

// Default similarity thresholds.
const (
	DefaultTitleThreshold       = 0.8
	DefaultDescriptionThreshold = 0.7
)

// Deduplicator folds issues that describe the same problem.
//
// Two issues are duplicates when they share a criterion and either carry the
// same non-empty selector, or their titles reach TitleThreshold similarity,
// or their descriptions reach DescriptionThreshold similarity.
type Deduplicator struct {
	TitleThreshold       float64 `yaml:"title_threshold" json:"title_threshold"`
	DescriptionThreshold float64 `yaml:"description_threshold" json:"description_threshold"`
}

// New returns a deduplicator with the default thresholds.
func New() *Deduplicator {
	return &Deduplicator{
		TitleThreshold:       DefaultTitleThreshold,
		DescriptionThreshold: DefaultDescriptionThreshold,
	}
}

// Duplicate reports whether a and b describe the same problem.
func (d *Deduplicator) Duplicate(a, b *types.Issue) bool {
	if a.Criterion != b.Criterion {
		return false
	}
	if a.Selector != "" && a.Selector == b.Selector {
		return true
	}
	if a.Title != "" && b.Title != "" && Similarity(a.Title, b.Title) >= d.titleThreshold() {
		return true
	}
	return a.Description != "" && b.Description != "" &&
		Similarity(a.Description, b.Description) >= d.descriptionThreshold()
}

func (d *Deduplicator) titleThreshold() float64 {
	if d.TitleThreshold > 0 {
		return d.TitleThreshold
	}
	return DefaultTitleThreshold
}

func (d *Deduplicator) descriptionThreshold() float64 {
	if d.DescriptionThreshold > 0 {
		return d.DescriptionThreshold
	}
	return DefaultDescriptionThreshold
}

// Merge folds duplicates in one pass. Each unmerged issue, in input order,
// becomes a running record; every later unmerged issue that duplicates the
// running record is folded into it. The input is not modified. Output order
// follows the first member of each group; use Sort for the final order.
func (d *Deduplicator) Merge(issues []types.Issue) []types.Issue {
	merged := make([]bool, len(issues))
	out := make([]types.Issue, 0, len(issues))
	for i := range issues {
		if merged[i] {
			continue
		}
		running := clone(issues[i])
		for j := i + 1; j < len(issues); j++ {
			if merged[j] || !d.Duplicate(&running, &issues[j]) {
				continue
			}
			running = Combine(running, issues[j])
			merged[j] = true
		}
		out = append(out, running)
	}
	return out
}

// Combine merges b into a: the worse severity, the longer description, the
// union of sources, a's optional fields filled from b, and the higher
// confidence.
func Combine(a, b types.Issue) types.Issue {
	out := clone(a)
	out.Severity = types.MaxSeverity(a.Severity, b.Severity)
	if len(strings.TrimSpace(b.Description)) > len(strings.TrimSpace(a.Description)) {
		out.Description = b.Description
	}

	out.AddSource(a.Source)
	for _, s := range a.Sources {
		out.AddSource(s)
	}
	out.AddSource(b.Source)
	for _, s := range b.Sources {
		out.AddSource(s)
	}

	fill(&out.CriterionName, b.CriterionName)
	fill(&out.Title, b.Title)
	fill(&out.Selector, b.Selector)
	fill(&out.Snippet, b.Snippet)
	fill(&out.Remediation, b.Remediation)
	fill(&out.ReferenceURL, b.ReferenceURL)
	fill(&out.UserImpact, b.UserImpact)
	fill(&out.HowToReproduce, b.HowToReproduce)
	fill(&out.TechnicalSummary, b.TechnicalSummary)
	fill(&out.Explanation, b.Explanation)
	if out.Level == "" {
		out.Level = b.Level
	}
	if out.Principle == "" {
		out.Principle = b.Principle
	}

	switch {
	case out.Confidence == nil && b.Confidence != nil:
		c := *b.Confidence
		out.Confidence = &c
	case out.Confidence != nil && b.Confidence != nil && *b.Confidence > *out.Confidence:
		c := *b.Confidence
		out.Confidence = &c
	}
	return out
}

func fill(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && src != "" {
		*dst = src
	}
}

// clone copies an issue so that merging never aliases input slices or
// pointers.
func clone(i types.Issue) types.Issue {
	if i.Sources != nil {
		i.Sources = append([]types.DetectionSource(nil), i.Sources...)
	}
	if i.Confidence != nil {
		c := *i.Confidence
		i.Confidence = &c
	}
	return i
}

// Sort orders issues by severity (worst first), then by criterion in
// numeric component order. Equal keys keep their input order.
func Sort(issues []types.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := issues[i].Severity.Rank(), issues[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return types.CompareCriteria(issues[i].Criterion, issues[j].Criterion) < 0
	})
}
