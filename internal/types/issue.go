// Package types holds the data model shared by every allycheck package:
// audit requests, issues, metrics and tool call records.
package types

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity is the impact class of an issue. Ordered critical > serious >
// moderate > minor; every tie-break in the pipeline uses Rank.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySerious  Severity = "serious"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Rank orders severities; higher is worse. Unknown values rank below minor.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeveritySerious:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// MaxSeverity returns the worse of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// =============================================================================
// PRINCIPLE / LEVEL / SOURCE
// =============================================================================

// Principle is one of the four WCAG principles.
type Principle string

const (
	PrinciplePerceivable    Principle = "perceivable"
	PrincipleOperable       Principle = "operable"
	PrincipleUnderstandable Principle = "understandable"
	PrincipleRobust         Principle = "robust"
)

// Level is a WCAG conformance level.
type Level string

const (
	LevelA   Level = "A"
	LevelAA  Level = "AA"
	LevelAAA Level = "AAA"
)

// DetectionSource records how an issue was found.
type DetectionSource string

const (
	SourceAutomated DetectionSource = "automated" // axe-core rule engine
	SourceHeuristic DetectionSource = "heuristic" // model judgement
	SourceManual    DetectionSource = "manual"
)

// GenericCriterion is used when no criterion can be determined.
const GenericCriterion = "0.0.0"

var criterionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ValidCriterion reports whether id has the major.minor.minor shape.
func ValidCriterion(id string) bool {
	return criterionPattern.MatchString(id)
}

// PrincipleForCriterion derives the principle from the criterion's major
// number: 1 perceivable, 2 operable, 3 understandable, anything else robust.
func PrincipleForCriterion(id string) Principle {
	major, _, _ := strings.Cut(id, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return PrincipleRobust
	}
	switch n {
	case 1:
		return PrinciplePerceivable
	case 2:
		return PrincipleOperable
	case 3:
		return PrincipleUnderstandable
	default:
		return PrincipleRobust
	}
}

// CompareCriteria orders criterion ids component-wise numerically, so that
// 1.4.10 sorts after 1.4.3. Non-numeric components fall back to string order.
func CompareCriteria(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA == nil && errB == nil {
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}

// =============================================================================
// ISSUE
// =============================================================================

// Issue is one accessibility finding.
type Issue struct {
	Criterion     string    `json:"wcag_criterion"`
	CriterionName string    `json:"criterion_name,omitempty"`
	Level         Level     `json:"wcag_level,omitempty"`
	Principle     Principle `json:"wcag_principle"`

	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`
	Source      DetectionSource `json:"source"`
	// Sources lists every detection source folded into this issue by dedup.
	Sources []DetectionSource `json:"sources,omitempty"`

	Selector     string `json:"element_selector,omitempty"`
	Snippet      string `json:"element_html,omitempty"`
	Remediation  string `json:"how_to_fix,omitempty"`
	ReferenceURL string `json:"wcag_url,omitempty"`

	UserImpact       string `json:"user_impact,omitempty"`
	HowToReproduce   string `json:"how_to_reproduce,omitempty"`
	TechnicalSummary string `json:"technical_summary,omitempty"`
	Explanation      string `json:"wcag_explanation,omitempty"`

	Confidence *float64 `json:"confidence,omitempty"`
	Chunk      int      `json:"chunk,omitempty"`
}

// HasSource reports whether src is among the issue's detection sources.
func (i *Issue) HasSource(src DetectionSource) bool {
	if i.Source == src {
		return true
	}
	for _, s := range i.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// AddSource records src, keeping Sources free of duplicates.
func (i *Issue) AddSource(src DetectionSource) {
	if src == "" {
		return
	}
	if i.Source == "" {
		i.Source = src
	}
	for _, s := range i.Sources {
		if s == src {
			return
		}
	}
	i.Sources = append(i.Sources, src)
}
