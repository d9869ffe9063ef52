// Package analysis provides the automated analysis tools: axe-core rule
// runs in headless Chrome, document structure extraction for HTML and DOCX,
// and screenshot evidence capture.
package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"allycheck/internal/types"
	"allycheck/internal/wcag"
)

// AxeScriptURL is the pinned axe-core build injected into pages.
const AxeScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.11.0/axe.min.js"

// DefaultAxeTags selects the WCAG 2.x A/AA rule sets.
var DefaultAxeTags = []string{"wcag2a", "wcag2aa", "wcag21aa", "wcag22aa"}

// AxeResults is the subset of axe.run output the tools use.
type AxeResults struct {
	URL        string    `json:"url"`
	Timestamp  string    `json:"timestamp"`
	Violations []AxeRule `json:"violations"`
	Passes     []AxeRule `json:"passes"`
	Incomplete []AxeRule `json:"incomplete"`
}

// AxeRule is one rule outcome.
type AxeRule struct {
	ID          string    `json:"id"`
	Impact      string    `json:"impact"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	HelpURL     string    `json:"helpUrl"`
	Nodes       []AxeNode `json:"nodes"`
}

// AxeNode is one affected element.
type AxeNode struct {
	// Target is a selector path; entries are strings or, inside shadow
	// roots and iframes, nested arrays of strings.
	Target         []any  `json:"target"`
	HTML           string `json:"html"`
	FailureSummary string `json:"failureSummary"`
}

// Selector joins the node's target path.
func (n AxeNode) Selector() string {
	parts := make([]string, 0, len(n.Target))
	for _, t := range n.Target {
		switch v := t.(type) {
		case string:
			parts = append(parts, v)
		case []any:
			for _, inner := range v {
				parts = append(parts, fmt.Sprint(inner))
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " > ")
}

// axe encodes criteria as wcag<major><minor><criterion>, e.g. wcag1412 for 1.4.12.
// Guideline numbers never exceed one digit.
var axeCriterionTag = regexp.MustCompile(`^wcag(\d)(\d)(\d{1,2})$`)

// CriteriaFromTags extracts WCAG criterion ids from axe rule tags.
func CriteriaFromTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		m := axeCriterionTag.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		out = append(out, m[1]+"."+m[2]+"."+m[3])
	}
	return out
}

// impactSeverity maps axe impact to severity; unknown impacts are moderate.
func impactSeverity(impact string) types.Severity {
	s := types.Severity(strings.ToLower(impact))
	if s.Valid() {
		return s
	}
	return types.SeverityModerate
}

// Issues converts violations into automated issues, one per affected node.
func (r *AxeResults) Issues() []types.Issue {
	var issues []types.Issue
	for _, v := range r.Violations {
		criterion := types.GenericCriterion
		if ids := CriteriaFromTags(v.Tags); len(ids) > 0 {
			criterion = ids[0]
		}
		base := types.Issue{
			Criterion:   criterion,
			Principle:   types.PrincipleForCriterion(criterion),
			Title:       v.Help,
			Description: v.Description,
			Severity:    impactSeverity(v.Impact),
			Source:      types.SourceAutomated,
			Sources:     []types.DetectionSource{types.SourceAutomated},
			Remediation: v.HelpURL,
		}
		if c, ok := wcag.Lookup(criterion); ok {
			base.CriterionName = c.Name
			base.Level = c.Level
			base.ReferenceURL = c.UnderstandingURL()
		}
		if len(v.Nodes) == 0 {
			issues = append(issues, base)
			continue
		}
		for _, n := range v.Nodes {
			issue := base
			issue.Sources = []types.DetectionSource{types.SourceAutomated}
			issue.Selector = n.Selector()
			issue.Snippet = n.HTML
			if n.FailureSummary != "" {
				issue.TechnicalSummary = n.FailureSummary
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

// maxNodesShown bounds how many nodes per violation are listed in summaries.
const maxNodesShown = 3

// Summary renders results as the text the model reads.
func (r *AxeResults) Summary(label string) string {
	var sb strings.Builder
	sb.WriteString("Axe-Core Analysis Results\n")
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Context: %s\n", label)
	fmt.Fprintf(&sb, "Date: %s\n\n", orNA(r.Timestamp))
	sb.WriteString("Summary:\n")
	fmt.Fprintf(&sb, "- Violations: %d\n", len(r.Violations))
	fmt.Fprintf(&sb, "- Passes: %d\n", len(r.Passes))
	fmt.Fprintf(&sb, "- Incomplete: %d\n", len(r.Incomplete))

	if len(r.Violations) == 0 {
		sb.WriteString("\nNo violations found.\n")
		return sb.String()
	}

	sb.WriteString("\n\nViolations:\n")
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n\n")
	for i, v := range r.Violations {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, v.Help, v.ID)
		fmt.Fprintf(&sb, "   Impact: %s\n", orUnknown(v.Impact))
		fmt.Fprintf(&sb, "   WCAG Tags: %s\n", strings.Join(v.Tags, ", "))
		fmt.Fprintf(&sb, "   Description: %s\n", v.Description)
		fmt.Fprintf(&sb, "   Affected nodes: %d\n", len(v.Nodes))
		fmt.Fprintf(&sb, "   Help: %s\n\n", orNA(v.HelpURL))
		for j, n := range v.Nodes {
			if j == maxNodesShown {
				break
			}
			fmt.Fprintf(&sb, "     - Target: %s\n", n.Selector())
			fmt.Fprintf(&sb, "       HTML: %s\n", clip(n.HTML, 100))
		}
	}
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// clip shortens s to at most n runes, marking the cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
