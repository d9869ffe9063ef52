package parser

import (
	"regexp"
	"strings"
	"unicode"

	"allycheck/internal/types"
	"allycheck/internal/wcag"
)

// Severity keywords in English and Swedish. Swedish entries match as word
// prefixes so inflected forms (kritiska, allvarligt) are covered.
var severityWords = []struct {
	severity types.Severity
	exact    []string
	prefixes []string
}{
	{types.SeverityCritical, []string{"critical", "blocker", "blocking"}, []string{"kritisk"}},
	{types.SeveritySerious, []string{"serious", "severe", "high", "major"}, []string{"allvarlig", "hög", "högt"}},
	{types.SeverityModerate, []string{"moderate", "medium"}, []string{"måttlig", "medel"}},
	{types.SeverityMinor, []string{"minor", "low", "trivial"}, []string{"mindre", "låg", "lågt", "ringa"}},
}

// ParseSeverity maps free text to a severity by keyword. When several
// classes match, the most severe wins. Without any keyword the result is
// moderate.
func ParseSeverity(text string) types.Severity {
	best := types.Severity("")
	for _, w := range words(text) {
		for _, class := range severityWords {
			if matchWord(w, class.exact, class.prefixes) {
				best = types.MaxSeverity(best, class.severity)
			}
		}
	}
	if best == "" {
		return types.SeverityModerate
	}
	return best
}

var principleWords = []struct {
	principle types.Principle
	prefixes  []string
}{
	{types.PrinciplePerceivable, []string{"perceivab", "uppfattbar", "möjlig att uppfatta"}},
	{types.PrincipleOperable, []string{"operab", "hanterbar", "manövrerbar", "möjlig att hantera"}},
	{types.PrincipleUnderstandable, []string{"understandab", "begriplig", "förståelig"}},
	{types.PrincipleRobust, []string{"robust"}},
}

// ParsePrinciple finds the first WCAG principle named in text.
func ParsePrinciple(text string) (types.Principle, bool) {
	if p, ok := wcag.ParsePrinciple(text); ok {
		return p, true
	}
	lower := strings.ToLower(text)
	best, at := types.Principle(""), -1
	for _, pw := range principleWords {
		for _, prefix := range pw.prefixes {
			if i := strings.Index(lower, prefix); i >= 0 && (at < 0 || i < at) {
				best, at = pw.principle, i
			}
		}
	}
	return best, at >= 0
}

var criterionInText = regexp.MustCompile(`\b(\d)\.(\d{1,2})\.(\d{1,2})\b`)

// NormalizeCriterion extracts a major.minor.minor id from text such as
// "WCAG 1.4.3 Contrast" or "SC 2.4.7". Unrecognised input yields the
// generic criterion.
func NormalizeCriterion(text string) string {
	m := criterionInText.FindStringSubmatch(text)
	if m == nil {
		return types.GenericCriterion
	}
	return m[1] + "." + trimZero(m[2]) + "." + trimZero(m[3])
}

func trimZero(s string) string {
	if len(s) > 1 && s[0] == '0' {
		return s[1:]
	}
	return s
}

// findCriterion reports the first criterion id in text, if any.
func findCriterion(text string) (string, bool) {
	id := NormalizeCriterion(text)
	return id, id != types.GenericCriterion
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func matchWord(w string, exact, prefixes []string) bool {
	for _, e := range exact {
		if w == e {
			return true
		}
	}
	for _, p := range prefixes {
		if strings.HasPrefix(w, p) {
			return true
		}
	}
	return false
}

// applyClassification sets principle, level and source from optional
// record fields. A real criterion always decides the principle.
func applyClassification(issue *types.Issue, principle, level, source string) {
	if issue.Criterion != types.GenericCriterion {
		issue.Principle = types.PrincipleForCriterion(issue.Criterion)
	} else if p, ok := ParsePrinciple(principle); ok {
		issue.Principle = p
	}
	if l, ok := wcag.ParseLevel(level); ok {
		issue.Level = l
	}
	switch s := types.DetectionSource(strings.ToLower(strings.TrimSpace(source))); s {
	case types.SourceAutomated, types.SourceHeuristic, types.SourceManual:
		issue.AddSource(s)
	}
}

// Enrich fills derived and catalog fields that the issue lacks: principle,
// criterion name, level, reference URL, explanation, title and source.
// Fields already set are kept.
func Enrich(issue *types.Issue) {
	if !types.ValidCriterion(issue.Criterion) {
		issue.Criterion = NormalizeCriterion(issue.Criterion)
	}
	if issue.Criterion != types.GenericCriterion || issue.Principle == "" {
		issue.Principle = types.PrincipleForCriterion(issue.Criterion)
	}
	if !issue.Severity.Valid() {
		issue.Severity = ParseSeverity(string(issue.Severity))
	}

	if c, ok := wcag.Lookup(issue.Criterion); ok {
		if issue.CriterionName == "" {
			issue.CriterionName = c.Name
		}
		if issue.Level == "" {
			issue.Level = c.Level
		}
		if issue.ReferenceURL == "" {
			issue.ReferenceURL = c.UnderstandingURL()
		}
		if issue.Explanation == "" {
			issue.Explanation = c.Description
		}
	}

	if issue.Title == "" {
		switch {
		case issue.CriterionName != "":
			issue.Title = issue.CriterionName
		default:
			issue.Title = truncate(firstLine(issue.Description), 80)
		}
	}
	if issue.Source == "" {
		issue.Source = types.SourceHeuristic
	}
	issue.AddSource(issue.Source)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
