package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"allycheck/internal/types"
)

// jsonIssue is the canonical record the system prompt asks for.
type jsonIssue struct {
	Criterion        string   `json:"wcag_criterion"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Severity         string   `json:"severity"`
	Principle        string   `json:"wcag_principle"`
	Level            string   `json:"wcag_level"`
	Source           string   `json:"source"`
	Selector         string   `json:"element_selector"`
	Snippet          string   `json:"element_html"`
	Remediation      string   `json:"how_to_fix"`
	ReferenceURL     string   `json:"wcag_url"`
	UserImpact       string   `json:"user_impact"`
	HowToReproduce   string   `json:"how_to_reproduce"`
	TechnicalSummary string   `json:"technical_summary"`
	Explanation      string   `json:"wcag_explanation"`
	Confidence       *float64 `json:"confidence"`
}

type jsonEnvelope struct {
	Issues []jsonIssue `json:"issues"`
}

var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z]*)[ \t]*\\r?\\n(.*?)```")

// StrictJSON accepts a JSON object with an issues array, either as the whole
// text or inside a json fence, using the canonical key names only.
func StrictJSON(text string) []types.Issue {
	candidates := []string{strings.TrimSpace(text)}
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if lang := strings.ToLower(m[1]); lang == "json" || lang == "" {
			candidates = append(candidates, strings.TrimSpace(m[2]))
		}
	}
	for _, c := range candidates {
		if !strings.HasPrefix(c, "{") {
			continue
		}
		var env jsonEnvelope
		if err := json.Unmarshal([]byte(c), &env); err != nil || len(env.Issues) == 0 {
			continue
		}
		out := make([]types.Issue, 0, len(env.Issues))
		for _, r := range env.Issues {
			out = append(out, r.issue())
		}
		return out
	}
	return nil
}

func (r jsonIssue) issue() types.Issue {
	issue := types.Issue{
		Criterion:        NormalizeCriterion(r.Criterion),
		Title:            strings.TrimSpace(r.Title),
		Description:      strings.TrimSpace(r.Description),
		Severity:         ParseSeverity(r.Severity),
		Selector:         strings.TrimSpace(r.Selector),
		Snippet:          r.Snippet,
		Remediation:      strings.TrimSpace(r.Remediation),
		ReferenceURL:     strings.TrimSpace(r.ReferenceURL),
		UserImpact:       strings.TrimSpace(r.UserImpact),
		HowToReproduce:   strings.TrimSpace(r.HowToReproduce),
		TechnicalSummary: strings.TrimSpace(r.TechnicalSummary),
		Explanation:      strings.TrimSpace(r.Explanation),
		Confidence:       clampConfidence(r.Confidence),
	}
	applyClassification(&issue, r.Principle, r.Level, r.Source)
	return issue
}

// Alternate key names accepted by the relaxed pass, canonical key first.
var aliases = map[string][]string{
	"criterion":   {"wcag_criterion", "criterion", "success_criterion", "wcag", "sc", "wcag_sc", "kriterium", "wcag_kriterium"},
	"title":       {"title", "name", "issue", "summary", "rubrik", "titel"},
	"description": {"description", "details", "message", "problem", "beskrivning"},
	"severity":    {"severity", "impact", "priority", "allvarlighetsgrad"},
	"principle":   {"wcag_principle", "principle", "princip"},
	"level":       {"wcag_level", "level", "niva", "nivå"},
	"source":      {"source", "detection_source"},
	"selector":    {"element_selector", "selector", "target", "element", "css_selector"},
	"snippet":     {"element_html", "html", "snippet", "code", "kod"},
	"remediation": {"how_to_fix", "remediation", "fix", "recommendation", "solution", "atgard", "åtgärd"},
	"reference":   {"wcag_url", "reference_url", "help_url", "helpUrl", "url", "reference"},
	"userImpact":  {"user_impact", "impact_on_users", "anvandarpaverkan", "användarpåverkan"},
	"reproduce":   {"how_to_reproduce", "steps_to_reproduce", "reproduce"},
	"technical":   {"technical_summary", "technical_details"},
	"explanation": {"wcag_explanation", "explanation", "forklaring", "förklaring"},
	"confidence":  {"confidence", "certainty"},
}

// Keys that may hold the issue list inside a JSON object.
var listKeys = []string{"issues", "findings", "violations", "problems", "results", "brister"}

// RelaxedJSON finds JSON anywhere in the text (fenced or embedded in prose),
// tolerates trailing commas and typographic quotes, and accepts a bare array,
// an object holding a list under a known key, or a single issue object.
func RelaxedJSON(text string) []types.Issue {
	for _, c := range jsonCandidates(text) {
		var v any
		if err := json.Unmarshal([]byte(cleanJSON(c)), &v); err != nil {
			continue
		}
		records := issueRecords(v)
		if len(records) == 0 {
			continue
		}
		out := make([]types.Issue, 0, len(records))
		for _, r := range records {
			out = append(out, recordIssue(r))
		}
		return out
	}
	return nil
}

// maxScans bounds the bracket scans per bracket kind.
const maxScans = 64

func jsonCandidates(text string) []string {
	var out []string
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[2])
		if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
			out = append(out, body)
		}
	}
	for _, open := range []byte{'[', '{'} {
		for from, tries := 0, 0; from < len(text) && tries < maxScans; tries++ {
			i := strings.IndexByte(text[from:], open)
			if i < 0 {
				break
			}
			start := from + i
			end := balanced(text, start)
			if end < 0 {
				from = start + 1
				continue
			}
			out = append(out, text[start:end+1])
			from = end + 1
		}
	}
	return out
}

// balanced returns the index of the bracket closing the one at start, or -1.
// Brackets inside JSON strings are ignored.
func balanced(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	smartQuotes   = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`)
)

func cleanJSON(s string) string {
	return trailingComma.ReplaceAllString(smartQuotes.Replace(s), "$1")
}

func issueRecords(v any) []map[string]any {
	switch val := v.(type) {
	case []any:
		var out []map[string]any
		for _, e := range val {
			if m, ok := e.(map[string]any); ok && looksLikeIssue(m) {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		for _, k := range listKeys {
			if list, ok := lookupKey(val, k); ok {
				if recs := issueRecords(list); len(recs) > 0 {
					return recs
				}
			}
		}
		if looksLikeIssue(val) {
			return []map[string]any{val}
		}
	}
	return nil
}

func looksLikeIssue(m map[string]any) bool {
	for _, name := range []string{"criterion", "title", "description"} {
		if field(m, name) != "" {
			return true
		}
	}
	return false
}

// lookupKey matches keys case-insensitively.
func lookupKey(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// field returns the first alias of name present in m, as text.
func field(m map[string]any, name string) string {
	for _, k := range aliases[name] {
		v, ok := lookupKey(m, k)
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(stringify(v)); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, e := range val {
			parts = append(parts, stringify(e))
		}
		return strings.Join(parts, " > ")
	default:
		return fmt.Sprint(val)
	}
}

func recordIssue(m map[string]any) types.Issue {
	issue := types.Issue{
		Criterion:        NormalizeCriterion(field(m, "criterion")),
		Title:            field(m, "title"),
		Description:      field(m, "description"),
		Severity:         ParseSeverity(field(m, "severity")),
		Selector:         field(m, "selector"),
		Snippet:          field(m, "snippet"),
		Remediation:      field(m, "remediation"),
		ReferenceURL:     field(m, "reference"),
		UserImpact:       field(m, "userImpact"),
		HowToReproduce:   field(m, "reproduce"),
		TechnicalSummary: field(m, "technical"),
		Explanation:      field(m, "explanation"),
	}
	if c := field(m, "confidence"); c != "" {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(c, "%"), 64); err == nil {
			if strings.HasSuffix(c, "%") || f > 1 {
				f /= 100
			}
			issue.Confidence = clampConfidence(&f)
		}
	}
	applyClassification(&issue, field(m, "principle"), field(m, "level"), field(m, "source"))
	return issue
}

func clampConfidence(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}
