package parser

import (
	"regexp"
	"strings"

	"allycheck/internal/types"
)

var (
	headingLine = regexp.MustCompile(`^\s{0,3}(?:#{1,6}\s+(.+?)\s*#*\s*|\*\*(.+?)\*\*:?\s*)$`)
	issueMarker = regexp.MustCompile(`(?i)\b(issue|problem|violation|finding|barrier)\b|brist|problem|fynd|hinder`)
	summaryHead = regexp.MustCompile(`(?i)summary|overview|conclusion|next steps|sammanfattning|översikt|slutsats`)
	labeledLine = regexp.MustCompile(`^\s*(?:[-*•]\s*)?\**([\p{L} ]{2,30}?)\**\s*[:：]\s*\**\s*(.*)$`)
	listItem    = regexp.MustCompile(`^(?:[-*•+]|\d{1,3}[.)])\s+(.+)$`)
	markup      = strings.NewReplacer("**", "", "__", "", "`", "")
)

// Line labels recognised inside sections and list items.
var labels = map[string]string{
	"wcag": "criterion", "criterion": "criterion", "success criterion": "criterion",
	"wcag criterion": "criterion", "kriterium": "criterion", "wcag kriterium": "criterion",
	"framgångskriterium": "criterion",

	"severity": "severity", "impact": "severity", "priority": "severity",
	"allvarlighetsgrad": "severity", "prioritet": "severity",

	"selector": "selector", "element": "selector", "css selector": "selector",
	"selektor": "selector", "target": "selector",

	"fix": "fix", "how to fix": "fix", "remediation": "fix", "recommendation": "fix",
	"solution": "fix", "åtgärd": "fix", "rekommendation": "fix", "lösning": "fix",

	"description": "description", "beskrivning": "description", "details": "description",

	"user impact": "userImpact", "impact on users": "userImpact",
	"påverkan": "userImpact", "användarpåverkan": "userImpact",

	"how to reproduce": "reproduce", "steps to reproduce": "reproduce", "reproducera": "reproduce",
}

// block accumulates the lines of one section or list item.
type block struct {
	heading string
	fields  map[string]string
	body    []string
	inFix   bool
}

func newBlock(heading string) *block {
	return &block{heading: heading, fields: make(map[string]string)}
}

// add consumes one body line. Unlabelled lines after a fix label continue the
// fix; all others are description.
func (b *block) add(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if m := labeledLine.FindStringSubmatch(trimmed); m != nil {
		if key, ok := labels[strings.ToLower(strings.TrimSpace(m[1]))]; ok {
			value := strings.TrimSpace(markup.Replace(m[2]))
			if prev := b.fields[key]; prev != "" && value != "" {
				value = prev + " " + value
			}
			b.fields[key] = value
			b.inFix = key == "fix"
			return
		}
	}
	clean := strings.TrimSpace(markup.Replace(trimmed))
	if b.inFix {
		b.fields["fix"] = strings.TrimSpace(b.fields["fix"] + " " + clean)
		return
	}
	b.body = append(b.body, clean)
}

// issue converts the block; ok is false when no criterion is present.
func (b *block) issue(requireCriterion bool) (types.Issue, bool) {
	all := b.heading + "\n" + b.fields["criterion"] + "\n" + strings.Join(b.body, "\n")
	criterion, found := findCriterion(b.fields["criterion"])
	if !found {
		criterion, found = findCriterion(all)
	}
	if requireCriterion && !found {
		return types.Issue{}, false
	}

	description := b.fields["description"]
	if body := strings.Join(b.body, "\n"); body != "" {
		if description != "" {
			description += "\n"
		}
		description += body
	}

	sev := b.fields["severity"]
	if sev == "" {
		sev = b.heading
	}
	issue := types.Issue{
		Criterion:      criterion,
		Title:          cleanTitle(b.heading),
		Description:    description,
		Severity:       ParseSeverity(sev),
		Selector:       strings.Trim(b.fields["selector"], "`\" "),
		Remediation:    b.fields["fix"],
		UserImpact:     b.fields["userImpact"],
		HowToReproduce: b.fields["reproduce"],
		Source:         types.SourceHeuristic,
	}
	issue.Principle = types.PrincipleForCriterion(criterion)
	return issue, true
}

var (
	titleCriterion = regexp.MustCompile(`(?i)^(?:wcag\s*)?(?:sc\s*)?\d\.\d{1,2}\.\d{1,2}\s*[:\-–]?\s*`)
	titleSeverity  = regexp.MustCompile(`\s*[\[(](?i:critical|serious|moderate|minor|kritisk|allvarlig|måttlig|mindre)[\])]\s*`)
	titleNumber    = regexp.MustCompile(`(?i)^(?:issue|problem|brist)?\s*\d{1,3}\s*[:.)\-–]\s*`)
	titleParen     = regexp.MustCompile(`(?i)\s*\(\s*(?:wcag\s*)?\d\.\d{1,2}\.\d{1,2}[^)]*\)`)
)

func cleanTitle(s string) string {
	s = strings.TrimSpace(markup.Replace(s))
	s = titleCriterion.ReplaceAllString(s, "")
	s = titleNumber.ReplaceAllString(s, "")
	s = titleCriterion.ReplaceAllString(s, "")
	s = titleParen.ReplaceAllString(s, "")
	s = titleSeverity.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.Trim(s, ":-– "))
}

// HeadingSections splits the text on markdown headings (or lines that are
// entirely bold) and turns each section that names a criterion, or whose
// heading reads like an issue marker, into an issue. Labelled lines such as
// "Severity: serious" or "Åtgärd: ..." fill the matching fields.
func HeadingSections(text string) []types.Issue {
	var (
		out     []types.Issue
		current *block
	)
	flush := func() {
		if current == nil {
			return
		}
		_, hasCriterion := findCriterion(current.heading + " " + current.fields["criterion"] + " " + strings.Join(current.body, " "))
		if summaryHead.MatchString(current.heading) {
			hasCriterion = false
		}
		if hasCriterion || issueMarker.MatchString(current.heading) {
			if issue, ok := current.issue(false); ok && (issue.Description != "" || issue.Remediation != "" || hasCriterion) {
				out = append(out, issue)
			}
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := headingLine.FindStringSubmatch(line); m != nil && !(m[2] != "" && isLabel(line)) {
			flush()
			heading := m[1]
			if heading == "" {
				heading = m[2]
			}
			current = newBlock(heading)
			continue
		}
		if current != nil {
			current.add(line)
		}
	}
	flush()
	return out
}

// BulletList treats every top-level list item that names a criterion as one
// issue. Continuation lines extend the description until the next item; a
// fix label switches them to the remediation.
func BulletList(text string) []types.Issue {
	var (
		out     []types.Issue
		current *block
	)
	flush := func() {
		if current == nil {
			return
		}
		if issue, ok := current.issue(true); ok {
			out = append(out, issue)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		topLevel := line == strings.TrimLeft(line, " \t")
		if topLevel {
			if m := listItem.FindStringSubmatch(strings.TrimRight(line, " \t\r")); m != nil {
				if current != nil && isLabel(m[1]) {
					current.add(m[1])
					continue
				}
				flush()
				current = newBlock(m[1])
				continue
			}
			if headingLine.MatchString(line) {
				flush()
				continue
			}
		}
		if current != nil {
			current.add(line)
		}
	}
	flush()
	return out
}

func isLabel(line string) bool {
	m := labeledLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return false
	}
	_, ok := labels[strings.ToLower(strings.TrimSpace(m[1]))]
	return ok
}
