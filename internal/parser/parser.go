// Package parser turns free-form model output into issues.
//
// Parsing is an ordered cascade of pure strategies. The first strategy that
// yields at least one issue wins; when none does, a single fallback issue
// carrying a truncated copy of the text is returned. Parse never fails and
// never returns an empty list for input with visible content.
package parser

import (
	"strings"
	"unicode/utf8"

	"allycheck/internal/logging"
	"allycheck/internal/types"
)

// Strategy is one extraction pass. Extract must be pure and must not panic;
// a nil or empty result hands over to the next strategy.
type Strategy struct {
	Name    string
	Extract func(text string) []types.Issue
}

// Strategy names.
const (
	StrategyStrictJSON      = "strict-json"
	StrategyRelaxedJSON     = "relaxed-json"
	StrategyHeadingSections = "heading-sections"
	StrategyBulletList      = "bullet-list"
	StrategyFallback        = "fallback"
)

// DefaultFallbackLength is the rune limit of the fallback description.
const DefaultFallbackLength = 1000

// DefaultStrategies returns the standard cascade in order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyStrictJSON, Extract: StrictJSON},
		{Name: StrategyRelaxedJSON, Extract: RelaxedJSON},
		{Name: StrategyHeadingSections, Extract: HeadingSections},
		{Name: StrategyBulletList, Extract: BulletList},
	}
}

// Parser runs a strategy cascade.
type Parser struct {
	Strategies     []Strategy
	FallbackLength int
}

// New returns a parser with the default cascade.
func New() *Parser {
	return &Parser{Strategies: DefaultStrategies(), FallbackLength: DefaultFallbackLength}
}

// Result is the outcome of a parse.
type Result struct {
	Issues   []types.Issue
	Strategy string // name of the strategy that produced Issues
}

// Parse extracts issues from text. Every returned issue is enriched from the
// WCAG catalog. Only the empty string yields no issues; any other input,
// whitespace included, yields at least the fallback issue.
func (p *Parser) Parse(text string) Result {
	if text == "" {
		return Result{Strategy: StrategyFallback}
	}
	for _, s := range p.Strategies {
		issues := safeExtract(s, text)
		if len(issues) == 0 {
			continue
		}
		for i := range issues {
			Enrich(&issues[i])
		}
		logging.ParserDebug("Strategy %s extracted %d issues", s.Name, len(issues))
		return Result{Issues: issues, Strategy: s.Name}
	}

	logging.ParserDebug("No strategy matched %d bytes of output; using fallback", len(text))
	issue := Fallback(text, p.fallbackLength())
	Enrich(&issue)
	return Result{Issues: []types.Issue{issue}, Strategy: StrategyFallback}
}

func (p *Parser) fallbackLength() int {
	if p.FallbackLength > 0 {
		return p.FallbackLength
	}
	return DefaultFallbackLength
}

// safeExtract converts a strategy panic into "no result".
func safeExtract(s Strategy, text string) (issues []types.Issue) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryParser).Warn("Strategy %s panicked: %v", s.Name, r)
			issues = nil
		}
	}()
	return s.Extract(text)
}

const blankAnalysis = "The model returned an analysis with no readable content."

// Fallback builds the single issue used when nothing else parses.
func Fallback(text string, limit int) types.Issue {
	desc := truncate(strings.TrimSpace(text), limit)
	if desc == "" {
		desc = blankAnalysis
	}
	return types.Issue{
		Criterion:   types.GenericCriterion,
		Title:       "Unstructured accessibility analysis",
		Description: desc,
		Severity:    types.SeverityModerate,
		Source:      types.SourceHeuristic,
	}
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit])) + "..."
}
