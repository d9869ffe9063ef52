package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"allycheck/internal/tools"
	"allycheck/internal/wcag"
)

type criterionArgs struct {
	CriterionID string `json:"criterion_id"`
}

func (a *criterionArgs) Validate() error {
	if strings.TrimSpace(a.CriterionID) == "" {
		return errors.New("criterion_id is required")
	}
	return nil
}

// WCAGCriterionTool returns get_wcag_criterion.
func WCAGCriterionTool() *tools.Tool {
	return tools.NewTyped("get_wcag_criterion",
		"Get detailed information about a specific WCAG 2.2 success criterion (e.g., '1.1.1', '2.4.1')",
		tools.CategoryReference,
		tools.ToolSchema{
			Required: []string{"criterion_id"},
			Properties: map[string]tools.Property{
				"criterion_id": {Type: "string", Description: "WCAG criterion number (e.g., '1.1.1', '2.4.7')"},
			},
		},
		func(_ context.Context, args criterionArgs) (string, error) {
			c, ok := wcag.Lookup(args.CriterionID)
			if !ok {
				return "", fmt.Errorf("WCAG criterion %s not found in the WCAG 2.2 catalog", args.CriterionID)
			}
			return FormatCriterion(c), nil
		},
	)
}

// FormatCriterion renders a criterion as the text returned to the model.
func FormatCriterion(c wcag.Criterion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "WCAG %s: %s (Level %s)\n\n", c.ID, c.Name, c.Level)
	fmt.Fprintf(&sb, "Principle: %s\n", titleCase(string(c.Principle())))
	fmt.Fprintf(&sb, "Guideline: %s\n\n", c.Guideline)
	fmt.Fprintf(&sb, "Description:\n%s\n", c.Description)
	if len(c.Examples) > 0 {
		sb.WriteString("\nExamples:\n")
		for _, ex := range c.Examples {
			fmt.Fprintf(&sb, "- %s\n", ex)
		}
	}
	fmt.Fprintf(&sb, "\nResources:\n- Understanding: %s\n- How to Meet: %s\n", c.UnderstandingURL(), c.QuickRefURL())
	return sb.String()
}

type principleArgs struct {
	Principle string `json:"principle"`
	Level     string `json:"level"`
}

func (a *principleArgs) Validate() error {
	if _, ok := wcag.ParsePrinciple(a.Principle); !ok {
		return fmt.Errorf("unknown principle %q", a.Principle)
	}
	if a.Level != "" {
		if _, ok := wcag.ParseLevel(a.Level); !ok {
			return fmt.Errorf("unknown level %q", a.Level)
		}
	}
	return nil
}

// SearchByPrincipleTool returns search_wcag_by_principle.
func SearchByPrincipleTool() *tools.Tool {
	return tools.NewTyped("search_wcag_by_principle",
		"Search WCAG criteria by principle (Perceivable, Operable, Understandable, Robust)",
		tools.CategoryReference,
		tools.ToolSchema{
			Required: []string{"principle"},
			Properties: map[string]tools.Property{
				"principle": {Type: "string", Description: "WCAG principle", Enum: []any{"Perceivable", "Operable", "Understandable", "Robust"}},
				"level":     {Type: "string", Description: "Optional conformance level filter", Enum: []any{"A", "AA", "AAA"}},
			},
		},
		func(_ context.Context, args principleArgs) (string, error) {
			p, _ := wcag.ParsePrinciple(args.Principle)
			level, _ := wcag.ParseLevel(args.Level)
			matches := wcag.ByPrinciple(p, level)

			header := "WCAG Criteria for " + titleCase(string(p))
			if level != "" {
				header += fmt.Sprintf(" (Level %s)", level)
			}
			if len(matches) == 0 {
				return "No criteria found for " + header, nil
			}
			var sb strings.Builder
			sb.WriteString(header + ":\n\n")
			for _, c := range matches {
				fmt.Fprintf(&sb, "- %s: %s (Level %s)\n  %s\n\n", c.ID, c.Name, c.Level, c.Description)
			}
			return sb.String(), nil
		},
	)
}

type levelArgs struct {
	Level string `json:"level"`
}

func (a *levelArgs) Validate() error {
	if a.Level == "" {
		return nil
	}
	if _, ok := wcag.ParseLevel(a.Level); !ok {
		return fmt.Errorf("unknown level %q", a.Level)
	}
	return nil
}

// AllCriteriaTool returns get_all_criteria.
func AllCriteriaTool() *tools.Tool {
	return tools.NewTyped("get_all_criteria",
		"Get a list of all WCAG 2.2 success criteria with basic info",
		tools.CategoryReference,
		tools.ToolSchema{
			Properties: map[string]tools.Property{
				"level": {Type: "string", Description: "Optional conformance level filter", Enum: []any{"A", "AA", "AAA"}},
			},
		},
		func(_ context.Context, args levelArgs) (string, error) {
			level, _ := wcag.ParseLevel(args.Level)
			var sb strings.Builder
			sb.WriteString("WCAG 2.2 Success Criteria")
			if level != "" {
				fmt.Fprintf(&sb, " (Level %s)", level)
			}
			sb.WriteString(":\n\n")
			for _, c := range wcag.All(level) {
				fmt.Fprintf(&sb, "%s: %s (Level %s) - %s\n", c.ID, c.Name, c.Level, titleCase(string(c.Principle())))
			}
			return sb.String(), nil
		},
	)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
