package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"allycheck/internal/mcp"
	"allycheck/internal/tools"
	"allycheck/internal/types"
	"allycheck/internal/wcag"
)

var toolsCategory string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the model",
	Long: `Lists every registered tool, or with --category only the tools of one
category (retrieval, analysis, document, evidence, reference, remote)
ordered by priority.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		list := a.registry.All()
		if toolsCategory != "" {
			category := tools.ToolCategory("/" + strings.TrimPrefix(strings.ToLower(toolsCategory), "/"))
			list = a.registry.GetByCategory(category)
			if len(list) == 0 {
				return usagef("no tools in category %q", toolsCategory)
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCATEGORY\tDESCRIPTION")
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Category, firstLine(t.Description))
		}
		return tw.Flush()
	},
}

type criteriaOptions struct {
	principle string
	level     string
	search    string
}

var criteriaFlags criteriaOptions

var criteriaCmd = &cobra.Command{
	Use:   "criteria [id]",
	Short: "Look up WCAG 2.2 success criteria",
	Long: `Without arguments lists criteria, optionally filtered by --principle,
--level or --search. With an id prints that criterion in full.

Examples:
  allycheck criteria 1.4.3
  allycheck criteria --principle operable --level AA
  allycheck criteria --search contrast`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCriteria,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsCategory, "category", "", "Only list tools of this category")
	criteriaCmd.Flags().StringVarP(&criteriaFlags.principle, "principle", "p", "", "perceivable, operable, understandable, robust (or 1-4)")
	criteriaCmd.Flags().StringVar(&criteriaFlags.level, "level", "", "A, AA or AAA")
	criteriaCmd.Flags().StringVarP(&criteriaFlags.search, "search", "s", "", "Match names and descriptions")
}

func runCriteria(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		c, ok := wcag.Lookup(args[0])
		if !ok {
			return usagef("unknown WCAG criterion %q", args[0])
		}
		printCriterion(out, c)
		return nil
	}

	var level types.Level
	if criteriaFlags.level != "" {
		l, ok := wcag.ParseLevel(criteriaFlags.level)
		if !ok {
			return usagef("invalid level %q", criteriaFlags.level)
		}
		level = l
	}

	var list []wcag.Criterion
	switch {
	case criteriaFlags.search != "":
		for _, c := range wcag.Search(criteriaFlags.search) {
			if level == "" || c.Level == level {
				list = append(list, c)
			}
		}
	case criteriaFlags.principle != "":
		p, ok := wcag.ParsePrinciple(criteriaFlags.principle)
		if !ok {
			return usagef("invalid principle %q", criteriaFlags.principle)
		}
		list = wcag.ByPrinciple(p, level)
	default:
		list = wcag.All(level)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Level, c.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No matching criteria.")
	}
	return nil
}

func printCriterion(w io.Writer, c wcag.Criterion) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s %s (Level %s)", c.ID, c.Name, c.Level)))
	fmt.Fprintf(w, "Principle: %s\nGuideline: %s\n\n%s\n", c.Principle(), c.Guideline, c.Description)
	if len(c.Examples) > 0 {
		fmt.Fprintln(w)
		for _, ex := range c.Examples {
			fmt.Fprintf(w, "  - %s\n", ex)
		}
	}
	fmt.Fprintf(w, "\n%s\n", mutedStyle.Render(c.UnderstandingURL()))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the audit tools to MCP clients over stdio",
	Long: `Exposes the tool registry (research, analysis and document tools) as an
MCP server on stdin/stdout, so editors and agents can call them directly.
Logging goes to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return mcp.ServeStdio(ctx, mcp.NewServer(a.registry, cfg.Version))
	},
}
