package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"allycheck/internal/types"
)

type auditOptions struct {
	mode           string
	content        string
	file           string
	url            string
	locale         string
	variant        string
	suspectedIssue string
	jsonOut        bool
	render         bool
}

var auditFlags auditOptions

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run one accessibility audit and print the result",
	Long: `Runs a single audit through the engine.

Content comes from exactly one of --content, --file or --url. "--file -"
reads standard input. Document files (.docx, .pdf, .html, .txt) are read by the
document tools through their path.

Examples:
  allycheck audit --url https://example.se
  allycheck audit --mode snippet --content '<img src="logo.png">'
  allycheck audit --mode document --file report.docx --locale en-US
  allycheck audit --file brochure.pdf
  allycheck audit --mode issue --url https://example.se --issue "Menu cannot be opened with keyboard"`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVarP(&auditFlags.mode, "mode", "m", "", "Audit mode: url, html, snippet, document, issue (inferred when empty)")
	f.StringVar(&auditFlags.content, "content", "", "Content to audit")
	f.StringVarP(&auditFlags.file, "file", "f", "", "Read content from a file, or - for stdin")
	f.StringVarP(&auditFlags.url, "url", "u", "", "URL to audit")
	f.StringVarP(&auditFlags.locale, "locale", "l", "", "Analysis language: sv-SE (default) or en-US")
	f.StringVar(&auditFlags.variant, "variant", "", "Model variant: flash, pro, flash-lite (config default when empty)")
	f.StringVar(&auditFlags.suspectedIssue, "issue", "", "Suspected issue to investigate (issue mode)")
	f.BoolVar(&auditFlags.jsonOut, "json", false, "Print the full result as JSON")
	f.BoolVar(&auditFlags.render, "render", false, "Render the model's analysis as formatted markdown")
}

func runAudit(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}
	res, err := eng.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if auditFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printSummary(out, res)
	if auditFlags.render && res.RawAnalysis != "" {
		return renderMarkdown(out, res.RawAnalysis)
	}
	return nil
}

// buildRequest turns the audit flags into a request. It does not validate
// beyond what is needed to pick a mode; the engine does that.
func buildRequest(stdin io.Reader) (*types.AuditRequest, error) {
	sources := 0
	for _, s := range []string{auditFlags.content, auditFlags.file, auditFlags.url} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, usagef("exactly one of --content, --file or --url is required")
	}

	req := &types.AuditRequest{
		Mode:           types.Mode(strings.ToLower(auditFlags.mode)),
		Model:          "gemini",
		Variant:        auditFlags.variant,
		Locale:         types.Locale(auditFlags.locale),
		SuspectedIssue: auditFlags.suspectedIssue,
	}
	if req.Variant == "" && cfg != nil {
		req.Variant = cfg.Model.Variant
	}

	switch {
	case auditFlags.url != "":
		req.Content = auditFlags.url
		if req.Mode == "" {
			req.Mode = types.ModeURL
		}
	case auditFlags.content != "":
		req.Content = auditFlags.content
		if req.Mode == "" {
			req.Mode = types.ModeSnippet
		}
	case auditFlags.file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		req.Content = string(data)
		if req.Mode == "" {
			req.Mode = types.ModeHTML
		}
	default:
		if err := fileRequest(req, auditFlags.file); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func fileRequest(req *types.AuditRequest, path string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if req.Mode == "" {
		switch ext {
		case "html", "htm":
			req.Mode = types.ModeHTML
		default:
			req.Mode = types.ModeDocument
		}
	}
	if req.Mode == types.ModeDocument {
		req.DocumentType = ext
		req.FilePath = path
		// Binary formats are read by the structure tool through FilePath.
		if ext == "docx" {
			req.Content = "Document " + filepath.Base(path)
			return nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return usagef("cannot read %s: %v", path, err)
	}
	req.Content = string(data)
	return nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a94a6"))

	severityStyles = map[types.Severity]lipgloss.Style{
		types.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935")),
		types.SeveritySerious:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ff8a65")),
		types.SeverityModerate: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		types.SeverityMinor:    lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")),
	}
)

func printSummary(w io.Writer, res *types.AuditResult) {
	m := res.Metrics
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d issues", m.Total)))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(
		"critical %d  serious %d  moderate %d  minor %d  |  P %d  O %d  U %d  R %d  |  %d ms, %d chunk(s)",
		m.Critical, m.Serious, m.Moderate, m.Minor,
		m.Perceivable, m.Operable, m.Understandable, m.Robust,
		res.DurationMs, res.Chunks)))
	fmt.Fprintln(w)

	for i, issue := range res.Issues {
		sev := severityStyles[issue.Severity].Render(strings.ToUpper(string(issue.Severity)))
		fmt.Fprintf(w, "%2d. [%s] %s %s\n", i+1, sev, issue.Criterion, issue.Title)
		if issue.Selector != "" {
			fmt.Fprintf(w, "    %s\n", mutedStyle.Render(issue.Selector))
		}
		if issue.Remediation != "" {
			fmt.Fprintf(w, "    -> %s\n", issue.Remediation)
		}
	}
	if len(res.SourcesConsulted) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, mutedStyle.Render("Sources: "+strings.Join(res.SourcesConsulted, ", ")))
	}
}

func renderMarkdown(w io.Writer, markdown string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		fmt.Fprintln(w, markdown)
		return nil
	}
	fmt.Fprint(w, out)
	return nil
}
