package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"allycheck/internal/logging"
	"allycheck/internal/tools"
)

const defaultAnalyzeTimeout = 30 * time.Second

type analyzeHTMLArgs struct {
	HTML    string   `json:"html"`
	Rules   []string `json:"rules"`
	Context struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
	} `json:"context"`
}

func (a *analyzeHTMLArgs) Validate() error {
	if strings.TrimSpace(a.HTML) == "" {
		return errors.New("html is required")
	}
	return nil
}

// AnalyzeHTMLTool returns analyze_html.
func AnalyzeHTMLTool(auditor Auditor) *tools.Tool {
	return tools.NewTyped("analyze_html",
		"Run axe-core accessibility analysis on HTML content. Returns WCAG violations with severity, impact, and remediation guidance.",
		tools.CategoryAnalysis,
		tools.ToolSchema{
			Required: []string{"html"},
			Properties: map[string]tools.Property{
				"html":  {Type: "string", Description: "The HTML content to analyze"},
				"rules": {Type: "array", Description: "axe rule tags to run (defaults to wcag2a, wcag2aa, wcag21aa, wcag22aa)", Items: &tools.PropertyItems{Type: "string"}},
			},
		},
		func(ctx context.Context, args analyzeHTMLArgs) (string, error) {
			res, err := auditor.AnalyzeHTML(ctx, args.HTML, args.Rules)
			if err != nil {
				return "", err
			}
			label := "HTML content"
			if args.Context.URL != "" {
				label = args.Context.URL
			} else if args.Context.Filename != "" {
				label = args.Context.Filename
			}
			tools.Report(ctx, res.Issues()...)
			logging.ToolsDebug("analyze_html: %d violations", len(res.Violations))
			return res.Summary(label), nil
		},
	)
}

type analyzeURLArgs struct {
	URL             string  `json:"url"`
	WaitForSelector string  `json:"wait_for_selector"`
	TimeoutMs       float64 `json:"timeout"`
}

func (a *analyzeURLArgs) Validate() error {
	return validateHTTPURL(a.URL)
}

// AnalyzeURLTool returns analyze_url.
func AnalyzeURLTool(auditor Auditor) *tools.Tool {
	return tools.NewTyped("analyze_url",
		"Load a URL in a headless browser and run axe-core analysis on it",
		tools.CategoryAnalysis,
		tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url":               {Type: "string", Description: "The URL to load and analyze"},
				"wait_for_selector": {Type: "string", Description: "CSS selector to wait for before analyzing (optional)"},
				"timeout":           {Type: "number", Description: "Page load timeout in milliseconds (default: 30000)", Default: 30000},
			},
		},
		func(ctx context.Context, args analyzeURLArgs) (string, error) {
			timeout := defaultAnalyzeTimeout
			if args.TimeoutMs > 0 {
				timeout = time.Duration(args.TimeoutMs) * time.Millisecond
			}
			res, err := auditor.AnalyzeURL(ctx, args.URL, args.WaitForSelector, timeout)
			if err != nil {
				return "", err
			}
			tools.Report(ctx, res.Issues()...)
			logging.ToolsDebug("analyze_url %s: %d violations", args.URL, len(res.Violations))
			return res.Summary(args.URL), nil
		},
	)
}

type screenshotArgs struct {
	URL      string `json:"url"`
	HTML     string `json:"html"`
	Selector string `json:"selector"`
	FullPage bool   `json:"full_page"`
}

func (a *screenshotArgs) Validate() error {
	switch {
	case a.URL == "" && a.HTML == "":
		return errors.New("one of url or html is required")
	case a.URL != "" && a.HTML != "":
		return errors.New("url and html are mutually exclusive")
	case a.URL != "":
		return validateHTTPURL(a.URL)
	}
	return nil
}

// ScreenshotTool returns capture_screenshot.
func ScreenshotTool(capturer Capturer) *tools.Tool {
	return tools.NewTyped("capture_screenshot",
		"Capture a PNG screenshot of a URL or HTML content as visual evidence, optionally of a single element",
		tools.CategoryEvidence,
		tools.ToolSchema{
			Properties: map[string]tools.Property{
				"url":       {Type: "string", Description: "URL to capture"},
				"html":      {Type: "string", Description: "HTML content to render and capture"},
				"selector":  {Type: "string", Description: "CSS selector of the element to capture (optional)"},
				"full_page": {Type: "boolean", Description: "Capture the full scrollable page", Default: false},
			},
		},
		func(ctx context.Context, args screenshotArgs) (string, error) {
			path, err := capturer.Capture(ctx, CaptureTarget{
				URL:      args.URL,
				HTML:     args.HTML,
				Selector: args.Selector,
				FullPage: args.FullPage,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Screenshot saved: %s", path), nil
		},
	)
}

type structureArgs struct {
	DocumentType string `json:"document_type"`
	Content      string `json:"content"`
	FilePath     string `json:"file_path"`
}

func (a *structureArgs) Validate() error {
	switch strings.ToLower(a.DocumentType) {
	case "html":
		if strings.TrimSpace(a.Content) == "" && a.FilePath == "" {
			return errors.New("content or file_path is required")
		}
	case "docx", "pdf":
		if a.FilePath == "" {
			return fmt.Errorf("file_path is required for %s", strings.ToLower(a.DocumentType))
		}
	default:
		return fmt.Errorf("unsupported document_type %q (html, docx, pdf)", a.DocumentType)
	}
	return nil
}

// Documents reads documents for structure extraction. When Root is set,
// file paths must resolve inside it.
type Documents struct {
	Root string
}

// resolve maps a tool-supplied path onto the filesystem.
func (d Documents) resolve(p string) (string, error) {
	if d.Root == "" {
		return filepath.Clean(p), nil
	}
	root, err := filepath.Abs(d.Root)
	if err != nil {
		return "", err
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, p)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file_path %q is outside the document root", p)
	}
	return full, nil
}

// Extract returns the structure of the described document.
func (d Documents) Extract(documentType, content, filePath string) (*Structure, error) {
	switch strings.ToLower(documentType) {
	case "html":
		if content == "" {
			path, err := d.resolve(filePath)
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", filePath, err)
			}
			content = string(data)
		}
		return HTMLStructure(content)
	case "docx":
		path, err := d.resolve(filePath)
		if err != nil {
			return nil, err
		}
		return DocxFile(path)
	case "pdf":
		path, err := d.resolve(filePath)
		if err != nil {
			return nil, err
		}
		return PDFFile(path)
	}
	return nil, fmt.Errorf("unsupported document_type %q", documentType)
}

// StructureTool returns extract_document_structure.
func (d Documents) StructureTool() *tools.Tool {
	return tools.NewTyped("extract_document_structure",
		"Extract the structure of an HTML, DOCX or PDF document (headings outline, tables, images, links, language, title; for PDFs also tagging, bookmarks and form fields) and report structural accessibility problems",
		tools.CategoryDocument,
		tools.ToolSchema{
			Required: []string{"document_type"},
			Properties: map[string]tools.Property{
				"document_type": {Type: "string", Description: "Document type", Enum: []any{"html", "docx", "pdf"}},
				"content":       {Type: "string", Description: "HTML content (html only)"},
				"file_path":     {Type: "string", Description: "Path to the document file"},
			},
		},
		func(ctx context.Context, args structureArgs) (string, error) {
			s, err := d.Extract(args.DocumentType, args.Content, args.FilePath)
			if err != nil {
				return "", err
			}
			for _, f := range s.Findings {
				tools.Report(ctx, f.Issue())
			}
			out, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return "", fmt.Errorf("encode structure: %w", err)
			}
			return string(out), nil
		},
	)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

// Deps are the collaborators of the analysis tools. A nil Auditor or
// Capturer leaves the corresponding tools unregistered.
type Deps struct {
	Auditor   Auditor
	Capturer  Capturer
	Documents Documents
}

// RegisterAll registers the analysis, document and evidence tools.
func RegisterAll(registry *tools.Registry, deps Deps) error {
	all := []*tools.Tool{deps.Documents.StructureTool()}
	if deps.Auditor != nil {
		all = append(all, AnalyzeHTMLTool(deps.Auditor), AnalyzeURLTool(deps.Auditor))
	}
	if deps.Capturer != nil {
		all = append(all, ScreenshotTool(deps.Capturer))
	}
	for _, tool := range all {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
