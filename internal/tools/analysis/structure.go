package analysis

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"allycheck/internal/types"
)

// Structure is the outline of a document with the structural problems
// found in it.
type Structure struct {
	DocumentType string    `json:"document_type"`
	Title        string    `json:"title,omitempty"`
	Language     string    `json:"language,omitempty"`
	Paragraphs   int       `json:"paragraphs"`
	Headings     []Heading `json:"headings"`
	Tables       []Table   `json:"tables"`
	Images       Images    `json:"images"`
	Links        Links     `json:"links"`
	Findings     []Finding `json:"findings"`
	PDF          *PDFInfo  `json:"pdf,omitempty"`
}

// Heading is one entry of the outline.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Table summarises one table.
type Table struct {
	Rows      int  `json:"rows"`
	HasHeader bool `json:"has_header"`
}

// Images counts images and those without a text alternative.
type Images struct {
	Total          int `json:"total"`
	MissingAltText int `json:"missing_alt_text"`
}

// Links counts links and lists non-descriptive link texts.
type Links struct {
	Total          int      `json:"total"`
	NonDescriptive []string `json:"non_descriptive,omitempty"`
}

// Finding is a structural problem tied to a WCAG criterion.
type Finding struct {
	Criterion   string         `json:"wcag_criterion"`
	Name        string         `json:"criterion_name"`
	Severity    types.Severity `json:"severity"`
	Description string         `json:"description"`
	Remediation string         `json:"remediation"`
	Check       string         `json:"check"`
}

// Issue converts the finding into an automated issue.
func (f Finding) Issue() types.Issue {
	return types.Issue{
		Criterion:     f.Criterion,
		CriterionName: f.Name,
		Principle:     types.PrincipleForCriterion(f.Criterion),
		Title:         f.Name,
		Description:   f.Description,
		Severity:      f.Severity,
		Source:        types.SourceAutomated,
		Sources:       []types.DetectionSource{types.SourceAutomated},
		Remediation:   f.Remediation,
	}
}

var nonDescriptiveLinkText = map[string]bool{
	"click here": true, "here": true, "link": true, "read more": true, "more": true,
	"this": true, "http": true, "https": true, "www": true,
	"klicka här": true, "här": true, "läs mer": true, "mer": true, "länk": true,
}

func isNonDescriptive(text string) bool {
	return nonDescriptiveLinkText[strings.ToLower(strings.TrimSpace(text))]
}

// headingsAbsentThreshold is the paragraph count above which a document
// without headings is flagged.
const headingsAbsentThreshold = 20

// evaluate derives findings from the collected outline. The same rules
// apply to HTML, DOCX and PDF.
func (s *Structure) evaluate() {
	if len(s.Headings) == 0 && s.Paragraphs > headingsAbsentThreshold {
		s.Findings = append(s.Findings, Finding{
			Criterion: "1.3.1", Name: "Info and Relationships", Severity: types.SeveritySerious,
			Description: "Document has no headings. Headings provide structure and navigation for screen reader users.",
			Remediation: "Use real headings (Heading 1, Heading 2, ... or h1-h6) to structure the document.",
			Check:       "heading-check",
		})
	}
	for i := 1; i < len(s.Headings); i++ {
		prev, cur := s.Headings[i-1].Level, s.Headings[i].Level
		if cur > prev+1 {
			s.Findings = append(s.Findings, Finding{
				Criterion: "1.3.1", Name: "Info and Relationships", Severity: types.SeverityModerate,
				Description: fmt.Sprintf("Heading level skipped: Heading %d followed by Heading %d (%q). This breaks the document hierarchy.", prev, cur, s.Headings[i].Text),
				Remediation: "Use heading levels in order without skipping levels.",
				Check:       "heading-check",
			})
			break
		}
	}
	if s.Images.MissingAltText > 0 {
		s.Findings = append(s.Findings, Finding{
			Criterion: "1.1.1", Name: "Non-text Content", Severity: types.SeverityCritical,
			Description: fmt.Sprintf("%d of %d images have no text alternative.", s.Images.MissingAltText, s.Images.Total),
			Remediation: "Add a descriptive text alternative to every informative image and mark decorative images as decorative.",
			Check:       "image-check",
		})
	}
	headerless := 0
	for _, t := range s.Tables {
		if !t.HasHeader {
			headerless++
		}
	}
	if headerless > 0 {
		s.Findings = append(s.Findings, Finding{
			Criterion: "1.3.1", Name: "Info and Relationships", Severity: types.SeverityModerate,
			Description: fmt.Sprintf("%d of %d tables have no designated header row.", headerless, len(s.Tables)),
			Remediation: "Mark the first row of each data table as a header row.",
			Check:       "table-check",
		})
	}
	if n := len(s.Links.NonDescriptive); n > 0 {
		s.Findings = append(s.Findings, Finding{
			Criterion: "2.4.4", Name: "Link Purpose (In Context)", Severity: types.SeverityModerate,
			Description: fmt.Sprintf("Found %d potentially non-descriptive links (e.g. %q).", n, s.Links.NonDescriptive[0]),
			Remediation: "Use link text that makes sense out of context.",
			Check:       "link-check",
		})
	}
	if strings.TrimSpace(s.Language) == "" {
		s.Findings = append(s.Findings, Finding{
			Criterion: "3.1.1", Name: "Language of Page", Severity: types.SeveritySerious,
			Description: "Document language is not specified. Screen readers may not pronounce text correctly.",
			Remediation: "Set the document language (lang attribute or document properties).",
			Check:       "language-check",
		})
	}
	if strings.TrimSpace(s.Title) == "" {
		s.Findings = append(s.Findings, Finding{
			Criterion: "2.4.2", Name: "Page Titled", Severity: types.SeveritySerious,
			Description: "Document has no title. This makes it hard to identify the document's purpose.",
			Remediation: "Set a descriptive title.",
			Check:       "metadata-check",
		})
	}
}

// HTMLStructure extracts the outline of an HTML document.
func HTMLStructure(markup string) (*Structure, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	s := &Structure{DocumentType: "html", Headings: []Heading{}, Tables: []Table{}}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Html:
				s.Language = attr(n, "lang")
			case atom.Title:
				if s.Title == "" {
					s.Title = nodeText(n)
				}
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				s.Headings = append(s.Headings, Heading{Level: int(n.Data[1] - '0'), Text: nodeText(n)})
				return
			case atom.P:
				s.Paragraphs++
			case atom.Img:
				s.Images.Total++
				if _, ok := attrOK(n, "alt"); !ok && attr(n, "aria-label") == "" && attr(n, "role") != "presentation" {
					s.Images.MissingAltText++
				}
			case atom.A:
				if _, ok := attrOK(n, "href"); ok {
					s.Links.Total++
					text := nodeText(n)
					if label := attr(n, "aria-label"); label != "" {
						text = label
					}
					if isNonDescriptive(text) {
						s.Links.NonDescriptive = append(s.Links.NonDescriptive, text)
					}
				}
			case atom.Table:
				s.Tables = append(s.Tables, htmlTable(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	s.evaluate()
	return s, nil
}

func htmlTable(n *html.Node) Table {
	var t Table
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Table:
				if c != n {
					return // nested tables are reported on their own
				}
			case atom.Tr:
				t.Rows++
			case atom.Th:
				t.HasHeader = true
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return t
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Img {
			sb.WriteString(attr(c, "alt"))
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
