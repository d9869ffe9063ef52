package analysis

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"allycheck/internal/types"
)

// ErrNotPDF is returned when a file is not a readable PDF.
var ErrNotPDF = errors.New("not a pdf document")

// PDFInfo holds what only PDFs have.
type PDFInfo struct {
	Pages      int       `json:"pages"`
	Tagged     bool      `json:"tagged"`
	Bookmarks  []Heading `json:"bookmarks"`
	FormFields int       `json:"form_fields"`
	// UnnamedFields counts form fields without a tooltip (/TU).
	UnnamedFields int `json:"unnamed_fields"`
}

// maxStructDepth bounds the structure tree walk.
const maxStructDepth = 256

// Thresholds for the bookmark density check.
const (
	longDocumentPages = 10
	minLongBookmarks  = 3
)

// PDFStructure extracts the outline of a PDF. Tagged PDFs are read from the
// structure tree; untagged ones only expose bookmarks, metadata and the
// image XObjects of each page.
func PDFStructure(r io.ReaderAt, size int64) (s *Structure, err error) {
	// The reader panics on some malformed objects.
	defer func() {
		if rec := recover(); rec != nil {
			s, err = nil, fmt.Errorf("%w: %v", ErrNotPDF, rec)
		}
	}()

	rd, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	root := rd.Trailer().Key("Root")
	if root.Kind() != pdf.Dict {
		return nil, fmt.Errorf("%w: no document catalog", ErrNotPDF)
	}

	info := &PDFInfo{Pages: rd.NumPage(), Bookmarks: []Heading{}}
	s = &Structure{
		DocumentType: "pdf",
		Title:        strings.TrimSpace(rd.Trailer().Key("Info").Key("Title").Text()),
		Language:     strings.TrimSpace(root.Key("Lang").Text()),
		Headings:     []Heading{},
		Tables:       []Table{},
		PDF:          info,
	}

	var outline func(entries []pdf.Outline, level int)
	outline = func(entries []pdf.Outline, level int) {
		for _, o := range entries {
			info.Bookmarks = append(info.Bookmarks, Heading{Level: level, Text: strings.TrimSpace(o.Title)})
			outline(o.Child, level+1)
		}
	}
	outline(rd.Outline().Child, 1)

	fields := root.Key("AcroForm").Key("Fields")
	for i := 0; i < fields.Len(); i++ {
		info.FormFields++
		if strings.TrimSpace(fields.Index(i).Key("TU").Text()) == "" {
			info.UnnamedFields++
		}
	}

	if tree := root.Key("StructTreeRoot"); tree.Kind() == pdf.Dict {
		info.Tagged = true
		walkStructTree(s, tree.Key("K"), 0)
	} else {
		// Untagged content has nowhere to keep a text alternative.
		for i := 1; i <= info.Pages; i++ {
			s.Images.Total += pageImages(rd.Page(i))
		}
		s.Images.MissingAltText = s.Images.Total
	}

	s.evaluate()
	s.evaluatePDF()
	return s, nil
}

// PDFFile opens path and extracts its outline.
func PDFFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return PDFStructure(f, st.Size())
}

func pageImages(p pdf.Page) int {
	if p.V.IsNull() {
		return 0
	}
	xobjects := p.Resources().Key("XObject")
	n := 0
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			n++
		}
	}
	return n
}

// walkStructTree visits the structure elements below k. Kids are a single
// element, an array of them, or marked-content references, which carry no
// structure of their own.
func walkStructTree(s *Structure, k pdf.Value, depth int) {
	if depth > maxStructDepth {
		return
	}
	switch k.Kind() {
	case pdf.Array:
		for i := 0; i < k.Len(); i++ {
			walkStructTree(s, k.Index(i), depth+1)
		}
		return
	case pdf.Dict:
	default:
		return
	}

	switch tag := k.Key("S").Name(); tag {
	case "H1", "H2", "H3", "H4", "H5", "H6":
		s.Headings = append(s.Headings, Heading{Level: int(tag[1] - '0'), Text: structText(k)})
	case "P":
		s.Paragraphs++
	case "Figure":
		s.Images.Total++
		if strings.TrimSpace(k.Key("Alt").Text()) == "" && strings.TrimSpace(k.Key("ActualText").Text()) == "" {
			s.Images.MissingAltText++
		}
	case "Link":
		s.Links.Total++
	case "Table":
		var t Table
		tableRows(&t, k.Key("K"), depth+1)
		s.Tables = append(s.Tables, t)
	}
	walkStructTree(s, k.Key("K"), depth+1)
}

func tableRows(t *Table, k pdf.Value, depth int) {
	if depth > maxStructDepth {
		return
	}
	switch k.Kind() {
	case pdf.Array:
		for i := 0; i < k.Len(); i++ {
			tableRows(t, k.Index(i), depth+1)
		}
	case pdf.Dict:
		switch k.Key("S").Name() {
		case "Table":
			return // nested tables are reported on their own
		case "TR":
			t.Rows++
		case "TH":
			t.HasHeader = true
		}
		tableRows(t, k.Key("K"), depth+1)
	}
}

// structText is the readable text a structure element declares about
// itself. Text drawn on the page is not resolved.
func structText(k pdf.Value) string {
	for _, key := range []string{"T", "ActualText", "Alt"} {
		if v := strings.TrimSpace(k.Key(key).Text()); v != "" {
			return v
		}
	}
	return ""
}

// evaluatePDF adds the findings that only apply to PDFs.
func (s *Structure) evaluatePDF() {
	info := s.PDF
	if info == nil {
		return
	}
	if !info.Tagged {
		s.Findings = append(s.Findings, Finding{
			Criterion: "4.1.2", Name: "Name, Role, Value", Severity: types.SeverityCritical,
			Description: "PDF is not tagged. Without a structure tree, screen readers cannot tell headings, lists, tables and figures apart.",
			Remediation: "Export the PDF from the source document with tagging enabled, or add tags with a PDF editor.",
			Check:       "pdf-tag-check",
		})
	}
	switch n := len(info.Bookmarks); {
	case n == 0:
		s.Findings = append(s.Findings, Finding{
			Criterion: "2.4.5", Name: "Multiple Ways", Severity: types.SeverityModerate,
			Description: "PDF has no bookmarks. This makes navigation difficult for assistive technology users.",
			Remediation: "Add bookmarks for the major sections and headings.",
			Check:       "pdf-structure-check",
		})
	case info.Pages > longDocumentPages && n < minLongBookmarks:
		s.Findings = append(s.Findings, Finding{
			Criterion: "2.4.6", Name: "Headings and Labels", Severity: types.SeverityModerate,
			Description: fmt.Sprintf("PDF has %d pages but only %d bookmarks. The outline may not reflect the document structure.", info.Pages, n),
			Remediation: "Add bookmarks for each section of the document.",
			Check:       "pdf-structure-check",
		})
	}
	if info.UnnamedFields > 0 {
		s.Findings = append(s.Findings, Finding{
			Criterion: "4.1.2", Name: "Name, Role, Value", Severity: types.SeverityModerate,
			Description: fmt.Sprintf("%d of %d form fields have no tooltip naming them.", info.UnnamedFields, info.FormFields),
			Remediation: "Give every form field a descriptive tooltip (TU) that works as its accessible name.",
			Check:       "pdf-form-check",
		})
	}
}
