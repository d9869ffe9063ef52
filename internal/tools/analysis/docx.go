package analysis

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotDocx is returned when a file is not a readable Word document.
var ErrNotDocx = errors.New("not a docx document")

// WordprocessingML namespaces used by the walker.
const (
	nsW  = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsWP = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsDC = "http://purl.org/dc/elements/1.1/"
)

// Heading styles are "Heading1".."Heading9" (style id) or "Heading 1" and
// localized "Rubrik1" in Swedish templates.
var headingStyle = regexp.MustCompile(`(?i)^(?:heading|rubrik)\s*([1-9])$`)

// DocxStructure extracts the outline of a Word document from a zip reader.
func DocxStructure(r io.ReaderAt, size int64) (*Structure, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	return docxFromZip(zr)
}

// DocxFile opens path and extracts its outline.
func DocxFile(path string) (*Structure, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	defer zr.Close()
	return docxFromZip(&zr.Reader)
}

func docxFromZip(zr *zip.Reader) (*Structure, error) {
	s := &Structure{DocumentType: "docx", Headings: []Heading{}, Tables: []Table{}}
	var body *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			body = f
		case "docProps/core.xml":
			if err := readCoreProps(f, s); err != nil {
				return nil, err
			}
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: word/document.xml missing", ErrNotDocx)
	}
	if err := readBody(body, s); err != nil {
		return nil, err
	}

	s.evaluate()
	return s, nil
}

func readCoreProps(f *zip.File, s *Structure) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open core properties: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var field *string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read core properties: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			field = nil
			if t.Name.Space == nsDC {
				switch t.Name.Local {
				case "title":
					field = &s.Title
				case "language":
					field = &s.Language
				}
			}
		case xml.CharData:
			if field != nil {
				*field += strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			field = nil
		}
	}
}

// bodyWalker tracks the element context while streaming document.xml.
type bodyWalker struct {
	s *Structure

	paraStyle string
	paraText  strings.Builder
	inText    bool

	tableDepth int
	tables     []Table // stack; innermost last

	linkDepth int
	linkText  strings.Builder
}

func readBody(f *zip.File, s *Structure) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open document body: %w", err)
	}
	defer rc.Close()

	w := &bodyWalker{s: s}
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotDocx, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t)
		case xml.EndElement:
			w.end(t)
		case xml.CharData:
			if w.inText {
				w.paraText.Write(t)
				if w.linkDepth > 0 {
					w.linkText.Write(t)
				}
			}
		}
	}
}

func (w *bodyWalker) start(t xml.StartElement) {
	switch t.Name.Space {
	case nsW:
		switch t.Name.Local {
		case "p":
			w.paraStyle = ""
			w.paraText.Reset()
		case "pStyle":
			w.paraStyle = xmlAttr(t, nsW, "val")
		case "t":
			w.inText = true
		case "tbl":
			w.tableDepth++
			w.tables = append(w.tables, Table{})
		case "tr":
			if n := len(w.tables); n > 0 {
				w.tables[n-1].Rows++
			}
		case "tblHeader":
			if n := len(w.tables); n > 0 && xmlAttr(t, nsW, "val") != "0" && xmlAttr(t, nsW, "val") != "false" {
				w.tables[n-1].HasHeader = true
			}
		case "hyperlink":
			w.linkDepth++
			if w.linkDepth == 1 {
				w.linkText.Reset()
			}
		}
	case nsWP:
		if t.Name.Local == "docPr" {
			w.s.Images.Total++
			if strings.TrimSpace(xmlAttr(t, "", "descr")) == "" && strings.TrimSpace(xmlAttr(t, "", "title")) == "" {
				w.s.Images.MissingAltText++
			}
		}
	}
}

func (w *bodyWalker) end(t xml.EndElement) {
	if t.Name.Space != nsW {
		return
	}
	switch t.Name.Local {
	case "t":
		w.inText = false
	case "p":
		if w.tableDepth > 0 {
			return
		}
		text := strings.Join(strings.Fields(w.paraText.String()), " ")
		if m := headingStyle.FindStringSubmatch(w.paraStyle); m != nil {
			level, _ := strconv.Atoi(m[1])
			w.s.Headings = append(w.s.Headings, Heading{Level: level, Text: text})
			return
		}
		if text != "" {
			w.s.Paragraphs++
		}
	case "tbl":
		if n := len(w.tables); n > 0 {
			w.s.Tables = append(w.s.Tables, w.tables[n-1])
			w.tables = w.tables[:n-1]
		}
		w.tableDepth--
	case "hyperlink":
		w.linkDepth--
		if w.linkDepth == 0 {
			w.s.Links.Total++
			if text := strings.TrimSpace(w.linkText.String()); isNonDescriptive(text) {
				w.s.Links.NonDescriptive = append(w.s.Links.NonDescriptive, text)
			}
		}
	}
}

func xmlAttr(t xml.StartElement, space, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local && (space == "" || a.Name.Space == space) {
			return a.Value
		}
	}
	return ""
}
