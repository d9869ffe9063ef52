// Package prompt renders the system instruction and the per-chunk user
// message of an audit conversation.
//
// Prompt text lives in YAML atoms under atoms/, baked into the binary with
// go:embed. Each atom is a text/template selected by kind, mode and locale.
package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"allycheck/internal/logging"
	"allycheck/internal/types"
)

//go:embed atoms
var embeddedAtoms embed.FS

// ErrNoTemplate is returned when no atom covers a mode and locale.
var ErrNoTemplate = errors.New("no prompt template")

// Atom kinds.
const (
	KindSystem = "system"
	KindMode   = "mode"
)

// Atom is one prompt fragment.
type Atom struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Mode     string `yaml:"mode,omitempty"`
	Locale   string `yaml:"locale"`
	Priority int    `yaml:"priority,omitempty"`
	Content  string `yaml:"content"`

	tmpl *template.Template
}

// Data is the template input for every atom.
type Data struct {
	Content        string
	DocumentType   string
	FilePath       string
	SuspectedIssue string
	Part           int // 1-based
	Parts          int
	Chunked        bool
	Tools          []string
}

var funcs = template.FuncMap{"join": strings.Join}

// Builder renders prompts from a parsed atom set.
type Builder struct {
	system map[types.Locale][]*Atom // sorted by priority, highest first
	modes  map[string]*Atom         // key: mode/locale
}

// NewBuilder loads the embedded atoms.
func NewBuilder() (*Builder, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "prompt.NewBuilder")
	defer timer.Stop()

	var atoms []*Atom
	err := fs.WalkDir(embeddedAtoms, "atoms", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := embeddedAtoms.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		parsed, err := ParseAtoms(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		atoms = append(atoms, parsed...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt atoms: %w", err)
	}
	return FromAtoms(atoms)
}

// ParseAtoms decodes a YAML list of atoms.
func ParseAtoms(data []byte) ([]*Atom, error) {
	var atoms []*Atom
	if err := yaml.Unmarshal(data, &atoms); err != nil {
		return nil, fmt.Errorf("parse atoms: %w", err)
	}
	return atoms, nil
}

// FromAtoms compiles atoms into a Builder. Duplicate mode atoms for the same
// locale are rejected.
func FromAtoms(atoms []*Atom) (*Builder, error) {
	b := &Builder{
		system: make(map[types.Locale][]*Atom),
		modes:  make(map[string]*Atom),
	}
	for _, a := range atoms {
		tmpl, err := template.New(a.Kind + ":" + a.ID + ":" + a.Locale).
			Funcs(funcs).Option("missingkey=error").Parse(a.Content)
		if err != nil {
			return nil, fmt.Errorf("atom %s (%s): %w", a.ID, a.Locale, err)
		}
		a.tmpl = tmpl

		switch a.Kind {
		case KindSystem:
			loc := types.Locale(a.Locale)
			b.system[loc] = append(b.system[loc], a)
		case KindMode:
			key := a.Mode + "/" + a.Locale
			if _, dup := b.modes[key]; dup {
				return nil, fmt.Errorf("duplicate prompt atom for mode %s locale %s", a.Mode, a.Locale)
			}
			b.modes[key] = a
		default:
			return nil, fmt.Errorf("atom %s: unknown kind %q", a.ID, a.Kind)
		}
	}
	for _, list := range b.system {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority > list[j].Priority })
	}
	logging.EngineDebug("Compiled %d prompt atoms", len(atoms))
	return b, nil
}

// System renders the system instruction for a locale.
func (b *Builder) System(locale types.Locale, toolNames []string) (string, error) {
	list := b.system[locale]
	if len(list) == 0 {
		return "", fmt.Errorf("%w: system/%s", ErrNoTemplate, locale)
	}
	data := Data{Tools: toolNames}
	parts := make([]string, 0, len(list))
	for _, a := range list {
		out, err := render(a, data)
		if err != nil {
			return "", err
		}
		if out != "" {
			parts = append(parts, out)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// User renders the user message for chunk part (1-based) of parts.
func (b *Builder) User(req *types.AuditRequest, chunk string, part, parts int) (string, error) {
	locale := req.EffectiveLocale()
	a, ok := b.modes[string(req.Mode)+"/"+string(locale)]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNoTemplate, req.Mode, locale)
	}
	if parts < 1 {
		parts = 1
	}
	return render(a, Data{
		Content:        chunk,
		DocumentType:   req.DocumentType,
		FilePath:       req.FilePath,
		SuspectedIssue: strings.TrimSpace(req.SuspectedIssue),
		Part:           part,
		Parts:          parts,
		Chunked:        parts > 1,
	})
}

func render(a *Atom, data Data) (string, error) {
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render atom %s (%s): %w", a.ID, a.Locale, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
