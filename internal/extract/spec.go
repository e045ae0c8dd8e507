package extract

import (
	"errors"
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Mode selects what a field reads from the matched node.
type Mode string

const (
	ModeText  Mode = "text"  // trimmed text content
	ModeAttr  Mode = "attr"  // attribute value
	ModeHTML  Mode = "html"  // inner HTML
	ModeOuter Mode = "outer" // outer HTML
)

// Scope selects where a field selector is evaluated.
type Scope string

const (
	ScopeRow      Scope = "row"
	ScopeDocument Scope = "document"
)

// FieldSpec describes one field of a row. For HTML the selector is CSS and an
// empty selector means the row node itself; for JSON it is a gjson path.
type FieldSpec struct {
	Name      string `yaml:"name"`
	Selector  string `yaml:"selector,omitempty"`
	Attr      string `yaml:"attr,omitempty"`
	Mode      Mode   `yaml:"mode,omitempty"`
	Scope     Scope  `yaml:"scope,omitempty"`
	Index     int    `yaml:"index,omitempty"`
	Mandatory bool   `yaml:"mandatory,omitempty"`
}

func (f FieldSpec) mode() Mode {
	switch {
	case f.Mode != "":
		return f.Mode
	case f.Attr != "":
		return ModeAttr
	default:
		return ModeText
	}
}

// Listing body formats. The zero value is FormatHTML.
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// RowSpec locates the repeated rows of a listing and the fields of each row.
// Format selects CSS selectors (html) or gjson paths (json).
type RowSpec struct {
	Format    string      `yaml:"format,omitempty"`
	Container string      `yaml:"container,omitempty"`
	Selector  string      `yaml:"selector,omitempty"`
	Fields    []FieldSpec `yaml:"fields"`
}

// Specs is a named set of row specs, as shipped by an adapter.
type Specs map[string]RowSpec

// LoadSpecs parses a YAML selector document.
func LoadSpecs(data []byte) (Specs, error) {
	var specs Specs
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse selectors: %w", err)
	}
	return specs, nil
}

// LoadSpecsFile reads a YAML selector override file.
func LoadSpecsFile(path string) (Specs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selectors: %w", err)
	}
	return LoadSpecs(data)
}

// Get returns the named spec.
func (s Specs) Get(name string) (RowSpec, error) {
	spec, ok := s[name]
	if !ok {
		return RowSpec{}, fmt.Errorf("%w: %s", ErrNoSpec, name)
	}
	return spec, nil
}

// Merge returns s with every spec named in override replaced.
func (s Specs) Merge(override Specs) Specs {
	out := make(Specs, len(s)+len(override))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// ValidateHTML compiles every CSS selector so typos surface at load time
// rather than as silently empty fields. JSON specs are skipped.
func (s Specs) ValidateHTML() error {
	var errs []error
	check := func(where, sel string) {
		if sel == "" {
			return
		}
		if _, err := cascadia.Compile(sel); err != nil {
			errs = append(errs, fmt.Errorf("%s: %q: %w", where, sel, err))
		}
	}
	for name, spec := range s {
		switch spec.Format {
		case "", FormatHTML:
		case FormatJSON:
			continue
		default:
			errs = append(errs, fmt.Errorf("%s: unknown format %q", name, spec.Format))
			continue
		}
		check(name+".container", spec.Container)
		check(name+".selector", spec.Selector)
		for _, f := range spec.Fields {
			check(name+"."+f.Name, f.Selector)
			if f.mode() == ModeAttr && f.Attr == "" {
				errs = append(errs, fmt.Errorf("%s.%s: attr mode without attr", name, f.Name))
			}
		}
	}
	return errors.Join(errs...)
}
