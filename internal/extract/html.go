// Package extract turns loosely structured tracker markup into raw rows of
// named string fields, driven by declarative selector specs.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTML locates spec's rows in body. It fails with ErrShape only when the page
// itself is unusable; zero matching rows is not an error.
func HTML(body []byte, spec RowSpec) (*Rows, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShape, err)
	}

	scope := doc.Selection
	if spec.Container != "" {
		scope = doc.Find(spec.Container)
		if scope.Length() == 0 {
			return nil, fmt.Errorf("%w: container %q not found", ErrShape, spec.Container)
		}
	}

	rows := scope
	if spec.Selector != "" {
		rows = scope.Find(spec.Selector)
	}

	return newRows(rows.Length(), func(i int) (Row, error) {
		return evalFields(i, rows.Eq(i), doc.Selection, spec.Fields)
	}), nil
}

// Document evaluates fields over a whole page, such as a topic detail page.
func Document(body []byte, fields []FieldSpec) (Row, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Row{}, fmt.Errorf("%w: %w", ErrShape, err)
	}
	return evalFields(0, doc.Selection, doc.Selection, fields)
}

func evalFields(index int, node, doc *goquery.Selection, fields []FieldSpec) (Row, error) {
	row := Row{Index: index, fields: make([]Field, 0, len(fields))}
	if markup, err := goquery.OuterHtml(node); err == nil {
		row.Markup = markup
	}

	var missing []string
	for _, f := range fields {
		value, found := evalField(node, doc, f)
		if f.Mandatory && (!found || value == "") {
			missing = append(missing, f.Name)
		}
		row.fields = append(row.fields, Field{Name: f.Name, Value: value})
	}
	if len(missing) > 0 {
		return row, &RowError{Index: index, Fields: missing, Markup: row.Markup}
	}
	return row, nil
}

func evalField(node, doc *goquery.Selection, f FieldSpec) (string, bool) {
	base := node
	if f.Scope == ScopeDocument {
		base = doc
	}
	sel := base
	if f.Selector != "" {
		sel = base.Find(f.Selector)
	}
	sel = sel.Eq(f.Index)
	if sel.Length() == 0 {
		return "", false
	}

	switch f.mode() {
	case ModeAttr:
		v, ok := sel.Attr(f.Attr)
		return strings.TrimSpace(v), ok
	case ModeHTML:
		h, err := sel.Html()
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(h), true
	case ModeOuter:
		h, err := goquery.OuterHtml(sel)
		if err != nil {
			return "", false
		}
		return h, true
	default:
		return strings.TrimSpace(sel.Text()), true
	}
}
