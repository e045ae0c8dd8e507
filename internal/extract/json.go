package extract

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// JSON locates spec's rows in a JSON body. Container must exist when set;
// Selector is the gjson path of the row array (empty means the container or
// document is the array).
func JSON(body []byte, spec RowSpec) (*Rows, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrShape)
	}
	root := gjson.ParseBytes(body)
	if spec.Container != "" {
		root = root.Get(spec.Container)
		if !root.Exists() {
			return nil, fmt.Errorf("%w: container %q not found", ErrShape, spec.Container)
		}
	}
	list := root
	if spec.Selector != "" {
		list = root.Get(spec.Selector)
	}
	items := list.Array()

	return newRows(len(items), func(i int) (Row, error) {
		return evalJSONFields(i, items[i], spec.Fields)
	}), nil
}

// Listing locates spec's rows in body using the parser spec.Format names.
func Listing(body []byte, spec RowSpec) (*Rows, error) {
	switch spec.Format {
	case "", FormatHTML:
		return HTML(body, spec)
	case FormatJSON:
		return JSON(body, spec)
	default:
		return nil, fmt.Errorf("unknown listing format %q", spec.Format)
	}
}

// JSONObject evaluates fields over a single JSON object.
func JSONObject(body []byte, fields []FieldSpec) (Row, error) {
	if !gjson.ValidBytes(body) {
		return Row{}, fmt.Errorf("%w: invalid JSON", ErrShape)
	}
	return evalJSONFields(0, gjson.ParseBytes(body), fields)
}

func evalJSONFields(index int, item gjson.Result, fields []FieldSpec) (Row, error) {
	row := Row{Index: index, Markup: item.Raw, fields: make([]Field, 0, len(fields))}
	var missing []string
	for _, f := range fields {
		res := item
		if f.Selector != "" {
			res = item.Get(f.Selector)
		}
		value := res.String()
		if f.Mandatory && (!res.Exists() || value == "") {
			missing = append(missing, f.Name)
		}
		row.fields = append(row.fields, Field{Name: f.Name, Value: value})
	}
	if len(missing) > 0 {
		return row, &RowError{Index: index, Fields: missing, Markup: row.Markup}
	}
	return row, nil
}
