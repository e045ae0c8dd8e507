package extract

// Field is one extracted name/value pair.
type Field struct {
	Name  string
	Value string
}

// Row is the raw, string-valued result of extracting one listing row. Field
// order follows the spec.
type Row struct {
	Index  int
	Markup string
	fields []Field
}

// NewRow builds a row from fields, mostly for adapters and tests.
func NewRow(index int, fields ...Field) Row {
	return Row{Index: index, fields: fields}
}

// Get returns the value of name or "".
func (r Row) Get(name string) string {
	v, _ := r.Lookup(name)
	return v
}

// Lookup returns the value of name and whether the field was found.
func (r Row) Lookup(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns the fields in spec order.
func (r Row) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// With returns a copy of r with extra fields appended; existing names are
// overwritten in place.
func (r Row) With(fields ...Field) Row {
	out := Row{Index: r.Index, Markup: r.Markup, fields: append([]Field(nil), r.fields...)}
	for _, f := range fields {
		replaced := false
		for i := range out.fields {
			if out.fields[i].Name == f.Name {
				out.fields[i].Value = f.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out.fields = append(out.fields, f)
		}
	}
	return out
}

// Rows is a finite, forward-only scanner over extracted rows. A row with a
// missing mandatory field reports a *RowError from Row without stopping the
// scan.
type Rows struct {
	n    int
	i    int
	eval func(i int) (Row, error)

	cur Row
	err error
}

func newRows(n int, eval func(i int) (Row, error)) *Rows {
	return &Rows{n: n, i: -1, eval: eval}
}

// Len is the number of rows matched.
func (r *Rows) Len() int { return r.n }

// Next advances to the next row.
func (r *Rows) Next() bool {
	if r.i+1 >= r.n {
		r.i = r.n
		return false
	}
	r.i++
	r.cur, r.err = r.eval(r.i)
	return true
}

// Row returns the current row and its extraction error, if any.
func (r *Rows) Row() (Row, error) {
	return r.cur, r.err
}
