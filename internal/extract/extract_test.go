package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body>
<table id="tor-tbl">
  <tr class="tCenter"><td class="t-title"><a class="tLink" data-topic_id="101" href="viewtopic.php?t=101">First</a></td><td class="size">1.2 GB</td></tr>
  <tr class="tCenter"><td class="t-title"><a class="tLink" href="viewtopic.php?t=102">No id</a></td></tr>
  <tr class="tCenter"><td class="t-title"><a class="tLink" data-topic_id="103">Third <b>bold</b></a></td><td class="size"></td></tr>
</table>
<div id="logged-in-as-uname">alice</div>
</body></html>`

var listingSpec = RowSpec{
	Container: "#tor-tbl",
	Selector:  "tr.tCenter",
	Fields: []FieldSpec{
		{Name: "id", Selector: ".t-title .tLink", Attr: "data-topic_id", Mandatory: true},
		{Name: "title", Selector: ".t-title .tLink"},
		{Name: "size", Selector: "td.size"},
		{Name: "user", Selector: "#logged-in-as-uname", Scope: ScopeDocument},
	},
}

func TestHTML_RowsAndMandatoryFields(t *testing.T) {
	rows, err := HTML([]byte(listingHTML), listingSpec)
	require.NoError(t, err)
	assert.Equal(t, 3, rows.Len())

	require.True(t, rows.Next())
	row, err := rows.Row()
	require.NoError(t, err)
	assert.Equal(t, "101", row.Get("id"))
	assert.Equal(t, "First", row.Get("title"))
	assert.Equal(t, "1.2 GB", row.Get("size"))
	assert.Equal(t, "alice", row.Get("user"))
	assert.Contains(t, row.Markup, `data-topic_id="101"`)

	require.True(t, rows.Next())
	row, err = rows.Row()
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, []string{"id"}, rowErr.Fields)
	assert.Equal(t, 1, rowErr.Index)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Equal(t, "No id", row.Get("title"), "optional fields still extracted")

	require.True(t, rows.Next())
	row, err = rows.Row()
	require.NoError(t, err)
	assert.Equal(t, "Third bold", row.Get("title"))
	size, found := row.Lookup("size")
	assert.True(t, found)
	assert.Empty(t, size)

	assert.False(t, rows.Next())
	assert.False(t, rows.Next(), "scanner is not restartable")
}

func TestHTML_ZeroRowsIsNotAnError(t *testing.T) {
	rows, err := HTML([]byte(`<table id="tor-tbl"></table>`), listingSpec)
	require.NoError(t, err)
	assert.Equal(t, 0, rows.Len())
	assert.False(t, rows.Next())
}

func TestHTML_MissingContainerIsShapeError(t *testing.T) {
	_, err := HTML([]byte(`<html><body><h1>Maintenance</h1></body></html>`), listingSpec)
	assert.ErrorIs(t, err, ErrShape)
}

func TestHTML_InvalidSelectorMatchesNothing(t *testing.T) {
	spec := RowSpec{Selector: "tr.tCenter", Fields: []FieldSpec{{Name: "x", Selector: "td:::bad"}}}
	rows, err := HTML([]byte(listingHTML), spec)
	require.NoError(t, err)
	require.True(t, rows.Next())
	row, err := rows.Row()
	require.NoError(t, err)
	assert.Empty(t, row.Get("x"))
}

func TestHTML_ModesAndIndex(t *testing.T) {
	body := `<div class="ep"><td>a</td><span class="n">1</span><span class="n">2</span><p class="d">Hi <i>there</i></p></div>`
	spec := RowSpec{
		Selector: ".ep",
		Fields: []FieldSpec{
			{Name: "second", Selector: ".n", Index: 1},
			{Name: "inner", Selector: "p.d", Mode: ModeHTML},
			{Name: "outer", Selector: "p.d i", Mode: ModeOuter},
			{Name: "absent", Selector: ".n", Index: 5},
		},
	}
	rows, err := HTML([]byte(body), spec)
	require.NoError(t, err)
	require.True(t, rows.Next())
	row, err := rows.Row()
	require.NoError(t, err)
	assert.Equal(t, "2", row.Get("second"))
	assert.Equal(t, "Hi <i>there</i>", row.Get("inner"))
	assert.Equal(t, "<i>there</i>", row.Get("outer"))
	_, found := row.Lookup("absent")
	assert.True(t, found, "field is always present in the row")
	assert.Empty(t, row.Get("absent"))
}

func TestDocument(t *testing.T) {
	body := `<h1 id="topic-title">Interstellar</h1><span id="tor-size-humn">12.5 GB</span>`
	row, err := Document([]byte(body), []FieldSpec{
		{Name: "title", Selector: "#topic-title", Mandatory: true},
		{Name: "size", Selector: "#tor-size-humn"},
		{Name: "magnet", Selector: ".magnet-link-16", Attr: "href"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Interstellar", row.Get("title"))
	assert.Equal(t, "12.5 GB", row.Get("size"))
	assert.Empty(t, row.Get("magnet"))

	_, err = Document([]byte(`<p>gone</p>`), []FieldSpec{{Name: "title", Selector: "#topic-title", Mandatory: true}})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestJSON(t *testing.T) {
	body := `{"ok":1,"items":[{"id":"1","seeds":"4"},{"seeds":"2"}]}`
	rows, err := JSON([]byte(body), RowSpec{
		Selector: "items",
		Fields: []FieldSpec{
			{Name: "id", Selector: "id", Mandatory: true},
			{Name: "seeds", Selector: "seeds"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rows.Len())

	require.True(t, rows.Next())
	row, err := rows.Row()
	require.NoError(t, err)
	assert.Equal(t, "1", row.Get("id"))
	assert.Equal(t, `{"id":"1","seeds":"4"}`, row.Markup)

	require.True(t, rows.Next())
	_, err = rows.Row()
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = JSON([]byte(`{not json`), RowSpec{})
	assert.ErrorIs(t, err, ErrShape)

	_, err = JSON([]byte(`{"a":1}`), RowSpec{Container: "data"})
	assert.ErrorIs(t, err, ErrShape)
}

func TestListing_Format(t *testing.T) {
	fields := []FieldSpec{{Name: "id", Selector: "id", Mandatory: true}}

	rows, err := Listing([]byte(`[{"id":"7"}]`), RowSpec{Format: FormatJSON, Fields: fields})
	require.NoError(t, err)
	require.True(t, rows.Next())
	row, err := rows.Row()
	require.NoError(t, err)
	assert.Equal(t, "7", row.Get("id"))

	rows, err = Listing([]byte(`<ul><li><span class="id">9</span></li></ul>`), RowSpec{
		Selector: "li",
		Fields:   []FieldSpec{{Name: "id", Selector: ".id", Mandatory: true}},
	})
	require.NoError(t, err)
	require.True(t, rows.Next())
	row, err = rows.Row()
	require.NoError(t, err)
	assert.Equal(t, "9", row.Get("id"))

	_, err = Listing(nil, RowSpec{Format: "xml"})
	assert.ErrorContains(t, err, `unknown listing format "xml"`)
}

func TestJSONObject(t *testing.T) {
	row, err := JSONObject([]byte(`{"ok":1,"seeds":"7","peers":"3","dimensions":"1280 x 720"}`), []FieldSpec{
		{Name: "ok", Selector: "ok", Mandatory: true},
		{Name: "seeds", Selector: "seeds"},
		{Name: "dimensions", Selector: "dimensions"},
		{Name: "bitrate", Selector: "bitrate"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", row.Get("ok"))
	assert.Equal(t, "7", row.Get("seeds"))
	assert.Equal(t, "1280 x 720", row.Get("dimensions"))
	assert.Empty(t, row.Get("bitrate"))

	_, err = JSONObject([]byte(`<html>`), nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestRowWith(t *testing.T) {
	row := NewRow(3, Field{"id", "1"}, Field{"title", "a"})
	merged := row.With(Field{"title", "b"}, Field{"size", "1 GB"})

	assert.Equal(t, "a", row.Get("title"), "original untouched")
	assert.Equal(t, "b", merged.Get("title"))
	assert.Equal(t, "1 GB", merged.Get("size"))
	assert.Equal(t, 3, merged.Index)
	assert.Equal(t, []Field{{"id", "1"}, {"title", "b"}, {"size", "1 GB"}}, merged.Fields())
}

func TestLoadSpecs(t *testing.T) {
	data := []byte(`
listing:
  container: "#tor-tbl"
  selector: tr.tCenter
  fields:
    - name: id
      selector: .t-title .tLink
      attr: data-topic_id
      mandatory: true
    - name: title
      selector: .t-title .tLink
detail:
  fields:
    - name: body
      selector: .post_body
      mode: html
`)
	specs, err := LoadSpecs(data)
	require.NoError(t, err)
	require.NoError(t, specs.ValidateHTML())

	listing, err := specs.Get("listing")
	require.NoError(t, err)
	assert.Equal(t, "#tor-tbl", listing.Container)
	require.Len(t, listing.Fields, 2)
	assert.True(t, listing.Fields[0].Mandatory)
	assert.Equal(t, ModeAttr, listing.Fields[0].mode())
	assert.Equal(t, ModeText, listing.Fields[1].mode())

	_, err = specs.Get("nope")
	assert.ErrorIs(t, err, ErrNoSpec)

	override := Specs{"detail": RowSpec{Fields: []FieldSpec{{Name: "body", Selector: ".post"}}}}
	merged := specs.Merge(override)
	assert.Equal(t, ".post", merged["detail"].Fields[0].Selector)
	assert.Equal(t, "#tor-tbl", merged["listing"].Container)
	assert.Equal(t, ".post_body", specs["detail"].Fields[0].Selector, "merge does not mutate")
}

func TestValidateHTML(t *testing.T) {
	specs := Specs{"bad": RowSpec{
		Selector: "tr[",
		Fields:   []FieldSpec{{Name: "id", Mode: ModeAttr}},
	}}
	err := specs.ValidateHTML()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.selector")
	assert.Contains(t, err.Error(), "attr mode without attr")

	api := Specs{"api": RowSpec{Format: FormatJSON, Selector: "items.#(seeds>0)"}}
	assert.NoError(t, api.ValidateHTML())
	assert.ErrorContains(t, Specs{"x": RowSpec{Format: "xml"}}.ValidateHTML(), `unknown format "xml"`)

	_, err = LoadSpecs([]byte("listing: [unclosed"))
	assert.Error(t, err)
}
