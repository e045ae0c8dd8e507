package torznab

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Capabilities describes what a site adapter can answer.
type Capabilities struct {
	Title       string
	Search      bool
	TVSearch    bool
	MovieSearch bool
	Categories  []int // top-level categories served
	Limit       int
}

type capsDoc struct {
	XMLName    xml.Name      `xml:"caps"`
	Server     capsServer    `xml:"server"`
	Limits     capsLimits    `xml:"limits"`
	Searching  capsSearching `xml:"searching"`
	Categories []capsCat     `xml:"categories>category"`
}

type capsServer struct {
	Title string `xml:"title,attr"`
}

type capsLimits struct {
	Max     int `xml:"max,attr"`
	Default int `xml:"default,attr"`
}

type capsSearching struct {
	Search      capsMode `xml:"search"`
	TVSearch    capsMode `xml:"tv-search"`
	MovieSearch capsMode `xml:"movie-search"`
}

type capsMode struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type capsCat struct {
	ID      int       `xml:"id,attr"`
	Name    string    `xml:"name,attr"`
	Subcats []capsCat `xml:"subcat"`
}

func mode(ok bool, params ...string) capsMode {
	if !ok {
		return capsMode{Available: "no"}
	}
	return capsMode{Available: "yes", SupportedParams: strings.Join(params, ",")}
}

// WriteCaps renders the t=caps document.
func WriteCaps(w io.Writer, c Capabilities) error {
	limit := c.Limit
	if limit <= 0 {
		limit = 100
	}
	doc := capsDoc{
		Server: capsServer{Title: c.Title},
		Limits: capsLimits{Max: limit, Default: limit},
		Searching: capsSearching{
			Search:      mode(c.Search, "q"),
			TVSearch:    mode(c.TVSearch, "q", "season", "ep"),
			MovieSearch: mode(c.MovieSearch, "q"),
		},
	}
	for _, id := range c.Categories {
		parent, ok := Lookup(id)
		if !ok {
			continue
		}
		cat := capsCat{ID: parent.ID, Name: parent.Name}
		for _, sub := range Subcategories(parent.ID) {
			cat.Subcats = append(cat.Subcats, capsCat{ID: sub.ID, Name: sub.Name})
		}
		doc.Categories = append(doc.Categories, cat)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode caps: %w", err)
	}
	return enc.Flush()
}
