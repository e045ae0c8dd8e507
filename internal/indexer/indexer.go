// Package indexer dispatches queries to site adapters: it picks the listing
// mode, keeps the session logged in, extracts rows, traverses detail pages
// within bounds and normalizes every row into a release record.
package indexer

import (
	"context"
	"time"

	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
	"github.com/vmunix/scrapearr/pkg/release"
)

// Mode is the kind of listing requested from a site.
type Mode int

const (
	ModeNewest Mode = iota // no search term: the site's newest releases
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeNewest {
		return "newest"
	}
	return "search"
}

// Site holds the constants of one tracker.
type Site struct {
	Name            string
	Description     string
	DefaultURL      string
	Language        string
	MinimumRatio    float64
	MinimumSeedTime time.Duration
	// MaxItems bounds detail traversal per query; 0 means no detail pages.
	MaxItems int
	// Concurrency is the number of detail fetches in flight, default 1.
	Concurrency int
	Login       session.LoginSpec
	Categories  []int
	TVSearch    bool
	MovieSearch bool
}

// Input is one row handed to an adapter for normalization. Detail fields,
// when fetched, are already merged into Row.
type Input struct {
	Row      extract.Row
	Query    Query
	Mode     Mode
	BaseURL  string
	Settings session.Settings
}

// Outcome is the normalization of one row. A non-empty Skip drops the row
// on purpose.
type Outcome struct {
	Record   release.Record
	Skip     string
	Warnings []release.Degraded
}

// Warn records a degraded field.
func (o *Outcome) Warn(field, input string) {
	o.Warnings = append(o.Warnings, release.Degraded{Field: field, Input: input})
}

// Adapter is the per-site part of a query: where to ask, what rows look like
// and how to normalize them.
type Adapter interface {
	Site() Site
	Listing(mode Mode, q Query, base string) transport.Request
	Rows(mode Mode) extract.RowSpec
	Normalize(in Input) (Outcome, error)
}

// Format is the body format of a detail response.
type Format int

const (
	FormatHTML Format = iota
	FormatJSON
)

// DetailSpec is an extra request made for one row and the fields read from
// its response.
type DetailSpec struct {
	Request transport.Request
	Fields  []extract.FieldSpec
	Format  Format
}

func (d DetailSpec) extract(body []byte) (extract.Row, error) {
	if d.Format == FormatJSON {
		return extract.JSONObject(body, d.Fields)
	}
	return extract.Document(body, d.Fields)
}

// Detailer is implemented by adapters that fetch a page per row.
type Detailer interface {
	Detail(row extract.Row, base string) (DetailSpec, bool)
}

// Page is one listing body and the spec its rows follow.
type Page struct {
	Body []byte
	Spec extract.RowSpec
}

// Fetcher performs a session-aware request.
type Fetcher func(ctx context.Context, req transport.Request) (*transport.Response, error)

// Walker is implemented by adapters whose listing spans several pages. Walk
// returning nil pages and nil error falls back to the single Listing request.
type Walker interface {
	Walk(ctx context.Context, fetch Fetcher, mode Mode, q Query, base string) ([]Page, error)
}

// RowFilter is implemented by adapters that drop rows before detail
// traversal.
type RowFilter interface {
	Keep(row extract.Row, q Query) (bool, string)
}

// Cache stores detail bodies between queries.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}
