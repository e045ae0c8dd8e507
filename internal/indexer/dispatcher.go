package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
	"github.com/vmunix/scrapearr/pkg/release"
)

const maxLoggedMarkup = 2048

// Limits overrides an adapter's detail traversal bounds.
type Limits struct {
	MaxItems    int
	Concurrency int
}

// Result is everything one query produced. Rows has an entry for every
// extracted row, in listing order.
type Result struct {
	Site    string
	Mode    Mode
	Records []release.Record
	Rows    []RowResult
}

// RowResult is a record or the reason its row was dropped.
type RowResult struct {
	Index    int
	Record   *release.Record
	Skip     *Skip
	Warnings []release.Degraded
}

// Skip explains a dropped row.
type Skip struct {
	Index  int
	Reason string
	Err    error
}

func (s Skip) Error() string {
	if s.Err == nil {
		return fmt.Sprintf("row %d: %s", s.Index, s.Reason)
	}
	return fmt.Sprintf("row %d: %s: %v", s.Index, s.Reason, s.Err)
}

// Skipped returns the dropped rows.
func (r *Result) Skipped() []Skip {
	var skips []Skip
	for _, row := range r.Rows {
		if row.Skip != nil {
			skips = append(skips, *row.Skip)
		}
	}
	return skips
}

// Dispatcher runs queries against adapters.
type Dispatcher struct {
	doer   transport.Doer
	cache  Cache
	limits map[string]Limits
	log    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCache caches detail bodies.
func WithCache(c Cache) Option {
	return func(d *Dispatcher) { d.cache = c }
}

// WithLimits overrides the traversal bounds of one site.
func WithLimits(site string, l Limits) Option {
	return func(d *Dispatcher) { d.limits[site] = l }
}

// NewDispatcher creates a dispatcher that sends requests through doer.
func NewDispatcher(doer transport.Doer, log *slog.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		doer:   doer,
		limits: make(map[string]Limits),
		log:    log.With("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Search runs q against one site. Listing fetch and login failures are
// returned; everything that goes wrong with a single row is recorded in the
// result and logged.
func (d *Dispatcher) Search(ctx context.Context, a Adapter, sess *session.Session, q Query) (*Result, error) {
	site := a.Site()
	mode := q.Mode()
	log := d.log.With("site", site.Name, "mode", mode.String())
	start := time.Now()
	result := &Result{Site: site.Name, Mode: mode}

	base := sess.BaseURL()
	fetch := d.fetcher(sess, log)

	var pages []Page
	if w, ok := a.(Walker); ok {
		var err error
		pages, err = w.Walk(ctx, fetch, mode, q, base)
		if err != nil {
			return nil, fmt.Errorf("%s: walk listing: %w", site.Name, err)
		}
	}
	if pages == nil {
		resp, err := fetch(ctx, a.Listing(mode, q, base))
		if err != nil {
			return nil, fmt.Errorf("%s: fetch listing: %w", site.Name, err)
		}
		pages = []Page{{Body: resp.Body, Spec: a.Rows(mode)}}
	}

	var inputs []Input
	for _, page := range pages {
		rows, err := extract.Listing(page.Body, page.Spec)
		if errors.Is(err, extract.ErrShape) {
			log.Error("listing has unexpected shape", "error", err, "body", truncate(string(page.Body)))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: extract listing: %w", site.Name, err)
		}
		for rows.Next() {
			row, err := rows.Row()
			row.Index = len(result.Rows)
			if err != nil {
				result.Rows = append(result.Rows, d.skip(log, row, SkipExtraction, err))
				continue
			}
			if f, ok := a.(RowFilter); ok {
				if keep, reason := f.Keep(row, q); !keep {
					result.Rows = append(result.Rows, d.skip(log, row, SkipFiltered, errors.New(reason)))
					continue
				}
			}
			result.Rows = append(result.Rows, RowResult{Index: row.Index})
			inputs = append(inputs, Input{Row: row, Query: q, Mode: mode, BaseURL: base, Settings: sess.Settings()})
		}
	}

	limits := d.limitsFor(site)
	if _, traverses := a.(Detailer); traverses && limits.MaxItems > 0 && len(inputs) > limits.MaxItems {
		log.Debug("detail traversal bounded", "rows", len(inputs), "max_items", limits.MaxItems)
		for _, in := range inputs[limits.MaxItems:] {
			result.Rows[in.Row.Index] = RowResult{Index: in.Row.Index, Skip: &Skip{Index: in.Row.Index, Reason: SkipFiltered, Err: errors.New("beyond max items")}}
		}
		inputs = inputs[:limits.MaxItems]
	}

	processed := make([]RowResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limits.Concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			processed[i] = d.process(gctx, a, sess, in, log)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, rr := range processed {
		result.Rows[rr.Index] = rr
	}
	for _, rr := range result.Rows {
		if rr.Record != nil {
			result.Records = append(result.Records, *rr.Record)
		}
	}

	log.Info("search complete", "query", q.String(), "rows", len(result.Rows), "records", len(result.Records),
		"skipped", len(result.Rows)-len(result.Records), "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (d *Dispatcher) process(ctx context.Context, a Adapter, sess *session.Session, in Input, log *slog.Logger) RowResult {
	site := a.Site()
	if det, ok := a.(Detailer); ok {
		if spec, ok := det.Detail(in.Row, in.BaseURL); ok {
			body, err := d.detail(ctx, site.Name, sess.Jar(), spec.Request)
			if err != nil {
				return d.skip(log, in.Row, SkipDetail, err)
			}
			extra, err := spec.extract(body)
			if err != nil {
				return d.skip(log, in.Row, SkipDetail, err)
			}
			in.Row = in.Row.With(extra.Fields()...)
		}
	}

	out, err := a.Normalize(in)
	if err != nil {
		return d.skip(log, in.Row, SkipNormalize, err)
	}
	if out.Skip != "" {
		return d.skip(log, in.Row, SkipFiltered, errors.New(out.Skip))
	}

	rec := out.Record
	rec.Site = site.Name
	if rec.MinimumRatio == 0 {
		rec.MinimumRatio = site.MinimumRatio
	}
	if rec.MinimumSeedTime == 0 {
		rec.MinimumSeedTime = site.MinimumSeedTime
	}
	rec, err = rec.Finalize()
	if err != nil {
		return d.skip(log, in.Row, SkipInvalid, err)
	}
	if !in.Query.wantsCategory(rec.Category) {
		return d.skip(log, in.Row, SkipCategory, fmt.Errorf("category %d not requested", rec.Category))
	}
	for _, w := range out.Warnings {
		log.Debug("field degraded", "row", in.Row.Index, "warning", w.String())
	}
	return RowResult{Index: in.Row.Index, Record: &rec, Warnings: out.Warnings}
}

// fetcher returns the session-aware fetch used for listings: it logs in when
// needed and, when the logged-in marker is gone, logs in again and retries
// once.
func (d *Dispatcher) fetcher(sess *session.Session, log *slog.Logger) Fetcher {
	return func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		if err := sess.Ready(ctx); err != nil {
			return nil, err
		}
		resp, err := d.doer.Do(ctx, sess.Jar(), req)
		if err != nil {
			return nil, err
		}
		if sess.IsStillAuthenticated(resp.Body) {
			return resp, nil
		}

		log.Info("logged-in marker missing, logging in again", "url", req.URL)
		sess.Invalidate()
		if err := sess.Reauthenticate(ctx); err != nil {
			return nil, fmt.Errorf("re-authenticate: %w", err)
		}
		resp, err = d.doer.Do(ctx, sess.Jar(), req)
		if err != nil {
			return nil, err
		}
		if !sess.IsStillAuthenticated(resp.Body) {
			sess.Invalidate()
			return nil, ErrSessionExpired
		}
		return resp, nil
	}
}

func (d *Dispatcher) detail(ctx context.Context, site string, jar http.CookieJar, req transport.Request) ([]byte, error) {
	key := cacheKey(site, req)
	if d.cache != nil {
		body, ok, err := d.cache.Get(ctx, key)
		if err != nil {
			d.log.Warn("detail cache read failed", "site", site, "error", err)
		} else if ok {
			return body, nil
		}
	}

	resp, err := d.doer.Do(ctx, jar, req)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		if err := d.cache.Set(ctx, key, resp.Body); err != nil {
			d.log.Warn("detail cache write failed", "site", site, "error", err)
		}
	}
	return resp.Body, nil
}

func (d *Dispatcher) skip(log *slog.Logger, row extract.Row, reason string, err error) RowResult {
	level := slog.LevelWarn
	if reason == SkipFiltered || reason == SkipCategory {
		level = slog.LevelDebug
	}
	log.Log(context.Background(), level, "row skipped", "row", row.Index, "reason", reason, "error", err,
		"markup", truncate(row.Markup))
	return RowResult{Index: row.Index, Skip: &Skip{Index: row.Index, Reason: reason, Err: err}}
}

func (d *Dispatcher) limitsFor(site Site) Limits {
	l := Limits{MaxItems: site.MaxItems, Concurrency: site.Concurrency}
	if o, ok := d.limits[site.Name]; ok {
		if o.MaxItems > 0 {
			l.MaxItems = o.MaxItems
		}
		if o.Concurrency > 0 {
			l.Concurrency = o.Concurrency
		}
	}
	if l.Concurrency <= 0 {
		l.Concurrency = 1
	}
	return l
}

func cacheKey(site string, req transport.Request) string {
	key := site + " " + req.Method + " " + req.URL
	if len(req.Form) > 0 {
		key += " " + req.Form.Encode()
	}
	return key
}

func truncate(s string) string {
	if len(s) <= maxLoggedMarkup {
		return s
	}
	cut := maxLoggedMarkup
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
