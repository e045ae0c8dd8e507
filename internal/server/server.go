// Package server exposes the site adapters as Torznab indexers over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vmunix/scrapearr/internal/indexer"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
	"github.com/vmunix/scrapearr/pkg/release"
	"github.com/vmunix/scrapearr/pkg/torznab"
)

// AllSites is the path segment that searches every configured site.
const AllSites = "all"

// Config holds server settings.
type Config struct {
	Addr   string
	APIKey string // empty disables the check
}

// Server answers Torznab requests.
type Server struct {
	cfg        Config
	dispatcher *indexer.Dispatcher
	targets    map[string]indexer.Target
	order      []string
	pool       *indexer.Pool
	log        *slog.Logger
}

// New creates a server over targets, which are searched through d.
func New(cfg Config, d *indexer.Dispatcher, targets []indexer.Target, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		targets:    make(map[string]indexer.Target, len(targets)),
		pool:       indexer.NewPool(d, targets, log),
		log:        log.With("component", "server"),
	}
	for _, t := range targets {
		name := t.Adapter.Site().Name
		s.targets[name] = t
		s.order = append(s.order, name)
	}
	return s
}

// Handler returns the router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/api/sites", s.requireAPIKey(s.listSites)).Methods(http.MethodGet)
	r.HandleFunc("/api/{site}", s.requireAPIKey(s.torznab)).Methods(http.MethodGet)
	return logRequests(r, s.log)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.cfg.Addr, "sites", len(s.order))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sites": s.order})
}

type siteInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Language      string `json:"language"`
	LoginRequired bool   `json:"login_required"`
	Authenticated bool   `json:"authenticated"`
	Categories    []int  `json:"categories"`
}

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	out := make([]siteInfo, 0, len(s.order))
	for _, name := range s.order {
		t := s.targets[name]
		site := t.Adapter.Site()
		out = append(out, siteInfo{
			Name:          site.Name,
			Description:   site.Description,
			Language:      site.Language,
			LoginRequired: site.Login.Required(),
			Authenticated: t.Session.Authenticated(),
			Categories:    site.Categories,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) torznab(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["site"]
	params := r.URL.Query()

	var sites []indexer.Site
	if name == AllSites {
		for _, n := range s.order {
			sites = append(sites, s.targets[n].Adapter.Site())
		}
	} else {
		t, ok := s.targets[name]
		if !ok {
			writeTorznabError(w, http.StatusNotFound, torznab.CodeBadParameter, fmt.Sprintf("%s: %q", indexer.ErrUnknownSite, name))
			return
		}
		sites = []indexer.Site{t.Adapter.Site()}
	}

	fn := params.Get("t")
	switch fn {
	case "caps":
		s.caps(w, name, sites)
	case "search", "tvsearch", "movie":
		q, err := queryFromParams(fn, params)
		if err != nil {
			writeTorznabError(w, http.StatusBadRequest, torznab.CodeBadParameter, err.Error())
			return
		}
		s.search(w, r, name, q, limitParam(params))
	case "":
		writeTorznabError(w, http.StatusBadRequest, torznab.CodeMissingParameter, "missing parameter: t")
	default:
		writeTorznabError(w, http.StatusBadRequest, torznab.CodeNoSuchFunction, fmt.Sprintf("no such function: %q", fn))
	}
}

func (s *Server) caps(w http.ResponseWriter, name string, sites []indexer.Site) {
	c := torznab.Capabilities{Title: "scrapearr " + name, Search: true}
	for _, site := range sites {
		c.TVSearch = c.TVSearch || site.TVSearch
		c.MovieSearch = c.MovieSearch || site.MovieSearch
		for _, id := range site.Categories {
			if parent := torznab.Parent(id); !slices.Contains(c.Categories, parent) {
				c.Categories = append(c.Categories, parent)
			}
		}
	}
	slices.Sort(c.Categories)

	var buf bytes.Buffer
	if err := torznab.WriteCaps(&buf, c); err != nil {
		s.log.Error("render caps", "site", name, "error", err)
		writeTorznabError(w, http.StatusInternalServerError, torznab.CodeUnknown, err.Error())
		return
	}
	writeXML(w, http.StatusOK, buf.Bytes())
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, name string, q indexer.Query, limit int) {
	var (
		records []release.Record
		channel torznab.Channel
	)
	if name == AllSites {
		res, err := s.pool.Search(r.Context(), q)
		if err != nil {
			s.fail(w, name, err)
			return
		}
		if len(res.Errors) > 0 && len(res.Results) == 0 {
			s.fail(w, name, firstError(res.Errors))
			return
		}
		records = res.Records
		channel = torznab.Channel{Title: "scrapearr", Description: "All configured sites"}
	} else {
		t := s.targets[name]
		res, err := s.dispatcher.Search(r.Context(), t.Adapter, t.Session, q)
		if err != nil {
			s.fail(w, name, err)
			return
		}
		records = res.Records
		site := t.Adapter.Site()
		channel = torznab.Channel{Title: site.Name, Description: site.Description, Link: t.Session.BaseURL()}
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	items := make([]torznab.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.TorznabItem())
	}

	var buf bytes.Buffer
	if err := torznab.WriteFeed(&buf, channel, items); err != nil {
		s.log.Error("render feed", "site", name, "error", err)
		writeTorznabError(w, http.StatusInternalServerError, torznab.CodeUnknown, err.Error())
		return
	}
	writeXML(w, http.StatusOK, buf.Bytes())
}

// fail maps a search error onto a Torznab error response.
func (s *Server) fail(w http.ResponseWriter, name string, err error) {
	s.log.Warn("search failed", "site", name, "error", err)
	switch {
	case errors.Is(err, session.ErrAuthenticationFailed), errors.Is(err, session.ErrChallengeRequired),
		errors.Is(err, session.ErrNoCredentials), errors.Is(err, indexer.ErrSessionExpired):
		writeTorznabError(w, http.StatusBadGateway, torznab.CodeBadCredentials, err.Error())
	case errors.Is(err, transport.ErrUnavailable):
		writeTorznabError(w, http.StatusBadGateway, torznab.CodeUnknown, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		writeTorznabError(w, http.StatusInternalServerError, torznab.CodeUnknown, err.Error())
	}
}

// queryFromParams builds a query from Torznab parameters. A trailing
// " S02E05" in q is honoured; explicit season and ep win over it.
func queryFromParams(fn string, params map[string][]string) (indexer.Query, error) {
	get := func(k string) string {
		if v := params[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	var cats []int
	if raw := get("cat"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return indexer.Query{}, fmt.Errorf("invalid cat %q", part)
			}
			cats = append(cats, id)
		}
	}
	if len(cats) == 0 {
		switch fn {
		case "tvsearch":
			cats = []int{torznab.TV.ID}
		case "movie":
			cats = []int{torznab.Movies.ID}
		}
	}

	q := indexer.ParseQuery(get("q"), cats)
	if fn != "tvsearch" {
		return q, nil
	}
	if raw := get("season"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return indexer.Query{}, fmt.Errorf("invalid season %q", raw)
		}
		q.Season = &n
	}
	if raw := get("ep"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return indexer.Query{}, fmt.Errorf("invalid ep %q", raw)
		}
		q.Episode = &n
	}
	return q, nil
}

func limitParam(params map[string][]string) int {
	v := params["limit"]
	if len(v) == 0 {
		return 0
	}
	n, err := strconv.Atoi(v[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func firstError(errs map[string]error) error {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	slices.Sort(names)
	return fmt.Errorf("%s: %w", names[0], errs[names[0]])
}

func writeXML(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeTorznabError(w http.ResponseWriter, code, torznabCode int, description string) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(code)
	_ = torznab.WriteError(w, torznabCode, description)
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
