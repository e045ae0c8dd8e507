package server

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/indexer"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
	"github.com/vmunix/scrapearr/pkg/release"
	"github.com/vmunix/scrapearr/pkg/torznab"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// itemAdapter reads "li.item" rows from GET list.
type itemAdapter struct {
	site indexer.Site
}

func (a *itemAdapter) Site() indexer.Site { return a.site }

func (a *itemAdapter) Listing(_ indexer.Mode, q indexer.Query, base string) transport.Request {
	req := transport.Get(base + "list")
	req.Form = map[string][]string{"q": {q.String()}}
	return req
}

func (a *itemAdapter) Rows(indexer.Mode) extract.RowSpec {
	return extract.RowSpec{
		Container: "#list",
		Selector:  "li.item",
		Fields:    []extract.FieldSpec{{Name: "id", Attr: "data-id", Mandatory: true}, {Name: "name"}},
	}
}

func (a *itemAdapter) Normalize(in indexer.Input) (indexer.Outcome, error) {
	id := in.Row.Get("id")
	return indexer.Outcome{Record: release.Record{
		Site:        a.site.Name,
		Title:       in.Row.Get("name"),
		Link:        in.BaseURL + "dl/" + id,
		Comments:    in.BaseURL + "item/" + id,
		Category:    torznab.TVHD.ID,
		Size:        1024,
		Seeders:     3,
		PublishDate: time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC),
	}}, nil
}

type upstream struct {
	server *httptest.Server
	n      int
	down   bool

	mu    sync.Mutex
	terms []string
}

func newUpstream(t *testing.T, n int, down bool) *upstream {
	u := &upstream{n: n, down: down}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u.down {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		u.mu.Lock()
		u.terms = append(u.terms, r.URL.Query().Get("q"))
		u.mu.Unlock()
		var b strings.Builder
		b.WriteString(`<html><body><ul id="list">`)
		for i := 1; i <= u.n; i++ {
			fmt.Fprintf(&b, `<li class="item" data-id="%d">Item %d</li>`, i, i)
		}
		b.WriteString(`</ul></body></html>`)
		_, _ = w.Write([]byte(b.String()))
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) lastTerm() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.terms) == 0 {
		return ""
	}
	return u.terms[len(u.terms)-1]
}

func target(name string, login session.LoginSpec, baseURL string, doer transport.Doer) indexer.Target {
	site := indexer.Site{
		Name:        name,
		Description: name + " tracker",
		Login:       login,
		Categories:  []int{torznab.TVHD.ID, torznab.TVSD.ID},
		TVSearch:    true,
	}
	sess := session.New(name, baseURL, login, session.Settings{URL: baseURL}, doer, testLogger())
	return indexer.Target{Adapter: &itemAdapter{site: site}, Session: sess}
}

func newTestServer(t *testing.T, cfg Config, targets ...indexer.Target) *httptest.Server {
	t.Helper()
	doer := transport.NewClient(transport.Options{Attempts: 1, RetryDelay: time.Millisecond}, testLogger())
	d := indexer.NewDispatcher(doer, testLogger())
	srv := httptest.NewServer(New(cfg, d, targets, testLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func testDoer() transport.Doer {
	return transport.NewClient(transport.Options{Attempts: 1, RetryDelay: time.Millisecond}, testLogger())
}

func get(t *testing.T, rawURL string) (int, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

type feedDoc struct {
	Title string `xml:"channel>title"`
	Items []struct {
		Title string `xml:"title"`
		Link  string `xml:"link"`
		GUID  string `xml:"guid"`
	} `xml:"channel>item"`
}

type errorDoc struct {
	Code        int    `xml:"code,attr"`
	Description string `xml:"description,attr"`
}

func decodeError(t *testing.T, body string) errorDoc {
	t.Helper()
	var doc errorDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc), body)
	return doc
}

func TestHealth(t *testing.T) {
	up := newUpstream(t, 1, false)
	srv := newTestServer(t, Config{}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	code, body := get(t, srv.URL+"/healthz")
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Status string   `json:"status"`
		Sites  []string `json:"sites"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, []string{"alpha"}, out.Sites)
}

func TestListSites(t *testing.T) {
	up := newUpstream(t, 1, false)
	login := session.LoginSpec{Path: "login.php", UsernameField: "u", PasswordField: "p", Marker: "logout"}
	srv := newTestServer(t, Config{},
		target("alpha", session.LoginSpec{}, up.server.URL, testDoer()),
		target("beta", login, up.server.URL, testDoer()),
	)

	code, body := get(t, srv.URL+"/api/sites")
	require.Equal(t, http.StatusOK, code)

	var out []siteInfo
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "alpha", out[0].Name)
	assert.True(t, out[0].Authenticated, "no login needed")
	assert.True(t, out[1].LoginRequired)
	assert.False(t, out[1].Authenticated)
}

func TestCaps(t *testing.T) {
	up := newUpstream(t, 1, false)
	srv := newTestServer(t, Config{}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	code, body := get(t, srv.URL+"/api/alpha?t=caps")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `<server title="scrapearr alpha">`)
	assert.Contains(t, body, `available="yes" supportedParams="q,season,ep"`)
	assert.Contains(t, body, `<movie-search available="no"`)
	assert.Contains(t, body, `<category id="5000" name="TV">`)
	assert.NotContains(t, body, `id="2000"`)
	assert.Equal(t, 1, strings.Count(body, `<category id="5000"`), "parents are listed once")
}

func TestSearch(t *testing.T) {
	up := newUpstream(t, 3, false)
	srv := newTestServer(t, Config{}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	code, body := get(t, srv.URL+"/api/alpha?t=search&q=Dark")
	require.Equal(t, http.StatusOK, code, body)

	var doc feedDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc))
	assert.Equal(t, "alpha", doc.Title)
	require.Len(t, doc.Items, 3)
	assert.Equal(t, "Item 1", doc.Items[0].Title)
	assert.Equal(t, up.server.URL+"/dl/1", doc.Items[0].Link)
	assert.Equal(t, up.server.URL+"/item/1", doc.Items[0].GUID)
	assert.Equal(t, "Dark", up.lastTerm())
}

func TestSearch_Limit(t *testing.T) {
	up := newUpstream(t, 5, false)
	srv := newTestServer(t, Config{}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	_, body := get(t, srv.URL+"/api/alpha?t=search&limit=2")
	var doc feedDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc))
	assert.Len(t, doc.Items, 2)
}

func TestTVSearch_SeasonParams(t *testing.T) {
	up := newUpstream(t, 1, false)
	srv := newTestServer(t, Config{}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	code, _ := get(t, srv.URL+"/api/alpha?t=tvsearch&q=Dark&season=2&ep=5")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Dark S02E05", up.lastTerm())
}

func TestMovieSearch_FiltersTV(t *testing.T) {
	up := newUpstream(t, 3, false)
	srv := newTestServer(t, Config{}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	code, body := get(t, srv.URL+"/api/alpha?t=movie&q=Dark")
	require.Equal(t, http.StatusOK, code)
	var doc feedDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc))
	assert.Empty(t, doc.Items, "TV records do not answer a movie search")
}

func TestAllSites_OneDown(t *testing.T) {
	good := newUpstream(t, 2, false)
	bad := newUpstream(t, 2, true)
	srv := newTestServer(t, Config{},
		target("alpha", session.LoginSpec{}, good.server.URL, testDoer()),
		target("beta", session.LoginSpec{}, bad.server.URL, testDoer()),
	)

	code, body := get(t, srv.URL+"/api/all?t=search&q=Dark")
	require.Equal(t, http.StatusOK, code, body)
	var doc feedDoc
	require.NoError(t, xml.Unmarshal([]byte(body), &doc))
	assert.Len(t, doc.Items, 2)
}

func TestAllSites_AllDown(t *testing.T) {
	bad := newUpstream(t, 2, true)
	srv := newTestServer(t, Config{}, target("beta", session.LoginSpec{}, bad.server.URL, testDoer()))

	code, body := get(t, srv.URL+"/api/all?t=search")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, torznab.CodeUnknown, decodeError(t, body).Code)
}

func TestSearch_NoCredentials(t *testing.T) {
	up := newUpstream(t, 1, false)
	login := session.LoginSpec{Path: "login.php", UsernameField: "u", PasswordField: "p", Marker: "logout"}
	srv := newTestServer(t, Config{}, target("beta", login, up.server.URL, testDoer()))

	code, body := get(t, srv.URL+"/api/beta?t=search&q=x")
	assert.Equal(t, http.StatusBadGateway, code)
	doc := decodeError(t, body)
	assert.Equal(t, torznab.CodeBadCredentials, doc.Code)
	assert.Contains(t, doc.Description, "no credentials configured")
}

func TestTorznabErrors(t *testing.T) {
	up := newUpstream(t, 1, false)
	srv := newTestServer(t, Config{}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	tests := []struct {
		name   string
		path   string
		status int
		code   int
	}{
		{"unknown site", "/api/nowhere?t=caps", http.StatusNotFound, torznab.CodeBadParameter},
		{"missing function", "/api/alpha", http.StatusBadRequest, torznab.CodeMissingParameter},
		{"unknown function", "/api/alpha?t=music", http.StatusBadRequest, torznab.CodeNoSuchFunction},
		{"bad category", "/api/alpha?t=search&cat=tv", http.StatusBadRequest, torznab.CodeBadParameter},
		{"bad season", "/api/alpha?t=tvsearch&season=two", http.StatusBadRequest, torznab.CodeBadParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, srv.URL+tt.path)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.code, decodeError(t, body).Code)
		})
	}
}

func TestAPIKey(t *testing.T) {
	up := newUpstream(t, 1, false)
	srv := newTestServer(t, Config{APIKey: "sekrit"}, target("alpha", session.LoginSpec{}, up.server.URL, testDoer()))

	code, body := get(t, srv.URL+"/api/alpha?t=caps")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, torznab.CodeBadCredentials, decodeError(t, body).Code)

	code, _ = get(t, srv.URL+"/api/alpha?t=caps&apikey=wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, srv.URL+"/api/alpha?t=caps&apikey=sekrit")
	assert.Equal(t, http.StatusOK, code)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/alpha?t=caps", nil)
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", "sekrit")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	code, _ = get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code, "health needs no key")
}

func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := logRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}), log)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alpha?t=caps", nil))

	out := buf.String()
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "path=/api/alpha")
	assert.Contains(t, out, "t=caps")
}

func TestQueryFromParams(t *testing.T) {
	q, err := queryFromParams("search", map[string][]string{"q": {"Dark S02E05"}})
	require.NoError(t, err)
	assert.Equal(t, "Dark", q.Term)
	assert.Equal(t, 2, q.SeasonNumber())
	assert.Equal(t, 5, q.EpisodeNumber())
	assert.Empty(t, q.Categories)

	q, err = queryFromParams("tvsearch", map[string][]string{"q": {"Dark S01"}, "season": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, q.SeasonNumber(), "explicit season wins")
	assert.Nil(t, q.Episode)
	assert.Equal(t, []int{torznab.TV.ID}, q.Categories)

	q, err = queryFromParams("movie", map[string][]string{"q": {"Interstellar"}, "cat": {"2040, 2050"}})
	require.NoError(t, err)
	assert.Equal(t, []int{2040, 2050}, q.Categories)

	q, err = queryFromParams("search", map[string][]string{"season": {"2"}})
	require.NoError(t, err)
	assert.Nil(t, q.Season, "season is a tvsearch parameter")
	assert.Equal(t, indexer.ModeNewest, q.Mode())
}
