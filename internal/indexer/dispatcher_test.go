package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
	"github.com/vmunix/scrapearr/internal/transport/mocks"
	"github.com/vmunix/scrapearr/pkg/release"
	"github.com/vmunix/scrapearr/pkg/torznab"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDoer() transport.Doer {
	return transport.NewClient(transport.Options{Attempts: 1, RetryDelay: time.Millisecond}, testLogger())
}

// listAdapter reads "li.item" rows from GET list and, with detail set, an
// h1 title from GET item/<id>.
type listAdapter struct {
	site   Site
	detail bool
	filter func(extract.Row) bool
}

func (a *listAdapter) Site() Site { return a.site }

func (a *listAdapter) Listing(_ Mode, q Query, base string) transport.Request {
	req := transport.Get(base + "list")
	if q.Term != "" {
		req.Form = map[string][]string{"q": {q.Term}}
	}
	return req
}

func (a *listAdapter) Rows(Mode) extract.RowSpec {
	return extract.RowSpec{
		Container: "#list",
		Selector:  "li.item",
		Fields: []extract.FieldSpec{
			{Name: "id", Attr: "data-id", Mandatory: true},
			{Name: "name"},
		},
	}
}

func (a *listAdapter) Normalize(in Input) (Outcome, error) {
	id := in.Row.Get("id")
	if id == "bad" {
		return Outcome{}, errors.New("cannot normalize")
	}
	title := in.Row.Get("name")
	if t, ok := in.Row.Lookup("title"); ok {
		title = t
	}
	return Outcome{Record: release.Record{
		Title:    title,
		Link:     in.BaseURL + "dl/" + id,
		Category: torznab.TVHD.ID,
	}}, nil
}

type detailAdapter struct{ *listAdapter }

func (a detailAdapter) Detail(row extract.Row, base string) (DetailSpec, bool) {
	return DetailSpec{
		Request: transport.Get(base + "item/" + row.Get("id")),
		Fields:  []extract.FieldSpec{{Name: "title", Selector: "h1", Mandatory: true}},
	}, true
}

type filterAdapter struct{ *listAdapter }

func (a filterAdapter) Keep(row extract.Row, _ Query) (bool, string) {
	if a.filter(row) {
		return true, ""
	}
	return false, "filtered by test"
}

// fakeSite serves a listing of n items; item pages listed in broken answer
// 404.
type fakeSite struct {
	server  *httptest.Server
	n       int
	broken  map[string]bool
	listing func() string
	details atomic.Int32
}

func newFakeSite(t *testing.T, n int, broken ...string) *fakeSite {
	f := &fakeSite{n: n, broken: map[string]bool{}}
	for _, id := range broken {
		f.broken[id] = true
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		if f.listing != nil {
			_, _ = w.Write([]byte(f.listing()))
			return
		}
		var b strings.Builder
		b.WriteString(`<html><body><ul id="list">`)
		for i := 1; i <= f.n; i++ {
			fmt.Fprintf(&b, `<li class="item" data-id="%d">Item %d</li>`, i, i)
		}
		b.WriteString(`</ul></body></html>`)
		_, _ = w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		f.details.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/item/")
		if f.broken[id] {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><body><h1>Detail %s</h1></body></html>`, id)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSite) session(doer transport.Doer) *session.Session {
	return session.New("fake", f.server.URL, session.LoginSpec{}, session.Settings{URL: f.server.URL}, doer, testLogger())
}

func titles(records []release.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestSearch_ListingOnly(t *testing.T) {
	f := newFakeSite(t, 3)
	doer := testDoer()
	a := &listAdapter{site: Site{Name: "fake", MinimumRatio: 1, MinimumSeedTime: time.Hour}}

	res, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, f.session(doer), ParseQuery("item", nil))
	require.NoError(t, err)

	assert.Equal(t, ModeSearch, res.Mode)
	assert.Equal(t, []string{"Item 1", "Item 2", "Item 3"}, titles(res.Records))
	rec := res.Records[0]
	assert.Equal(t, "fake", rec.Site)
	assert.Equal(t, 1.0, rec.MinimumRatio)
	assert.Equal(t, time.Hour, rec.MinimumSeedTime)
	assert.Equal(t, f.server.URL+"/dl/1", rec.GUID)
	assert.Equal(t, release.UnknownDate, rec.PublishDate)
	assert.Zero(t, f.details.Load())
}

func TestSearch_ZeroRowsIsNotMalformed(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	doer := testDoer()
	a := &listAdapter{site: Site{Name: "fake"}}

	empty := newFakeSite(t, 0)
	res, err := NewDispatcher(doer, log).Search(context.Background(), a, empty.session(doer), ParseQuery("none", nil))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.NotContains(t, logs.String(), "unexpected shape")

	broken := newFakeSite(t, 0)
	broken.listing = func() string { return `<html><body><div class="maintenance">back soon</div></body></html>` }
	res, err = NewDispatcher(doer, log).Search(context.Background(), a, broken.session(doer), ParseQuery("none", nil))
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Contains(t, logs.String(), "unexpected shape")
	assert.Contains(t, logs.String(), "back soon", "offending body is logged")
}

func TestSearch_OneDetailFailureIsIsolated(t *testing.T) {
	f := newFakeSite(t, 5, "3")
	doer := testDoer()
	a := detailAdapter{&listAdapter{site: Site{Name: "fake", MaxItems: 10}}}

	res, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, f.session(doer), ParseQuery("item", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"Detail 1", "Detail 2", "Detail 4", "Detail 5"}, titles(res.Records))
	skips := res.Skipped()
	require.Len(t, skips, 1)
	assert.Equal(t, 2, skips[0].Index)
	assert.Equal(t, SkipDetail, skips[0].Reason)
	assert.ErrorIs(t, skips[0].Err, transport.ErrUnavailable)
	assert.Contains(t, skips[0].Error(), "row 2: detail")
}

func TestSearch_NewestModeIsBounded(t *testing.T) {
	f := newFakeSite(t, 15)
	doer := testDoer()
	a := detailAdapter{&listAdapter{site: Site{Name: "fake", MaxItems: 10}}}

	res, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, f.session(doer), Query{})
	require.NoError(t, err)

	assert.Equal(t, ModeNewest, res.Mode)
	assert.Len(t, res.Records, 10)
	assert.Len(t, res.Rows, 15)
	assert.Len(t, res.Skipped(), 5)
	assert.Equal(t, int32(10), f.details.Load())
}

func TestSearch_LimitsOverride(t *testing.T) {
	f := newFakeSite(t, 12)
	doer := testDoer()
	a := detailAdapter{&listAdapter{site: Site{Name: "fake", MaxItems: 10}}}
	d := NewDispatcher(doer, testLogger(), WithLimits("fake", Limits{MaxItems: 3, Concurrency: 4}))

	res, err := d.Search(context.Background(), a, f.session(doer), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Detail 1", "Detail 2", "Detail 3"}, titles(res.Records))
}

func TestSearch_ConcurrentDetailsKeepOrder(t *testing.T) {
	f := newFakeSite(t, 8, "5")
	doer := testDoer()
	a := detailAdapter{&listAdapter{site: Site{Name: "fake", MaxItems: 10, Concurrency: 4}}}

	res, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, f.session(doer), ParseQuery("x", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Detail 1", "Detail 2", "Detail 3", "Detail 4", "Detail 6", "Detail 7", "Detail 8"}, titles(res.Records))
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = body
	return nil
}

func TestSearch_DetailCache(t *testing.T) {
	f := newFakeSite(t, 4)
	doer := testDoer()
	a := detailAdapter{&listAdapter{site: Site{Name: "fake", MaxItems: 10}}}
	d := NewDispatcher(doer, testLogger(), WithCache(&memoryCache{data: map[string][]byte{}}))

	for range 2 {
		res, err := d.Search(context.Background(), a, f.session(doer), ParseQuery("x", nil))
		require.NoError(t, err)
		assert.Len(t, res.Records, 4)
	}
	assert.Equal(t, int32(4), f.details.Load())
}

func TestSearch_RowSkips(t *testing.T) {
	f := newFakeSite(t, 0)
	f.listing = func() string {
		return `<ul id="list">
			<li class="item" data-id="1">kept</li>
			<li class="item">no id</li>
			<li class="item" data-id="bad">bad</li>
			<li class="item" data-id="4">dropped</li>
		</ul>`
	}
	doer := testDoer()
	a := filterAdapter{&listAdapter{site: Site{Name: "fake"}, filter: func(r extract.Row) bool { return r.Get("id") != "4" }}}

	res, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, f.session(doer), ParseQuery("x", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"kept"}, titles(res.Records))
	reasons := map[int]string{}
	for _, s := range res.Skipped() {
		reasons[s.Index] = s.Reason
	}
	assert.Equal(t, map[int]string{1: SkipExtraction, 2: SkipNormalize, 3: SkipFiltered}, reasons)

	var rowErr *extract.RowError
	assert.True(t, errors.As(res.Rows[1].Skip.Err, &rowErr))
}

func TestSearch_CategoryFilter(t *testing.T) {
	f := newFakeSite(t, 2)
	doer := testDoer()
	a := &listAdapter{site: Site{Name: "fake"}}
	d := NewDispatcher(doer, testLogger())

	res, err := d.Search(context.Background(), a, f.session(doer), ParseQuery("x", []int{torznab.Movies.ID}))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, SkipCategory, res.Skipped()[0].Reason)

	res, err = d.Search(context.Background(), a, f.session(doer), ParseQuery("x", []int{torznab.TV.ID}))
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestSearch_ListingUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: GET http://x/list: connection refused", transport.ErrUnavailable))

	a := &listAdapter{site: Site{Name: "fake"}}
	sess := session.New("fake", "http://x/", session.LoginSpec{}, session.Settings{}, doer, testLogger())

	_, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, sess, ParseQuery("x", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnavailable)
	assert.Contains(t, err.Error(), "fake: fetch listing")
}

func TestSearch_CanceledContext(t *testing.T) {
	f := newFakeSite(t, 3)
	doer := testDoer()
	a := detailAdapter{&listAdapter{site: Site{Name: "fake", MaxItems: 10}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDispatcher(doer, testLogger()).Search(ctx, a, f.session(doer), ParseQuery("x", nil))
	assert.Error(t, err)
}

// loginSite expires the first session it hands out; with expireAll every
// session looks logged out.
type loginSite struct {
	server    *httptest.Server
	logins    atomic.Int32
	expireAll bool
}

func newLoginSite(t *testing.T, expireAll bool) *loginSite {
	s := &loginSite{expireAll: expireAll}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		n := s.logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: strconv.Itoa(int(n)), Path: "/"})
		_, _ = w.Write([]byte(`<html><body><span class="logged-in">me</span></body></html>`))
	})
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value == "1" || s.expireAll {
			_, _ = w.Write([]byte(`<html><body><form action="login"></form></body></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html><body><span class="logged-in">me</span><ul id="list"><li class="item" data-id="1">Item 1</li></ul></body></html>`))
	})
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *loginSite) session(doer transport.Doer) *session.Session {
	login := session.LoginSpec{Path: "login", UsernameField: "u", PasswordField: "p", Marker: `class="logged-in"`}
	return session.New("fake", s.server.URL, login, session.Settings{URL: s.server.URL, Username: "me", Password: "pw"}, doer, testLogger())
}

func TestSearch_ReauthenticatesOnceWhenMarkerDisappears(t *testing.T) {
	site := newLoginSite(t, false)
	doer := testDoer()
	a := &listAdapter{site: Site{Name: "fake"}}
	sess := site.session(doer)

	res, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, sess, ParseQuery("x", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Item 1"}, titles(res.Records))
	assert.Equal(t, int32(2), site.logins.Load())
	assert.True(t, sess.Authenticated())
}

func TestSearch_SessionExpiredAfterRetry(t *testing.T) {
	site := newLoginSite(t, true)
	doer := testDoer()
	a := &listAdapter{site: Site{Name: "fake"}}
	sess := site.session(doer)

	_, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, sess, ParseQuery("x", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(2), site.logins.Load())
	assert.False(t, sess.Authenticated())
}

// jsonAdapter reads the same listing as listAdapter from a JSON body.
type jsonAdapter struct{ *listAdapter }

func (a jsonAdapter) Rows(Mode) extract.RowSpec {
	return extract.RowSpec{
		Format:    extract.FormatJSON,
		Container: "result",
		Selector:  "items",
		Fields: []extract.FieldSpec{
			{Name: "id", Selector: "id", Mandatory: true},
			{Name: "name", Selector: "name"},
		},
	}
}

func TestSearch_JSONListing(t *testing.T) {
	f := newFakeSite(t, 0)
	f.listing = func() string {
		return `{"result":{"items":[{"id":"1","name":"Item 1"},{"name":"no id"},{"id":"2","name":"Item 2"}]}}`
	}
	doer := testDoer()
	a := jsonAdapter{&listAdapter{site: Site{Name: "fake"}}}

	res, err := NewDispatcher(doer, testLogger()).Search(context.Background(), a, f.session(doer), ParseQuery("item", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Item 1", "Item 2"}, titles(res.Records))
	skips := res.Skipped()
	require.Len(t, skips, 1)
	assert.Equal(t, SkipExtraction, skips[0].Reason)
	assert.ErrorIs(t, skips[0].Err, extract.ErrMissingField)
}

func TestTruncate(t *testing.T) {
	short := "короткий"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("я", maxLoggedMarkup)
	got := truncate("x" + long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), maxLoggedMarkup+len("..."))
	assert.Equal(t, "x"+strings.Repeat("я", (maxLoggedMarkup-1)/2)+"...", got)
}
