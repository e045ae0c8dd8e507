// Package soap4me adapts soap4.me, a TV site organised as serial, season and
// episode pages with per-episode media info behind an XHR callback.
package soap4me

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/indexer"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
	"github.com/vmunix/scrapearr/pkg/release"
	"github.com/vmunix/scrapearr/pkg/torznab"
)

const Name = "soap4me"

// Translator label of subtitle-only episodes.
const subtitlesOnly = "Субтитры"

//go:embed selectors.yaml
var selectors []byte

var site = indexer.Site{
	Name:            Name,
	Description:     "Soap4Me, TV series with Russian voice-overs and subtitles",
	DefaultURL:      "https://soap4.me/",
	Language:        "Russian",
	MinimumRatio:    1,
	MinimumSeedTime: 48 * time.Hour,
	MaxItems:        50,
	Concurrency:     1,
	Login: session.LoginSpec{
		Path:          "login/",
		UsernameField: "login",
		PasswordField: "password",
		Marker:        `action="/logout"`,
		ErrorSelector: "#message",
	},
	Categories: []int{torznab.TV.ID, torznab.TVSD.ID, torznab.TVHD.ID},
	TVSearch:   true,
}

var (
	seriesNameRegex = regexp.MustCompile(`^(.*?)\s*<`)
	trailingNumber  = regexp.MustCompile(`(\d+)\s*$`)
	durationParts   = regexp.MustCompile(`(\d+)\s*(h|mn|s)\b`)
)

// Adapter implements indexer.Adapter, Walker, RowFilter and Detailer.
type Adapter struct {
	newest    extract.RowSpec
	search    extract.RowSpec
	seasons   extract.RowSpec
	episodes  extract.RowSpec
	mediainfo extract.RowSpec
}

// New builds the adapter from the shipped selectors, replacing any spec named
// in override.
func New(override extract.Specs) (*Adapter, error) {
	specs, err := extract.LoadSpecs(selectors)
	if err != nil {
		return nil, err
	}
	specs = specs.Merge(override)
	pages := extract.Specs{}
	for name, spec := range specs {
		if name != "mediainfo" {
			pages[name] = spec
		}
	}
	if err := pages.ValidateHTML(); err != nil {
		return nil, fmt.Errorf("%s selectors: %w", Name, err)
	}

	a := &Adapter{}
	for name, dst := range map[string]*extract.RowSpec{
		"newest":    &a.newest,
		"search":    &a.search,
		"seasons":   &a.seasons,
		"episodes":  &a.episodes,
		"mediainfo": &a.mediainfo,
	} {
		if *dst, err = specs.Get(name); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Adapter) Site() indexer.Site { return site }

func (a *Adapter) Listing(_ indexer.Mode, _ indexer.Query, base string) transport.Request {
	req := transport.Get(base + "new/")
	req.Referer = base
	return req
}

func (a *Adapter) Rows(mode indexer.Mode) extract.RowSpec {
	if mode == indexer.ModeNewest {
		return a.newest
	}
	return a.episodes
}

// Walk follows search -> serial -> season pages. The newest listing is a
// single page and uses Listing.
func (a *Adapter) Walk(ctx context.Context, fetch indexer.Fetcher, mode indexer.Mode, q indexer.Query, base string) ([]indexer.Page, error) {
	if mode == indexer.ModeNewest {
		return nil, nil
	}
	pages := []indexer.Page{}

	searchURL := base + "search/?q=" + url.QueryEscape(strings.TrimSpace(q.Term))
	req := transport.Get(searchURL)
	req.Referer = base
	resp, err := fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	serials, err := collect(resp.Body, a.search)
	if err != nil || len(serials) == 0 {
		return pages, err
	}

	titles := make([]string, len(serials))
	for i, s := range serials {
		titles[i] = s.Get("title")
	}
	best := release.MatchTitle(q.Term, titles)
	pick := best.Index
	if pick < 0 {
		pick = 0
	}
	serialURL := indexer.ResolveURL(base, serials[pick].Get("href"))

	req = transport.Get(serialURL)
	req.Referer = searchURL
	resp, err = fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("serial page: %w", err)
	}
	seasons, err := collect(resp.Body, a.seasons)
	if err != nil {
		return pages, err
	}

	var wantSeason *regexp.Regexp
	if q.Season != nil {
		wantSeason = regexp.MustCompile(`/` + strconv.Itoa(*q.Season) + `/$`)
	}
	for _, season := range seasons {
		seasonURL := indexer.ResolveURL(base, season.Get("href"))
		if wantSeason != nil && !wantSeason.MatchString(seasonURL) {
			continue
		}
		req := transport.Get(seasonURL)
		req.Referer = serialURL
		resp, err := fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("season page: %w", err)
		}
		pages = append(pages, indexer.Page{Body: resp.Body, Spec: a.episodes})
	}
	return pages, nil
}

func collect(body []byte, spec extract.RowSpec) ([]extract.Row, error) {
	rows, err := extract.HTML(body, spec)
	if err != nil {
		return nil, err
	}
	var out []extract.Row
	for rows.Next() {
		if row, err := rows.Row(); err == nil {
			out = append(out, row)
		}
	}
	return out, nil
}

// Keep drops rows without an episode number and, as the site adapter always
// has, rows whose number equals the queried episode.
func (a *Adapter) Keep(row extract.Row, q indexer.Query) (bool, string) {
	number, ok := row.Lookup("number")
	if !ok {
		return true, ""
	}
	number = strings.TrimSpace(number)
	if number == "--" {
		return false, "episode number not published"
	}
	if q.Episode != nil && number == strconv.Itoa(*q.Episode) {
		return false, "episode equals queried episode"
	}
	return true, ""
}

func (a *Adapter) Detail(row extract.Row, base string) (indexer.DetailSpec, bool) {
	eid := strings.TrimSpace(row.Get("eid"))
	if eid == "" {
		return indexer.DetailSpec{}, false
	}
	form := url.Values{}
	form.Set("eid", eid)
	form.Set("token", strings.TrimSpace(row.Get("token")))
	form.Set("what", "mediainfo")
	req := transport.PostForm(base+"callback/", form)
	req.Header = http.Header{"X-Requested-With": {"XMLHttpRequest"}}
	return indexer.DetailSpec{Request: req, Fields: a.mediainfo.Fields, Format: indexer.FormatJSON}, true
}

func (a *Adapter) Normalize(in indexer.Input) (indexer.Outcome, error) {
	var out indexer.Outcome
	row := in.Row

	translator := strings.TrimSpace(row.Get("translate"))
	if translator == subtitlesOnly {
		translator = ""
	}
	lang := "English"
	if translator != "" {
		lang = site.Language
	}

	parts := release.TitleParts{Translator: translator, Language: lang}
	if in.Mode == indexer.ModeNewest {
		parts.Name = row.Get("soap")
		parts.Episode = row.Get("nums")
	} else {
		parts.Name = seriesName(row.Get("series"))
		season, _ := strconv.Atoi(firstMatch(trailingNumber, row.Get("season")))
		episode, _ := strconv.Atoi(strings.TrimSpace(row.Get("number")))
		parts.Episode = release.EpisodeToken(season, episode)
	}

	rec := release.Record{
		Category:    release.TVCategoryFromLabel(row.Get("quality")),
		Link:        indexer.ResolveURL(in.BaseURL, row.Get("link")),
		Description: row.Get("description"),
	}

	if row.Get("ok") == "1" {
		rec.Seeders = release.ParseCount(row.Get("seeds"))
		rec.Peers = rec.Seeders + release.ParseCount(row.Get("peers"))
		parts.Dimension = strings.ReplaceAll(row.Get("dimensions"), " ", "")
		rec.Size = estimateSize(row)
	} else {
		out.Warn("mediainfo", row.Get("eid"))
	}
	rec.Title = release.EpisodeTemplate.Format(parts)

	if date, ok := release.ParseISODate(row.Get("date")); ok {
		rec.PublishDate = date
	} else {
		rec.PublishDate = release.UnknownDate
		out.Warn("publish_date", row.Get("date"))
	}

	out.Record = rec
	return out, nil
}

// estimateSize derives a size from media info; the site does not publish one.
func estimateSize(row extract.Row) int64 {
	width, height, _ := strings.Cut(strings.ReplaceAll(row.Get("dimensions"), " ", ""), "x")
	bitrate := release.ParseCount(row.Get("bitrate")) / 1000
	if bitrate <= 0 {
		bitrate = 1
	}
	return release.EstimateSize(durationSeconds(row.Get("duration")), bitrate,
		release.ParseCount(width), release.ParseCount(height))
}

// durationSeconds reads media info durations such as "42mn 10s" or "1h 2mn".
func durationSeconds(s string) int {
	total := 0
	for _, m := range durationParts.FindAllStringSubmatch(s, -1) {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "h":
			total += n * 3600
		case "mn":
			total += n * 60
		default:
			total += n
		}
	}
	return total
}

func seriesName(markup string) string {
	if m := seriesNameRegex.FindStringSubmatch(markup); m != nil {
		markup = m[1]
	}
	return strings.TrimSpace(html.UnescapeString(markup))
}

func firstMatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
