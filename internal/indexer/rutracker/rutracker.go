// Package rutracker adapts rutracker.org: a form-posted tracker search whose
// rows only carry a topic id, so every release is read from its topic page.
package rutracker

import (
	_ "embed"
	"fmt"
	"net/url"
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

const Name = "rutracker"

//go:embed selectors.yaml
var selectors []byte

// Forum ids searched for the newest listing and for movie searches.
var (
	newestForums = []string{"2093", "2200", "2090", "2221", "2091", "2092", "1950", "313", "312", "1247", "2198", "2199", "2201", "2339", "1213"}
	movieForums  = []string{"2093", "2200", "2090", "2221", "2091", "2092", "1950", "313", "312", "1247", "2198", "2199", "2201", "2339", "1213", "189", "2366", "911", "2100", "1105"}
)

var site = indexer.Site{
	Name:            Name,
	Description:     "Russian semi-private tracker with a large film and series catalogue",
	DefaultURL:      "http://rutracker.net/",
	Language:        "Russian",
	MinimumRatio:    1,
	MinimumSeedTime: 48 * time.Hour,
	MaxItems:        10,
	Concurrency:     1,
	Login: session.LoginSpec{
		Path:          "forum/login.php",
		UsernameField: "login_username",
		PasswordField: "login_password",
		Extra:         map[string]string{"login": "Вход"},
		RedirectField: "redirect",
		Marker:        "logged-in-as-uname",
		ErrorSelector: "h4.warnColor1",
		Captcha: &session.CaptchaSpec{
			ImageSelector:  ".forumline img",
			SIDSelector:    `input[name="cap_sid"]`,
			SIDField:       "cap_sid",
			AnswerSelector: `input[autocomplete="off"]`,
			Scheme:         "https:",
		},
	},
	Categories:  []int{torznab.Movies.ID, torznab.MoviesBluRay.ID, torznab.TV.ID, torznab.TVHD.ID, torznab.TVSD.ID, torznab.TVWEBDL.ID},
	TVSearch:    true,
	MovieSearch: true,
}

// Adapter implements indexer.Adapter and indexer.Detailer.
type Adapter struct {
	listing extract.RowSpec
	detail  extract.RowSpec
}

// New builds the adapter from the shipped selectors, replacing any spec named
// in override.
func New(override extract.Specs) (*Adapter, error) {
	specs, err := extract.LoadSpecs(selectors)
	if err != nil {
		return nil, err
	}
	specs = specs.Merge(override)
	if err := specs.ValidateHTML(); err != nil {
		return nil, fmt.Errorf("%s selectors: %w", Name, err)
	}
	a := &Adapter{}
	if a.listing, err = specs.Get("listing"); err != nil {
		return nil, err
	}
	if a.detail, err = specs.Get("detail"); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) Site() indexer.Site { return site }

func (a *Adapter) Listing(mode indexer.Mode, q indexer.Query, base string) transport.Request {
	form := url.Values{}
	form.Set("prev_new", "0")
	form.Set("prev_oop", "0")
	form.Set("s", "2")
	form.Set("pn", "")
	form.Set("nm", q.Term)
	if mode == indexer.ModeNewest {
		form.Set("o", "1")
		form.Set("tm", "-1")
		form.Set("f", strings.Join(newestForums, ","))
	} else {
		form.Set("o", "7")
		form.Set("f", strings.Join(movieForums, ","))
	}
	req := transport.PostForm(base+"forum/tracker.php", form)
	req.Referer = base
	return req
}

func (a *Adapter) Rows(indexer.Mode) extract.RowSpec { return a.listing }

func (a *Adapter) Detail(row extract.Row, base string) (indexer.DetailSpec, bool) {
	id := row.Get("topic_id")
	if id == "" {
		return indexer.DetailSpec{}, false
	}
	req := transport.Get(topicURL(base, id))
	req.Referer = base + "forum/tracker.php"
	return indexer.DetailSpec{Request: req, Fields: a.detail.Fields}, true
}

func (a *Adapter) Normalize(in indexer.Input) (indexer.Outcome, error) {
	var out indexer.Outcome
	raw := in.Row.Get("title")

	quality := release.ClassifyQuality(raw)
	if quality == release.QualityUnknown {
		out.Warn("quality", raw)
	}
	parts := release.TitleParts{
		Name:      release.NameFromTitle(raw),
		Year:      release.YearFromTitle(raw),
		Quality:   quality,
		Dimension: release.DimensionFromTitle(raw),
		Language:  site.Language,
		Season:    release.SeasonFromTitle(raw),
		Episode:   release.EpisodesFromTitle(raw),
	}
	tmpl, category := release.MovieTemplate, release.MovieCategory(quality)
	if parts.Season != "" {
		category = release.TVCategory(quality)
		tmpl = release.SeasonTemplate
		if _, err := strconv.Atoi(parts.Episode); err == nil {
			tmpl = release.SeriesTemplate
		}
	}

	id := digits(in.Row.Get("download"))
	if id == "" {
		id = in.Row.Get("topic_id")
	}

	rec := release.Record{
		Title:     tmpl.Format(parts),
		Category:  category,
		Link:      in.BaseURL + "forum/dl.php?t=" + id,
		Comments:  topicURL(in.BaseURL, id),
		MagnetURI: in.Row.Get("magnet"),
		Seeders:   release.ParseCount(in.Row.Get("seeders")),
	}
	rec.GUID = rec.Comments
	rec.Peers = rec.Seeders + release.ParseCount(in.Row.Get("leechers"))

	if size, ok := release.ParseSize(in.Row.Get("size")); ok {
		rec.Size = size
	} else {
		out.Warn("size", in.Row.Get("size"))
	}
	if date, ok := release.ParseRussianDate(in.Row.Get("registered")); ok {
		rec.PublishDate = date
	} else {
		rec.PublishDate = release.UnknownDate
		out.Warn("publish_date", in.Row.Get("registered"))
	}
	if hash, ok := release.NormalizeInfoHash(in.Row.Get("hash")); ok {
		rec.InfoHash = hash
	}

	out.Record = rec
	return out, nil
}

func topicURL(base, id string) string {
	return base + "forum/viewtopic.php?t=" + id
}

func digits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
