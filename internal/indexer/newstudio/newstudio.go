// Package newstudio adapts newstudio.tv, a TV WEB-DL tracker whose search
// rows carry everything a release needs.
package newstudio

import (
	_ "embed"
	"fmt"
	"net/url"
	"time"

	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/indexer"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/transport"
	"github.com/vmunix/scrapearr/pkg/release"
	"github.com/vmunix/scrapearr/pkg/torznab"
)

const Name = "newstudio"

// The site does not publish swarm counts.
const assumedSwarm = 10

//go:embed selectors.yaml
var selectors []byte

var site = indexer.Site{
	Name:            Name,
	Description:     "NewStudio, Russian TV WEB-DL releases",
	DefaultURL:      "http://newstudio.tv/",
	Language:        "Russian",
	MinimumRatio:    1,
	MinimumSeedTime: 48 * time.Hour,
	Login: session.LoginSpec{
		Path:          "login.php",
		UsernameField: "login_username",
		PasswordField: "login_password",
		Extra:         map[string]string{"autologin": "1", "login": "1"},
		Marker:        "/login.php?logout=1",
		ErrorSelector: ".alert.alert-error",
	},
	Categories: []int{torznab.TV.ID, torznab.TVWEBDL.ID},
	TVSearch:   true,
}

// Adapter implements indexer.Adapter.
type Adapter struct {
	listing extract.RowSpec
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
	listing, err := specs.Get("listing")
	if err != nil {
		return nil, err
	}
	return &Adapter{listing: listing}, nil
}

func (a *Adapter) Site() indexer.Site { return site }

func (a *Adapter) Listing(mode indexer.Mode, q indexer.Query, base string) transport.Request {
	form := url.Values{}
	form.Set("max", "1")
	form.Set("to", "1")
	if mode == indexer.ModeSearch {
		form.Set("nm", q.String())
	}
	return transport.PostForm(base+"tracker.php", form)
}

func (a *Adapter) Rows(indexer.Mode) extract.RowSpec { return a.listing }

func (a *Adapter) Normalize(in indexer.Input) (indexer.Outcome, error) {
	var out indexer.Outcome
	title := release.NormalizeTitle(in.Row.Get("title"), release.TitleOptions{
		StripRussian: in.Settings.StripRussian,
		Language:     site.Language,
	})

	rec := release.Record{
		Title:       title,
		Description: title,
		Category:    torznab.TVWEBDL.ID,
		Seeders:     assumedSwarm,
		Peers:       assumedSwarm,
		Comments:    indexer.ResolveURL(in.BaseURL, in.Row.Get("details")),
		Link:        indexer.ResolveURL(in.BaseURL, in.Row.Get("torrent")),
	}
	rec.GUID = rec.Comments

	if date, ok := release.ParseRussianDate(in.Row.Get("date")); ok {
		rec.PublishDate = date
	} else {
		rec.PublishDate = release.UnknownDate
		out.Warn("publish_date", in.Row.Get("date"))
	}
	if size, ok := release.ParseSize(in.Row.Get("size")); ok {
		rec.Size = size
	} else {
		out.Warn("size", in.Row.Get("size"))
	}

	out.Record = rec
	return out, nil
}
