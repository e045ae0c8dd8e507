// Package release normalizes tracker vocabulary (titles, quality tiers, sizes, dates,
// categories) into the uniform release record consumed by aggregators.
package release

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmunix/scrapearr/pkg/torznab"
)

// UnknownDate is the publish date used when a site date cannot be parsed.
var UnknownDate = time.Unix(0, 0).UTC()

var (
	ErrNoTitle = errors.New("release has no title")
	ErrNoLink  = errors.New("release has neither link nor magnet")
)

// Record is one normalized release.
type Record struct {
	Site            string        `json:"site"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Category        int           `json:"category"`
	PublishDate     time.Time     `json:"publish_date"`
	Size            int64         `json:"size"`
	Seeders         int           `json:"seeders"`
	Peers           int           `json:"peers"`
	Link            string        `json:"link,omitempty"`
	MagnetURI       string        `json:"magnet,omitempty"`
	Comments        string        `json:"comments,omitempty"`
	GUID            string        `json:"guid"`
	InfoHash        string        `json:"info_hash,omitempty"`
	MinimumRatio    float64       `json:"minimum_ratio,omitempty"`
	MinimumSeedTime time.Duration `json:"minimum_seed_time,omitempty"`
}

// Validate checks the record invariant: a title and at least one way to fetch it.
func (r Record) Validate() error {
	if r.Title == "" {
		return ErrNoTitle
	}
	if r.Link == "" && r.MagnetURI == "" {
		return fmt.Errorf("%q: %w", r.Title, ErrNoLink)
	}
	return nil
}

// Finalize clamps counters, fills GUID and publish date defaults and validates.
func (r Record) Finalize() (Record, error) {
	r.Size = max(r.Size, 0)
	r.Seeders = max(r.Seeders, 0)
	r.Peers = max(r.Peers, 0)
	if r.PublishDate.IsZero() {
		r.PublishDate = UnknownDate
	}
	if r.GUID == "" {
		r.GUID = firstNonEmpty(r.Comments, r.Link, r.MagnetURI)
	}
	if r.InfoHash == "" && r.MagnetURI != "" {
		if h, ok := InfoHashFromMagnet(r.MagnetURI); ok {
			r.InfoHash = h
		}
	}
	return r, r.Validate()
}

// TorznabItem converts the record for feed rendering.
func (r Record) TorznabItem() torznab.Item {
	return torznab.Item{
		Title:           r.Title,
		GUID:            r.GUID,
		Link:            r.Link,
		Comments:        r.Comments,
		Description:     r.Description,
		PublishDate:     r.PublishDate,
		Size:            r.Size,
		Category:        r.Category,
		Seeders:         r.Seeders,
		Peers:           r.Peers,
		InfoHash:        r.InfoHash,
		MagnetURI:       r.MagnetURI,
		MinimumRatio:    r.MinimumRatio,
		MinimumSeedTime: r.MinimumSeedTime,
	}
}

// Degraded notes a non-mandatory field that fell back to its default.
type Degraded struct {
	Field string
	Input string
}

func (d Degraded) String() string {
	return fmt.Sprintf("%s: unparsable %q", d.Field, d.Input)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
