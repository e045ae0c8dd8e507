package indexer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmunix/scrapearr/pkg/torznab"
)

// Query is what a caller asks a site for. Build it with ParseQuery or a
// literal; it is not modified afterwards.
type Query struct {
	Term       string
	Season     *int
	Episode    *int
	Categories []int
}

// " S02" or " S02E05" at the end of the text.
var seasonSuffix = regexp.MustCompile(`(?i)\s+S(\d+)(?:E(\d+))?$`)

// ParseQuery splits a trailing " S<n>" / " S<n>E<m>" off text.
func ParseQuery(text string, categories []int) Query {
	q := Query{Term: strings.TrimSpace(text), Categories: categories}
	m := seasonSuffix.FindStringSubmatchIndex(q.Term)
	if m == nil {
		return q
	}
	season, _ := strconv.Atoi(q.Term[m[2]:m[3]])
	q.Season = &season
	if m[4] >= 0 {
		episode, _ := strconv.Atoi(q.Term[m[4]:m[5]])
		q.Episode = &episode
	}
	q.Term = strings.TrimSpace(q.Term[:m[0]])
	return q
}

// Mode returns ModeNewest for an empty term.
func (q Query) Mode() Mode {
	if strings.TrimSpace(q.Term) == "" {
		return ModeNewest
	}
	return ModeSearch
}

// SeasonNumber returns the season or 0.
func (q Query) SeasonNumber() int {
	if q.Season == nil {
		return 0
	}
	return *q.Season
}

// EpisodeNumber returns the episode or 0.
func (q Query) EpisodeNumber() int {
	if q.Episode == nil {
		return 0
	}
	return *q.Episode
}

func (q Query) String() string {
	s := q.Term
	if q.Season != nil {
		s += fmt.Sprintf(" S%02d", *q.Season)
		if q.Episode != nil {
			s += fmt.Sprintf("E%02d", *q.Episode)
		}
	}
	return strings.TrimSpace(s)
}

// wantsCategory reports whether a record in category id answers q.
func (q Query) wantsCategory(id int) bool {
	if len(q.Categories) == 0 {
		return true
	}
	for _, c := range q.Categories {
		if c == id || c == torznab.Parent(id) {
			return true
		}
	}
	return false
}
