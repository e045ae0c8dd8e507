package release

import (
	"regexp"

	"github.com/vmunix/scrapearr/pkg/torznab"
)

// Quality is the coarse source tier of a release as trackers label it.
type Quality int

const (
	QualityUnknown Quality = iota
	QualityBRDisc
	QualityBRRip
	QualityDVD
	QualityWEBDL
	QualityHD
	QualitySD
	QualityOther
)

func (q Quality) String() string {
	switch q {
	case QualityBRDisc:
		return "BR-Disc"
	case QualityBRRip:
		return "BR-Rip"
	case QualityDVD:
		return "DVD"
	case QualityWEBDL:
		return "WEBDL"
	case QualityHD:
		return "HD"
	case QualitySD:
		return "SD"
	case QualityOther:
		return "Other"
	default:
		return ""
	}
}

// Ordered: the first matching rule wins.
var qualityRules = []struct {
	quality Quality
	re      *regexp.Regexp
}{
	{QualityBRDisc, regexp.MustCompile(`(?i)blu-?ray`)},
	{QualityBRRip, regexp.MustCompile(`(?i)bd-?(?:rip|remux)`)},
	{QualityDVD, regexp.MustCompile(`(?i)dvd`)},
	{QualityWEBDL, regexp.MustCompile(`(?i)web-?(?:dl|rip)`)},
	{QualityHD, regexp.MustCompile(`(?i)hdtv|hd-?rip`)},
	{QualitySD, regexp.MustCompile(`(?i)sdtv|sat-?rip|telecine|tv-?rip`)},
	{QualityOther, regexp.MustCompile(`(?i)cam-?rip|vhs-?rip`)},
}

// ClassifyQuality maps free text to a quality tier.
func ClassifyQuality(title string) Quality {
	for _, rule := range qualityRules {
		if rule.re.MatchString(title) {
			return rule.quality
		}
	}
	return QualityUnknown
}

var movieCategories = map[Quality]torznab.Category{
	QualityBRDisc: torznab.MoviesBluRay,
	QualityBRRip:  torznab.MoviesBluRay,
	QualityDVD:    torznab.MoviesDVD,
	QualityWEBDL:  torznab.MoviesWEBDL,
	QualityHD:     torznab.MoviesHD,
	QualitySD:     torznab.MoviesSD,
	QualityOther:  torznab.MoviesOther,
}

var tvCategories = map[Quality]torznab.Category{
	QualityBRDisc: torznab.TVHD,
	QualityBRRip:  torznab.TVHD,
	QualityDVD:    torznab.TVSD,
	QualityWEBDL:  torznab.TVWEBDL,
	QualityHD:     torznab.TVHD,
	QualitySD:     torznab.TVSD,
	QualityOther:  torznab.TVOther,
}

// MovieCategory returns the movie category for q, Movies when unknown.
func MovieCategory(q Quality) int {
	if c, ok := movieCategories[q]; ok {
		return c.ID
	}
	return torznab.Movies.ID
}

// TVCategory returns the TV category for q, TV when unknown.
func TVCategory(q Quality) int {
	if c, ok := tvCategories[q]; ok {
		return c.ID
	}
	return torznab.TV.ID
}

// TVCategoryFromLabel maps a site's own quality label ("SD", "HD", "fullHD").
func TVCategoryFromLabel(label string) int {
	switch normalizeLabel(label) {
	case "hd", "fullhd":
		return torznab.TVHD.ID
	default:
		return torznab.TVSD.ID
	}
}
