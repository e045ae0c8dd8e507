package release

import (
	"fmt"
	"regexp"
	"strconv"
)

// Template is a title layout with {name} placeholders. {name:02} zero-pads
// numeric values.
type Template string

const (
	MovieTemplate   Template = "{name} ({year}) [{quality} {dimension}] [{lang}]"
	SeriesTemplate  Template = "{name} S{season:02}E{episode:02} {quality} {dimension} [{lang}]"
	SeasonTemplate  Template = "{name} S{season:02} {quality} {dimension} [{lang}]"
	EpisodeTemplate Template = "[{translator}] {name} {episode} {dimension} [{lang}]"
)

// TitleParts are the values extracted from a raw title, kept apart from how
// they are presented.
type TitleParts struct {
	Name       string
	Year       string
	Quality    Quality
	Dimension  string
	Language   string
	Season     string
	Episode    string
	Translator string
}

func (p TitleParts) values() map[string]string {
	return map[string]string{
		"name":       p.Name,
		"year":       p.Year,
		"quality":    p.Quality.String(),
		"dimension":  p.Dimension,
		"lang":       p.Language,
		"season":     p.Season,
		"episode":    p.Episode,
		"translator": p.Translator,
	}
}

var (
	placeholderRegex = regexp.MustCompile(`\{(\w+)(?::(\d+))?\}`)
	emptyGroupRegex  = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	openSpaceRegex   = regexp.MustCompile(`([\[(])\s+`)
	closeSpaceRegex  = regexp.MustCompile(`\s+([\])])`)
)

// Format renders p. Unknown placeholders are left as-is; empty values drop
// their surrounding brackets.
func (t Template) Format(p TitleParts) string {
	values := p.values()
	out := placeholderRegex.ReplaceAllStringFunc(string(t), func(match string) string {
		parts := placeholderRegex.FindStringSubmatch(match)
		val, ok := values[parts[1]]
		if !ok {
			return match
		}
		if parts[2] != "" {
			width, _ := strconv.Atoi(parts[2])
			if n, err := strconv.Atoi(val); err == nil {
				return fmt.Sprintf("%0*d", width, n)
			}
		}
		return val
	})
	out = openSpaceRegex.ReplaceAllString(out, "$1")
	out = closeSpaceRegex.ReplaceAllString(out, "$1")
	out = emptyGroupRegex.ReplaceAllString(out, "")
	return collapseSpaces(out)
}
