package release

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	nameRegex      = regexp.MustCompile(`^(.*?)[\[(]`)
	yearRegex      = regexp.MustCompile(`\[(\d{4})[^pi\d]`)
	dimensionRegex = regexp.MustCompile(`\b(\d{3,4}[pi])\b`)
	seasonRegex    = regexp.MustCompile(`Сезон:?\s*(\d+)`)
	episodesRegex  = regexp.MustCompile(`Серии:?\s*(\d+(?:-\d+)?)`)
	cyrillicRegex  = regexp.MustCompile(`\p{Cyrillic}`)

	// SeasonEpisodePhrase matches "Сезон 2, Серия 5", optionally parenthesised.
	SeasonEpisodePhrase = regexp.MustCompile(`\(?\s*Сезон\s+(\d+),\s*Серия\s+(\d+)\s*\)?`)
)

var titleDecorations = strings.NewReplacer("WEBDLRip", "WEBDL 480p", " *Proper", "")

// TitleOptions controls NormalizeTitle.
type TitleOptions struct {
	// StripRussian drops leading "/"-separated segments while they are
	// Cyrillic.
	StripRussian bool
	// Language is appended as " [Language]".
	Language string
}

// NormalizeTitle turns a raw tracker title into the canonical form
// "Name sNNeMM Quality [Language]". Applying it to its own output is a no-op.
func NormalizeTitle(raw string, opts TitleOptions) string {
	title := titleDecorations.Replace(raw)
	if i := strings.Index(title, "|"); i >= 0 {
		title = title[:i]
	}
	title = collapseSpaces(title)

	suffix := ""
	if opts.Language != "" {
		suffix = "[" + opts.Language + "]"
		title = strings.TrimSpace(strings.TrimSuffix(title, suffix))
	}

	token := ""
	if m := SeasonEpisodePhrase.FindStringSubmatch(title); m != nil {
		season, _ := strconv.Atoi(m[1])
		episode, _ := strconv.Atoi(m[2])
		token = EpisodeToken(season, episode)
		title = SeasonEpisodePhrase.ReplaceAllLiteralString(title, " "+token+" ")
	}

	if opts.StripRussian {
		stripped := false
		for {
			i := strings.Index(title, "/")
			if i < 0 || !cyrillicRegex.MatchString(title[:i]) {
				break
			}
			title, stripped = title[i+1:], true
		}
		if stripped && token != "" && !strings.Contains(title, token) {
			title = insertAfterName(title, token)
		}
	}

	title = collapseSpaces(title)
	if suffix != "" {
		title += " " + suffix
	}
	return title
}

// EpisodeToken formats a season/episode pair as sNNeMM.
func EpisodeToken(season, episode int) string {
	return fmt.Sprintf("s%02de%02d", season, episode)
}

// NameFromTitle returns the last "/"-separated name before the first
// bracket, skipping "Сезон:" and "Серии:" segments.
func NameFromTitle(title string) string {
	name := title
	if m := nameRegex.FindStringSubmatch(title); m != nil {
		name = m[1]
	}
	parts := strings.Split(name, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		part := strings.TrimSpace(parts[i])
		if part == "" || seasonRegex.MatchString(part) || episodesRegex.MatchString(part) {
			continue
		}
		return part
	}
	return strings.TrimSpace(parts[len(parts)-1])
}

// ParseCount reads the digits of s as a count ("1 234" -> 1234). Anything
// without digits is 0.
func ParseCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			if n > 1<<30 {
				return 1 << 30
			}
		}
	}
	return n
}

// YearFromTitle extracts the year from "[2014, ...]".
func YearFromTitle(title string) string {
	return firstGroup(yearRegex, title)
}

// DimensionFromTitle extracts "1080p", "720p", "1080i".
func DimensionFromTitle(title string) string {
	return firstGroup(dimensionRegex, title)
}

// SeasonFromTitle extracts N from "Сезон: N".
func SeasonFromTitle(title string) string {
	return firstGroup(seasonRegex, title)
}

// EpisodesFromTitle extracts "1-8" from "Серии: 1-8".
func EpisodesFromTitle(title string) string {
	return firstGroup(episodesRegex, title)
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func insertAfterName(title, token string) string {
	if i := strings.IndexAny(title, "(["); i > 0 {
		return title[:i] + " " + token + " " + title[i:]
	}
	return title + " " + token
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
