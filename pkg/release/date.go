package release

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthAbbrev = map[string]time.Month{
	"янв": time.January, "фев": time.February, "мар": time.March, "апр": time.April,
	"май": time.May, "мая": time.May, "июн": time.June, "июл": time.July,
	"авг": time.August, "сен": time.September, "окт": time.October, "ноя": time.November,
	"дек": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var russianDatePattern = regexp.MustCompile(`(\d{1,2})-(\p{L}{3,})-(\d{4}|\d{2})(?:\s+(\d{1,2}):(\d{2}))?`)

var isoDatePattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// ParseRussianDate parses "05-Мар-21" and "05-Мар-21 14:33" (Latin month
// abbreviations are accepted too). It returns UnknownDate, false on failure.
func ParseRussianDate(s string) (time.Time, bool) {
	m := russianDatePattern.FindStringSubmatch(s)
	if m == nil {
		return UnknownDate, false
	}
	month, ok := monthAbbrev[strings.ToLower(string([]rune(m[2])[:3]))]
	if !ok {
		return UnknownDate, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year = expandYear(year)
	}
	var hour, minute int
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if hour > 23 || minute > 59 {
			return UnknownDate, false
		}
	}
	return buildDate(year, month, day, hour, minute)
}

// ParseISODate parses "yyyy-MM-dd". "0000-00-00" yields UnknownDate, false.
func ParseISODate(s string) (time.Time, bool) {
	m := isoDatePattern.FindStringSubmatch(s)
	if m == nil {
		return UnknownDate, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if year == 0 || month < 1 || month > 12 {
		return UnknownDate, false
	}
	return buildDate(year, time.Month(month), day, 0, 0)
}

func buildDate(year int, month time.Month, day, hour, minute int) (time.Time, bool) {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes 31-Feb into March; reject those.
	if t.Day() != day || t.Month() != month {
		return UnknownDate, false
	}
	return t, true
}

// expandYear follows the time package's two-digit year rule: 69-99 is 19xx.
func expandYear(yy int) int {
	if yy >= 69 {
		return 1900 + yy
	}
	return 2000 + yy
}
