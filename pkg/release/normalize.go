package release

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Matches II-IX after a space. Leading and standalone "I"/"X" are left alone
// ("I Robot", "American History X").
var romanNumeralRegex = regexp.MustCompile(`(?i) (ii|iii|iv|v|vi|vii|viii|ix)\b`)

var romanToArabic = map[string]string{
	"ii": "2", "iii": "3", "iv": "4", "v": "5",
	"vi": "6", "vii": "7", "viii": "8", "ix": "9",
}

var leadingArticles = []string{"the ", "a ", "an "}

var matchPunctuation = strings.NewReplacer("&", " and ", "-", " ", "'", "", ".", " ", "ё", "е")

// NormalizeRomanNumerals converts II-IX to Arabic digits.
func NormalizeRomanNumerals(s string) string {
	return romanNumeralRegex.ReplaceAllStringFunc(s, func(match string) string {
		if arabic, ok := romanToArabic[strings.ToLower(match[1:])]; ok {
			return " " + arabic
		}
		return match
	})
}

// CleanTitle folds a serial or movie name into a comparable key: lower case,
// transliterated to ASCII, no accents, articles or punctuation.
func CleanTitle(title string) string {
	s := matchPunctuation.Replace(strings.ToLower(title))
	if cyrillicRegex.MatchString(s) {
		s = strings.ToLower(unidecode.Unidecode(s))
	}
	s = removeAccents(NormalizeRomanNumerals(s))

	// "Léon: The Professional" has an article after the colon.
	parts := strings.Split(s, ":")
	for i, part := range parts {
		parts[i] = stripLeadingArticle(part)
	}
	s = strings.Join(parts, " ")

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return collapseSpaces(s)
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

func stripLeadingArticle(s string) string {
	s = strings.TrimSpace(s)
	for _, art := range leadingArticles {
		if rest, ok := strings.CutPrefix(s, art); ok {
			return rest
		}
	}
	return s
}

// NormalizeSearchQuery prepares a search term for a tracker search form.
// Case and script are preserved since trackers match on the raw text.
func NormalizeSearchQuery(query string) string {
	s := strings.NewReplacer("&", "and", `"`, "", "«", "", "»", "").Replace(query)
	return collapseSpaces(s)
}
