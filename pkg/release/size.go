package release

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The unit must end the word: "5 best" is not five bytes. \b is ASCII-only
// in RE2, so the end is spelled out for the Cyrillic units.
var sizePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)*)\s*(tib|gib|mib|kib|tb|gb|mb|kb|тб|гб|мб|кб|bytes|b|б)(?:$|[^\p{L}\p{N}])`)

var sizeSeparators = strings.NewReplacer("&nbsp;", " ", "&nbsp", " ", "\u00a0", " ", "\u202f", " ")

var unitExponent = map[string]int{
	"b": 0, "bytes": 0, "б": 0,
	"kb": 1, "kib": 1, "кб": 1,
	"mb": 2, "mib": 2, "мб": 2,
	"gb": 3, "gib": 3, "гб": 3,
	"tb": 4, "tib": 4, "тб": 4,
}

// ParseSize converts "12.5 GB", "1,2&nbsp;ГБ" and similar into bytes using
// binary multiples. It returns 0, false when no size can be found or the
// size does not fit in an int64.
func ParseSize(s string) (int64, bool) {
	m := sizePattern.FindStringSubmatch(sizeSeparators.Replace(s))
	if m == nil {
		return 0, false
	}
	value, ok := parseDecimal(m[1])
	if !ok {
		return 0, false
	}
	exp := unitExponent[strings.ToLower(m[2])]
	bytes := math.Round(value * math.Pow(1024, float64(exp)))
	if bytes >= math.MaxInt64 {
		return 0, false
	}
	return int64(bytes), true
}

// parseDecimal accepts "1.2", "1,2" and "1,234.5".
func parseDecimal(s string) (float64, bool) {
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// EstimateSize approximates the size of a video from its duration, bitrate and
// frame dimensions. The result is an estimate only; the empirical divisor of 6
// tracks what the source site's files weigh in practice.
func EstimateSize(durationSec, bitrateKbps, width, height int) int64 {
	if durationSec <= 0 || bitrateKbps <= 0 || width <= 0 || height <= 0 {
		return 0
	}
	const empiricalRate = 6
	return int64(durationSec) * 24 * int64(bitrateKbps) * 3 * int64(width) * int64(height) / empiricalRate / 8
}
