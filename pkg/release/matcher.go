package release

import (
	"regexp"

	"github.com/hbollon/go-edlib"
)

var numberRegex = regexp.MustCompile(`\b(\d+)\b`)

// MatchConfidence grades a fuzzy title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // < 0.70
	ConfidenceLow                           // >= 0.70
	ConfidenceMedium                        // >= 0.85
	ConfidenceHigh                          // >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult is the best candidate for a wanted title.
type MatchResult struct {
	Index      int // position in the candidate list, -1 when nothing matched
	Title      string
	Score      float64 // Jaro-Winkler similarity, 0..1
	Confidence MatchConfidence
}

// MatchTitle picks the candidate closest to want. Both sides are folded with
// CleanTitle, so a Latin query can match a Cyrillic link text.
func MatchTitle(want string, candidates []string) MatchResult {
	best := MatchResult{Index: -1}
	wantKey := CleanTitle(want)
	wantNums := numberRegex.FindAllString(wantKey, -1)

	for i, candidate := range candidates {
		key := CleanTitle(candidate)
		score := float64(edlib.JaroWinklerSimilarity(wantKey, key))
		score = adjustScoreForNumbers(score, wantNums, numberRegex.FindAllString(key, -1))
		if score > best.Score {
			best = MatchResult{Index: i, Title: candidate, Score: score}
		}
	}

	switch {
	case best.Score >= 0.95:
		best.Confidence = ConfidenceHigh
	case best.Score >= 0.85:
		best.Confidence = ConfidenceMedium
	case best.Score >= 0.70:
		best.Confidence = ConfidenceLow
	default:
		return MatchResult{Index: -1, Score: best.Score}
	}
	return best
}

// adjustScoreForNumbers rewards candidates sharing a sequence number with the
// wanted title ("Sherlock 2") and penalizes ones that differ or lack numbers.
func adjustScoreForNumbers(score float64, wantNums, candidateNums []string) float64 {
	if len(wantNums) == 0 {
		return score
	}
	if len(candidateNums) == 0 {
		return score * 0.85
	}
	have := make(map[string]bool, len(candidateNums))
	for _, n := range candidateNums {
		have[n] = true
	}
	for _, n := range wantNums {
		if have[n] {
			return min(score*1.05, 1.0)
		}
	}
	return score * 0.90
}
