package indexer

import "errors"

var (
	// ErrSessionExpired means the logged-in marker was still missing after a
	// fresh login.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnknownSite is returned for a site name with no adapter.
	ErrUnknownSite = errors.New("unknown site")

	// ErrNoSites is returned when a pool has nothing to search.
	ErrNoSites = errors.New("no sites configured")
)

// Skip reasons.
const (
	SkipExtraction = "extraction"
	SkipDetail     = "detail"
	SkipNormalize  = "normalize"
	SkipInvalid    = "invalid"
	SkipFiltered   = "filtered"
	SkipCategory   = "category"
)
