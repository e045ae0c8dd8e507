package release

import (
	"regexp"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

var infoHashRegex = regexp.MustCompile(`\b[0-9A-Fa-f]{40}\b`)

// InfoHashFromMagnet returns the upper-case hex info hash of a magnet URI.
func InfoHashFromMagnet(uri string) (string, bool) {
	m, err := metainfo.ParseMagnetUri(strings.TrimSpace(uri))
	if err != nil || m.InfoHash == (metainfo.Hash{}) {
		return "", false
	}
	return strings.ToUpper(m.InfoHash.HexString()), true
}

// NormalizeInfoHash finds a 40 character hex hash in free text.
func NormalizeInfoHash(s string) (string, bool) {
	h := infoHashRegex.FindString(s)
	if h == "" {
		return "", false
	}
	return strings.ToUpper(h), true
}
