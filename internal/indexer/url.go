package indexer

import (
	"net/url"
	"strings"
)

// ResolveURL resolves a site-relative href ("./viewtopic.php?t=1",
// "/download.php?id=2") against base. An href that does not parse is
// appended to base as-is.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base + strings.TrimLeft(href, "./")
	}
	return b.ResolveReference(ref).String()
}
