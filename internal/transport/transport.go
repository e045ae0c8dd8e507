// Package transport performs HTTP requests on behalf of site adapters: cookie
// jars, redirects, retries, per-host rate limiting and charset decoding.
package transport

//go:generate mockgen -destination=mocks/mock_doer.go -package=mocks github.com/vmunix/scrapearr/internal/transport Doer

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// Request is one upstream call. Form is sent as the urlencoded body for POST
// and as the query string otherwise.
type Request struct {
	Method  string
	URL     string
	Form    url.Values
	Referer string
	Header  http.Header
}

// Get builds a GET request.
func Get(rawURL string) Request {
	return Request{Method: http.MethodGet, URL: rawURL}
}

// PostForm builds a urlencoded POST request.
func PostForm(rawURL string, form url.Values) Request {
	return Request{Method: http.MethodPost, URL: rawURL, Form: form}
}

// Response is a fully read, UTF-8 decoded upstream response. URL is the final
// URL after redirects.
type Response struct {
	Status int
	Body   []byte
	URL    string
}

// Doer executes requests with the caller's cookie jar.
type Doer interface {
	Do(ctx context.Context, jar http.CookieJar, req Request) (*Response, error)
}

// NewJar returns an empty cookie jar scoped by the public suffix list.
func NewJar() http.CookieJar {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}
