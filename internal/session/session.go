// Package session keeps per-site authenticated state: cookie jars, login
// forms, CAPTCHA challenges and re-authentication when a login expires.
package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/transport"
)

// Session is the authenticated state of one site. All mutation goes through
// its methods; it is safe for concurrent use.
type Session struct {
	site       string
	defaultURL string
	login      LoginSpec
	doer       transport.Doer
	log        *slog.Logger
	flight     singleflight.Group

	mu       sync.Mutex
	jar      http.CookieJar
	settings *Settings
	authed   bool
	pending  *pending
}

// pending is a challenge waiting for an answer, with the cookies it was
// issued under.
type pending struct {
	challenge Challenge
	jar       http.CookieJar
}

// New creates an unauthenticated session.
func New(site, defaultURL string, login LoginSpec, settings Settings, doer transport.Doer, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		site:       site,
		defaultURL: defaultURL,
		login:      login,
		doer:       doer,
		log:        log.With("component", "session", "site", site),
		jar:        transport.NewJar(),
		settings:   &settings,
	}
}

// Site returns the site name.
func (s *Session) Site() string { return s.site }

// Settings returns a copy of the committed settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.settings
}

// BaseURL is the committed site URL with a trailing slash.
func (s *Session) BaseURL() string {
	return s.Settings().BaseURL(s.defaultURL)
}

// Jar returns the committed cookie jar.
func (s *Session) Jar() http.CookieJar {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar
}

// Authenticated reports the committed login state.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed || !s.login.Required()
}

// Pending returns the challenge awaiting an answer, if any.
func (s *Session) Pending() (Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.challenge.Empty() {
		return Challenge{}, false
	}
	return s.pending.challenge, true
}

// PrepareChallenge loads the login page into a fresh candidate jar and
// returns the CAPTCHA it shows, or an empty Challenge.
func (s *Session) PrepareChallenge(ctx context.Context) (Challenge, error) {
	candidate := transport.NewJar()
	loginURL := s.BaseURL() + s.login.Path

	page, err := s.doer.Do(ctx, candidate, transport.Get(loginURL))
	if err != nil {
		return Challenge{}, fmt.Errorf("load login page: %w", err)
	}

	var ch Challenge
	if c := s.login.Captcha; c != nil {
		row, err := extract.Document(page.Body, []extract.FieldSpec{
			{Name: "image", Selector: c.ImageSelector, Attr: "src"},
			{Name: "sid", Selector: c.SIDSelector, Attr: "value"},
			{Name: "field", Selector: c.AnswerSelector, Attr: "name"},
		})
		if err != nil {
			return Challenge{}, fmt.Errorf("parse login page: %w", err)
		}
		if src := row.Get("image"); src != "" {
			ch.ImageURL = resolveImage(page.URL, src, c.Scheme)
			ch.SID = row.Get("sid")
			ch.Field = row.Get("field")

			req := transport.Get(ch.ImageURL)
			req.Referer = loginURL
			img, err := s.doer.Do(ctx, candidate, req)
			if err != nil {
				return Challenge{}, fmt.Errorf("load captcha image: %w", err)
			}
			ch.Image = img.Body
			ch.Cookies = cookiesFor(candidate, loginURL)
			s.log.Info("captcha challenge issued", "sid", ch.SID, "field", ch.Field)
		}
	}

	s.mu.Lock()
	s.pending = &pending{challenge: ch, jar: candidate}
	s.mu.Unlock()
	return ch, nil
}

// Authenticate posts the login form with settings and, when a challenge is
// pending, its answer. Jar, settings and login state are committed together
// on success only; on failure the session is left exactly as it was.
func (s *Session) Authenticate(ctx context.Context, settings Settings, answer string) error {
	if !s.login.Required() {
		s.commit(transport.NewJar(), settings)
		return nil
	}
	if settings.Username == "" {
		return fmt.Errorf("%s: %w", s.site, ErrNoCredentials)
	}

	s.mu.Lock()
	p := s.pending
	s.mu.Unlock()

	loginURL := settings.BaseURL(s.defaultURL) + s.login.Path
	jar := transport.NewJar()
	var ch Challenge
	if p != nil {
		jar = p.jar
		ch = p.challenge
	}
	if ch.SID == "" && settings.CaptchaSID != "" {
		// A challenge fetched by an earlier process: answer it under the
		// cookies it was issued with.
		ch = Challenge{SID: settings.CaptchaSID, Field: settings.CaptchaField, Cookies: settings.CaptchaCookies}
		jar = jarWith(loginURL, ch.Cookies)
	}

	form := url.Values{}
	form.Set(s.login.UsernameField, settings.Username)
	form.Set(s.login.PasswordField, settings.Password)
	for k, v := range s.login.Extra {
		form.Set(k, v)
	}
	if ch.SID != "" && s.login.Captcha != nil {
		if s.login.RedirectField != "" {
			form.Set(s.login.RedirectField, loginURL)
		}
		form.Set(s.login.Captcha.SIDField, ch.SID)
		form.Set(ch.Field, answer)
	}

	req := transport.PostForm(loginURL, form)
	req.Referer = loginURL
	start := time.Now()
	resp, err := s.doer.Do(ctx, jar, req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	s.mu.Lock()
	s.pending = nil // a challenge answer is single use
	s.mu.Unlock()

	if !s.hasMarker(resp.Body) {
		msg := s.errorMessage(resp.Body)
		s.log.Warn("login rejected", "message", msg, "duration_ms", time.Since(start).Milliseconds())
		return &AuthError{Site: s.site, Message: msg}
	}

	settings.CaptchaSID, settings.CaptchaField, settings.CaptchaCookies = "", "", nil
	s.commit(jar, settings)
	s.log.Info("logged in", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *Session) commit(jar http.CookieJar, settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	s.settings = &settings
	s.authed = true
}

// IsStillAuthenticated reports whether body carries the logged-in marker.
func (s *Session) IsStillAuthenticated(body []byte) bool {
	if !s.login.Required() {
		return true
	}
	return s.hasMarker(body)
}

func (s *Session) hasMarker(body []byte) bool {
	return s.login.Marker == "" || bytes.Contains(body, []byte(s.login.Marker))
}

func (s *Session) errorMessage(body []byte) string {
	if s.login.ErrorSelector == "" {
		return ""
	}
	row, err := extract.Document(body, []extract.FieldSpec{{Name: "error", Selector: s.login.ErrorSelector}})
	if err != nil {
		return ""
	}
	return row.Get("error")
}

// Invalidate drops the login state, keeping settings.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authed {
		s.log.Info("session invalidated")
	}
	s.authed = false
}

// Reauthenticate logs in again with the committed settings. Concurrent
// callers share one login attempt. A site that answers with a CAPTCHA yields
// ErrChallengeRequired; the challenge stays pending for an interactive answer.
func (s *Session) Reauthenticate(ctx context.Context) error {
	_, err, shared := s.flight.Do("login", func() (any, error) {
		if s.login.Captcha != nil {
			ch, err := s.PrepareChallenge(ctx)
			if err != nil {
				return nil, err
			}
			if !ch.Empty() {
				return nil, fmt.Errorf("%s: %w", s.site, ErrChallengeRequired)
			}
		}
		return nil, s.Authenticate(ctx, s.Settings(), "")
	})
	if shared {
		s.log.Debug("joined in-flight login")
	}
	return err
}

// Ready makes sure the session is logged in, logging in when needed.
func (s *Session) Ready(ctx context.Context) error {
	if s.Authenticated() {
		return nil
	}
	return s.Reauthenticate(ctx)
}

// Snapshot is the persistable part of a session.
type Snapshot struct {
	Site          string    `json:"site"`
	URL           string    `json:"url"`
	Cookies       []Cookie  `json:"cookies"`
	Authenticated bool      `json:"authenticated"`
	SavedAt       time.Time `json:"saved_at"`
}

// Cookie is a name/value pair scoped to the site URL.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Snapshot exports the committed cookies.
func (s *Session) Snapshot() Snapshot {
	base := s.BaseURL()
	snap := Snapshot{Site: s.site, URL: base, Authenticated: s.Authenticated(), SavedAt: time.Now().UTC()}
	snap.Cookies = cookiesFor(s.Jar(), base)
	return snap
}

// Restore imports cookies from a snapshot taken for the same site URL. A
// stale login is caught by the marker check on the next listing.
func (s *Session) Restore(snap Snapshot) error {
	base := s.BaseURL()
	if !strings.EqualFold(snap.URL, base) {
		return fmt.Errorf("snapshot for %s does not match %s", snap.URL, base)
	}
	if _, err := url.Parse(base); err != nil {
		return fmt.Errorf("parse site url: %w", err)
	}
	jar := jarWith(base, snap.Cookies)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	s.authed = snap.Authenticated
	return nil
}

// cookiesFor lists the cookies jar sends to rawURL.
func cookiesFor(jar http.CookieJar, rawURL string) []Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var out []Cookie
	for _, c := range jar.Cookies(u) {
		out = append(out, Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// jarWith returns a fresh jar holding cookies for the host of rawURL.
func jarWith(rawURL string, cookies []Cookie) http.CookieJar {
	jar := transport.NewJar()
	u, err := url.Parse(rawURL)
	if err != nil || len(cookies) == 0 {
		return jar
	}
	hc := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc = append(hc, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(u, hc)
	return jar
}

func resolveImage(pageURL, src, scheme string) string {
	if strings.HasPrefix(src, "//") {
		if scheme == "" {
			scheme = "https:"
		}
		return scheme + src
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
