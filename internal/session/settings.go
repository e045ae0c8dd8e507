package session

import "strings"

// Settings is the per-site configuration a session logs in with.
type Settings struct {
	URL          string `json:"url"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	StripRussian bool   `json:"strip_russian"`
	CaptchaSID   string `json:"-"`
	CaptchaField string `json:"-"`
	// CaptchaCookies are the cookies the challenge was issued under; an
	// answer posted without them is not bound to the challenge.
	CaptchaCookies []Cookie `json:"-"`
}

// BaseURL returns URL (or def when unset) with a trailing slash.
func (s Settings) BaseURL(def string) string {
	base := s.URL
	if base == "" {
		base = def
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// CaptchaSpec locates a CAPTCHA on the login page.
type CaptchaSpec struct {
	ImageSelector  string // the challenge image
	SIDSelector    string // hidden input carrying the challenge id
	SIDField       string // form name of that input
	AnswerSelector string // input whose name attribute is the answer field
	Scheme         string // prefixed to protocol-relative image URLs
}

// LoginSpec describes how a site logs in and how a logged-in page is
// recognised.
type LoginSpec struct {
	Path          string
	UsernameField string
	PasswordField string
	Extra         map[string]string
	// RedirectField, when set, is posted with the login URL alongside a
	// CAPTCHA answer.
	RedirectField string
	Marker        string
	ErrorSelector string
	Captcha       *CaptchaSpec
}

// Required reports whether the site needs a login at all.
func (l LoginSpec) Required() bool {
	return l.Path != ""
}

// Challenge is a CAPTCHA shown on the login page.
type Challenge struct {
	Image    []byte
	ImageURL string
	SID      string
	Field    string
	Cookies  []Cookie
}

// Empty reports whether no challenge was shown.
func (c Challenge) Empty() bool {
	return len(c.Image) == 0 && c.SID == ""
}
