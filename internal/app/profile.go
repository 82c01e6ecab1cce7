package app

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"tubeboard.app/internal/appconf"
)

const (
	// ProfileCookie holds the anonymous profile id of a browser.
	ProfileCookie = "tubeboard_profile"
	// ProfileHeader lets non-browser clients name their profile.
	ProfileHeader = "X-Profile-ID"

	profileMaxAge = 365 * 24 * time.Hour
)

// ProfileFromRequest returns the profile id carried by r, header first.
// Only well-formed UUIDs are accepted.
func ProfileFromRequest(r *http.Request) (string, bool) {
	if id, ok := validProfileID(r.Header.Get(ProfileHeader)); ok {
		return id, true
	}
	if c, err := r.Cookie(ProfileCookie); err == nil {
		if id, ok := validProfileID(c.Value); ok {
			return id, true
		}
	}
	return "", false
}

// Profile returns the request's profile id, issuing a new one in a cookie
// when the request has none.
func (app *Application) Profile(w http.ResponseWriter, r *http.Request) string {
	if id, ok := ProfileFromRequest(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(profileMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   app.Config.Env == appconf.Production,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// ClientKey identifies the caller for rate limiting: the profile when
// there is one, otherwise the remote address.
func ClientKey(r *http.Request) string {
	if id, ok := ProfileFromRequest(r); ok {
		return "profile:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func validProfileID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
