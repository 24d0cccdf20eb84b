package httpapi

import (
	"net/http"
	"strings"

	"jobscout-engine/internal/auth"
	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/session"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"
)

// sessionToken prefers the header over the cookie.
func sessionToken(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(SessionHeader)); tok != "" {
		return tok
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

type sessions struct {
	auth *auth.Service
}

// identify returns nil when the request carries no live session.
func (s sessions) identify(r *http.Request) (*session.Identity, error) {
	if s.auth == nil {
		return nil, nil
	}
	id, ok, err := s.auth.Identify(r.Context(), sessionToken(r))
	if err != nil || !ok {
		return nil, err
	}
	return &id, nil
}

func (s sessions) require(r *http.Request) (session.Identity, error) {
	id, err := s.identify(r)
	if err != nil {
		return session.Identity{}, err
	}
	if id == nil {
		return session.Identity{}, domain.Unauthorized("Not logged in")
	}
	return *id, nil
}

func userIDOf(id *session.Identity) *string {
	if id == nil {
		return nil
	}
	uid := id.UserID
	return &uid
}
