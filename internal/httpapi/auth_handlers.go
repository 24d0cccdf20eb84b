package httpapi

import (
	"log/slog"
	"net/http"

	"jobscout-engine/internal/auth"
)

type AuthHandler struct {
	Auth     *auth.Service
	Sessions sessions
	Log      *slog.Logger
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

func (h AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	s, err := h.Auth.Signup(r.Context(), c.Email, c.Password, c.Name)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	h.opened(w, s, "Account created successfully")
}

func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	s, err := h.Auth.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	h.opened(w, s, "Login successful")
}

func (h AuthHandler) opened(w http.ResponseWriter, s auth.Session, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	WriteJSON(w, http.StatusOK, sessionResponse{
		Success:   true,
		Message:   msg,
		SessionID: s.Token,
		UserID:    s.Identity.UserID,
		UserName:  s.Identity.UserName,
	})
}

func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), sessionToken(r)); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	WriteJSON(w, http.StatusOK, sessionResponse{Success: true, Message: "Logged out"})
}

func (h AuthHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.Sessions.identify(r)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	if id == nil {
		WriteJSON(w, http.StatusOK, sessionResponse{Success: false})
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse{Success: true, UserID: id.UserID, UserName: id.UserName})
}
