package main

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/auth"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/httpx"

	"github.com/jackc/pgx/v5"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string  `json:"token"`
	User  apiUser `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	phone := normalizePhone(req.Phone)
	if phone == "" || req.Password == "" {
		httpx.Error(w, 400, "phone and password required")
		return
	}
	if s.RateLimiter != nil {
		key := "login:" + phone + ":" + clientIP(r)
		if d := s.RateLimiter.Allow(key, s.LoginAttemptsPerWin); !d.Allowed {
			w.Header().Set("Retry-After", d.ResetAt.UTC().Format(http.TimeFormat))
			httpx.Error(w, 429, "too many login attempts")
			return
		}
	}

	var u apiUser
	var passwordHash string
	err := s.DB.QueryRow(r.Context(), `
		SELECT id, name, phone, email, role, COALESCE(team_id::text, ''), password_hash, active
		FROM users WHERE phone=$1
	`, phone).Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.TeamID, &passwordHash, &u.Active)
	if err == pgx.ErrNoRows || (err == nil && !auth.CheckPassword(passwordHash, req.Password)) {
		s.Metrics.IncLoginFailure()
		httpx.Error(w, 401, "invalid credentials")
		return
	}
	if err != nil {
		httpx.Error(w, 500, "lookup failed")
		return
	}
	if !u.Active {
		s.Metrics.IncLoginFailure()
		httpx.Error(w, 403, "account inactive")
		return
	}

	token, err := auth.SignSession(s.SessionSecret, auth.Principal{
		UserID: u.ID,
		Role:   u.Role,
		TeamID: u.TeamID,
	}, s.SessionTTL, time.Now().UTC())
	if err != nil {
		httpx.Error(w, 500, "session mint failed")
		return
	}
	httpx.WriteJSON(w, 200, loginResponse{Token: token, User: u})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// normalizePhone strips spaces, dashes and a leading +91 so the same
// subscriber number always hits the same row.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, c := range strings.TrimSpace(raw) {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	return digits
}
