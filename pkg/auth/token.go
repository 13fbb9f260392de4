package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Session tokens are compact HS256 JWTs minted at login. They carry the
// request-scoped identity (user id, role, team) that every policy and
// lifecycle call receives explicitly; nothing reads identity from ambient
// storage.
type SessionClaims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Team string `json:"team,omitempty"`
	Exp  int64  `json:"exp"`
	Iat  int64  `json:"iat,omitempty"`
}

var (
	ErrTokenFormat    = errors.New("invalid token format")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
)

// SignSession mints a session token for a principal.
func SignSession(secret string, p Principal, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	claims := SessionClaims{
		Sub:  p.UserID,
		Role: p.Role,
		Team: p.TeamID,
		Exp:  now.Add(ttl).Unix(),
		Iat:  now.Unix(),
	}
	payloadRaw, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadRaw)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(header + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + payload + "." + sig, nil
}

// VerifySession checks a session token's signature and expiry and returns
// the embedded principal.
func VerifySession(token, secret string, now time.Time) (Principal, error) {
	if secret == "" {
		return Principal{}, errors.New("secret is required")
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Principal{}, ErrTokenFormat
	}
	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Principal{}, ErrTokenFormat
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return Principal{}, ErrTokenFormat
	}
	if strings.ToUpper(header.Alg) != "HS256" {
		return Principal{}, errors.New("unsupported alg")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Principal{}, ErrTokenFormat
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return Principal{}, ErrTokenSignature
	}
	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Principal{}, ErrTokenFormat
	}
	var claims SessionClaims
	if err := json.Unmarshal(payloadRaw, &claims); err != nil {
		return Principal{}, ErrTokenFormat
	}
	if claims.Exp != 0 && now.Unix() >= claims.Exp {
		return Principal{}, ErrTokenExpired
	}
	if strings.TrimSpace(claims.Sub) == "" {
		return Principal{}, errors.New("token subject missing")
	}
	return Principal{UserID: claims.Sub, Role: claims.Role, TeamID: claims.Team}, nil
}
