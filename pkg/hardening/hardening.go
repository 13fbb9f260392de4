package hardening

import (
	"fmt"
	"strings"
)

type Options struct {
	Service            string
	Environment        string
	StrictProdSecurity string
	AuthMode           string
	SessionSecret      string
	DatabaseSSLMode    string
	CORSAllowedOrigins string
}

// ValidateProduction rejects startup configurations that would ship a CRM
// full of client PII into a production-like environment without transport
// security, a session secret, or an explicit CORS allowlist.
func ValidateProduction(o Options) error {
	if !isProductionLikeEnv(o.Environment) {
		return nil
	}
	if !isTrue(o.StrictProdSecurity, true) {
		return nil
	}
	service := strings.TrimSpace(o.Service)
	if service == "" {
		service = "service"
	}
	if strings.EqualFold(strings.TrimSpace(o.AuthMode), "off") {
		return fmt.Errorf("%s: AUTH_MODE=off is forbidden in production-like environments", service)
	}
	if strings.TrimSpace(o.SessionSecret) == "" {
		return fmt.Errorf("%s: strict production hardening requires SESSION_SECRET", service)
	}
	switch strings.ToLower(strings.TrimSpace(o.DatabaseSSLMode)) {
	case "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%s: strict production hardening requires DATABASE_SSLMODE=require|verify-ca|verify-full", service)
	}
	return validateCORSOrigins(o.CORSAllowedOrigins, service)
}

func validateCORSOrigins(raw, service string) error {
	validCount := 0
	for _, origin := range strings.Split(raw, ",") {
		o := strings.TrimSpace(origin)
		if o == "" {
			continue
		}
		validCount++
		lower := strings.ToLower(o)
		if lower == "*" {
			return fmt.Errorf("%s: strict production hardening forbids CORS wildcard origin", service)
		}
		if strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1") {
			return fmt.Errorf("%s: strict production hardening forbids localhost CORS origin %q", service, o)
		}
		if !strings.HasPrefix(lower, "https://") {
			return fmt.Errorf("%s: strict production hardening requires HTTPS CORS origin, got %q", service, o)
		}
	}
	if validCount == 0 {
		return fmt.Errorf("%s: strict production hardening requires explicit CORS_ALLOWED_ORIGINS", service)
	}
	return nil
}

func isTrue(raw string, def bool) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def
	}
	return strings.EqualFold(trimmed, "true")
}

func isProductionLikeEnv(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production", "staging", "stage":
		return true
	default:
		return false
	}
}
