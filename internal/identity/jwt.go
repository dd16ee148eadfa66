package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"github.com/golang-jwt/jwt/v5"
)

// jwtAuthenticator verifies HMAC-signed bearer tokens from the
// Authorization header.
type jwtAuthenticator struct {
	cfg Config
}

func newJWTAuthenticator(cfg Config) *jwtAuthenticator {
	return &jwtAuthenticator{cfg: cfg}
}

func (a *jwtAuthenticator) Authenticate(headers http.Header) (authz.AuthContext, error) {
	authHeader := headers.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return authz.AuthContext{}, fmt.Errorf("missing or invalid Authorization header")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{a.cfg.JWTAlgorithm})}
	if a.cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.JWTAudience))
	}
	if a.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.JWTIssuer))
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(a.cfg.JWTSecret), nil
	}, opts...); err != nil {
		return authz.AuthContext{}, fmt.Errorf("invalid token: %w", err)
	}

	for _, required := range a.cfg.RequiredClaims {
		if _, ok := claims[required]; !ok {
			return authz.AuthContext{}, fmt.Errorf("missing required claim %q", required)
		}
	}

	userID := claimString(claims, "sub")
	if userID == "" {
		userID = claimString(claims, "user_id")
	}

	return authz.AuthContext{
		Authenticated: true,
		Method:        authz.MethodJWT,
		UserID:        userID,
		Roles:         claimRoles(claims),
		Claims:        map[string]any(claims),
		AgentID:       headerOrDefault(headers, "X-Agent-ID", claimString(claims, "agent_id")),
		SessionID:     claimString(claims, "session_id"),
	}, nil
}

func claimString(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

// claimRoles normalizes the roles claim, which may be a single string or
// a list.
func claimRoles(claims jwt.MapClaims) []string {
	switch v := claims["roles"].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}
