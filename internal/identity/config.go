// Package identity resolves raw transport headers into a normalized
// authentication context. One strategy (jwt, api_key, header, none) is
// selected at construction; ordinary authentication failure never
// surfaces as an error, only as an unauthenticated context.
package identity

import (
	"fmt"

	"github.com/dhawalhost/mcpguard/internal/authz"
)

// Config selects and parameterizes the authentication strategy.
type Config struct {
	Method authz.AuthMethod `json:"method" yaml:"method" validate:"required,oneof=jwt api_key header none"`

	// JWT strategy.
	JWTSecret      string   `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty"`
	JWTAlgorithm   string   `json:"jwt_algorithm,omitempty" yaml:"jwt_algorithm,omitempty"`
	JWTAudience    string   `json:"jwt_audience,omitempty" yaml:"jwt_audience,omitempty"`
	JWTIssuer      string   `json:"jwt_issuer,omitempty" yaml:"jwt_issuer,omitempty"`
	RequiredClaims []string `json:"required_claims,omitempty" yaml:"required_claims,omitempty"`

	// API key strategy. APIKeyRoles is the server-side key-to-roles
	// mapping and is the only source of role assignments; APIKeys is the
	// legacy flat list used when no mapping is configured. With
	// HashedKeys set, APIKeyRoles keys are bcrypt hashes instead of
	// plaintext keys.
	APIKeyHeader string              `json:"api_key_header,omitempty" yaml:"api_key_header,omitempty"`
	APIKeys      []string            `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`
	APIKeyRoles  map[string][]string `json:"api_key_roles,omitempty" yaml:"api_key_roles,omitempty"`
	HashedKeys   bool                `json:"hashed_keys,omitempty" yaml:"hashed_keys,omitempty"`

	// Header strategy: header name to attribute (user_id, agent_id,
	// roles) mapping.
	HeaderMapping map[string]string `json:"header_mapping,omitempty" yaml:"header_mapping,omitempty"`
}

const (
	defaultJWTAlgorithm = "HS256"
	defaultAPIKeyHeader = "X-API-Key"

	// defaultAPIKeyRole is the single low-privilege role assigned when a
	// key is valid but no server-side role mapping exists.
	defaultAPIKeyRole = "api_user"
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.JWTAlgorithm == "" {
		out.JWTAlgorithm = defaultJWTAlgorithm
	}
	if out.APIKeyHeader == "" {
		out.APIKeyHeader = defaultAPIKeyHeader
	}
	return out
}

func (c *Config) validate() error {
	switch c.Method {
	case authz.MethodJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("jwt authentication requires jwt_secret")
		}
	case authz.MethodAPIKey:
		if len(c.APIKeys) == 0 && len(c.APIKeyRoles) == 0 {
			return fmt.Errorf("api_key authentication requires api_keys or api_key_roles")
		}
	case authz.MethodHeader, authz.MethodNone:
	default:
		return fmt.Errorf("unsupported auth method %q", c.Method)
	}
	return nil
}
