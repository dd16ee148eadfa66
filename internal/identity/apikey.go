package identity

import (
	"fmt"
	"hash/fnv"
	"net/http"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"golang.org/x/crypto/bcrypt"
)

// apiKeyAuthenticator validates a key presented in a configured header.
// Role assignments come exclusively from the server-side key-to-roles
// mapping; nothing the caller sends in other headers can grant a role.
type apiKeyAuthenticator struct {
	cfg       Config
	validKeys map[string]struct{}
}

func newAPIKeyAuthenticator(cfg Config) (*apiKeyAuthenticator, error) {
	a := &apiKeyAuthenticator{cfg: cfg, validKeys: make(map[string]struct{})}
	if len(cfg.APIKeyRoles) > 0 {
		for k := range cfg.APIKeyRoles {
			a.validKeys[k] = struct{}{}
		}
	} else if len(cfg.APIKeys) > 0 {
		if cfg.HashedKeys {
			return nil, fmt.Errorf("hashed_keys requires api_key_roles")
		}
		for _, k := range cfg.APIKeys {
			a.validKeys[k] = struct{}{}
		}
	} else {
		return nil, fmt.Errorf("api_key authentication requires api_keys or api_key_roles")
	}
	return a, nil
}

func (a *apiKeyAuthenticator) Authenticate(headers http.Header) (authz.AuthContext, error) {
	key := headers.Get(a.cfg.APIKeyHeader)
	if key == "" {
		return authz.AuthContext{}, fmt.Errorf("missing %s header", a.cfg.APIKeyHeader)
	}

	roles, err := a.lookupRoles(key)
	if err != nil {
		return authz.AuthContext{}, err
	}

	userID := headers.Get("X-User-ID")
	if userID == "" {
		userID = fmt.Sprintf("api_key_user_%d", keyFingerprint(key))
	}

	return authz.AuthContext{
		Authenticated: true,
		Method:        authz.MethodAPIKey,
		UserID:        userID,
		Roles:         roles,
		Claims:        map[string]any{"api_key_fingerprint": keyFingerprint(key)},
		AgentID:       headerOrDefault(headers, "X-Agent-ID", "api_key_agent"),
	}, nil
}

// lookupRoles validates the key and returns the roles the server maps it
// to. With no mapping configured, every valid key gets the single
// low-privilege default role.
func (a *apiKeyAuthenticator) lookupRoles(key string) ([]string, error) {
	if a.cfg.HashedKeys {
		// Keys in the mapping are bcrypt hashes; compare against each.
		for hash, roles := range a.cfg.APIKeyRoles {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
				return cloneRoles(roles), nil
			}
		}
		return nil, fmt.Errorf("invalid api key")
	}

	if _, ok := a.validKeys[key]; !ok {
		return nil, fmt.Errorf("invalid api key")
	}
	if roles, ok := a.cfg.APIKeyRoles[key]; ok {
		return cloneRoles(roles), nil
	}
	return []string{defaultAPIKeyRole}, nil
}

func cloneRoles(roles []string) []string {
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// keyFingerprint derives a short non-reversible identifier for logging
// and default user ids. The raw key is never stored in the context.
func keyFingerprint(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % 10000
}
