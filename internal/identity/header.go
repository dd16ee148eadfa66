package identity

import (
	"net/http"
	"strings"

	"github.com/dhawalhost/mcpguard/internal/authz"
)

// headerAuthenticator trusts identity attributes presented in mapped
// request headers. Intended for deployments behind a gateway that has
// already authenticated the caller and injects these headers itself.
type headerAuthenticator struct {
	mapping map[string]string // header name -> attribute
}

func newHeaderAuthenticator(cfg Config) *headerAuthenticator {
	mapping := cfg.HeaderMapping
	if len(mapping) == 0 {
		mapping = map[string]string{
			"x-user-id":    "user_id",
			"x-agent-id":   "agent_id",
			"x-user-roles": "roles",
		}
	}
	return &headerAuthenticator{mapping: mapping}
}

func (a *headerAuthenticator) Authenticate(headers http.Header) (authz.AuthContext, error) {
	claims := make(map[string]any)
	for header, attr := range a.mapping {
		if v := headers.Get(header); v != "" {
			claims[attr] = v
		}
	}

	var roles []string
	if rolesStr, ok := claims["roles"].(string); ok {
		for _, r := range strings.Split(rolesStr, ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
	}

	userID, _ := claims["user_id"].(string)
	agentID, _ := claims["agent_id"].(string)
	if agentID == "" {
		agentID = "unknown"
	}

	return authz.AuthContext{
		// Authenticated only when the gateway actually presented an
		// identity.
		Authenticated: userID != "",
		Method:        authz.MethodHeader,
		UserID:        userID,
		Roles:         roles,
		Claims:        claims,
		AgentID:       agentID,
	}, nil
}
