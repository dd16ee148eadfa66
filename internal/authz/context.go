// Package authz implements the authorization decision engine: policy and
// rule representation, matcher evaluation, and priority-ordered decisions
// over an immutable, atomically swappable policy snapshot.
package authz

// AuthMethod identifies the authentication strategy that produced an
// AuthContext.
type AuthMethod string

const (
	MethodJWT    AuthMethod = "jwt"
	MethodAPIKey AuthMethod = "api_key"
	MethodHeader AuthMethod = "header"
	MethodNone   AuthMethod = "none"
)

// AuthContext carries the resolved identity facts for one request. It is
// built once by the identity layer and must not be mutated afterwards.
type AuthContext struct {
	UserID        string         `json:"user_id,omitempty"`
	Roles         []string       `json:"roles,omitempty"`
	Claims        map[string]any `json:"claims,omitempty"`
	AgentID       string         `json:"agent_id,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	Authenticated bool           `json:"authenticated"`
	Method        AuthMethod     `json:"auth_method,omitempty"`
}

// HasRole reports whether the context carries the given role.
func (a *AuthContext) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ResourceType classifies the capability being accessed.
type ResourceType string

const (
	TypeTool     ResourceType = "tools"
	TypeResource ResourceType = "resources"
	TypePrompt   ResourceType = "prompts"
)

// Resource describes the capability (tool, resource, or prompt) that a
// caller is attempting to use. For resources the Name holds the URI.
type Resource struct {
	Name        string         `json:"name" yaml:"name" validate:"required"`
	Namespace   string         `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Version     string         `json:"version,omitempty" yaml:"version,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ResourceContext describes one attempted capability access. The host
// collaborator builds one per attempt (one per listed item for list
// operations) and it is immutable once built.
type ResourceContext struct {
	Type      ResourceType `json:"resource_type" validate:"required,oneof=tools resources prompts"`
	Resource  Resource     `json:"resource" validate:"required"`
	Action    string       `json:"action" validate:"required"`
	Method    string       `json:"method"`
	RequestID string       `json:"request_id,omitempty"`
	// Timestamp is unix seconds; zero means unknown.
	Timestamp float64 `json:"timestamp,omitempty"`
}
