package authz

// Effect is the binary outcome a rule or policy default produces.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Operator is the comparison applied by a Condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpRegex       Operator = "regex"
	OpGreater     Operator = "gt"
	OpLess        Operator = "lt"
	OpGreaterEq   Operator = "gte"
	OpLessEq      Operator = "lte"
)

// Condition compares one field of the evaluation context (addressed by a
// dot path such as "tool.args.location" or "user.claims.department")
// against a configured value.
type Condition struct {
	Field    string   `json:"field" yaml:"field" validate:"required"`
	Operator Operator `json:"operator" yaml:"operator" validate:"required,oneof=equals not_equals in not_in contains not_contains starts_with ends_with regex gt lt gte lte"`
	Value    any      `json:"value" yaml:"value"`
}

// AgentMatcher constrains which callers a rule applies to. Every set
// criterion must hold (AND); within one criterion any value may match
// (OR). An empty matcher matches every caller.
type AgentMatcher struct {
	// UserIDs are glob patterns tested against AuthContext.UserID.
	UserIDs []string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	// Roles is exact set membership; the wildcard "*" means the caller
	// must hold at least one role, whichever it is.
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	// AgentIDs are glob patterns tested against AuthContext.AgentID.
	AgentIDs []string `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	// Patterns are glob patterns tested against UserID or AgentID.
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}

// ToolMatcher constrains which tools a rule applies to.
type ToolMatcher struct {
	Names      []string `json:"names,omitempty" yaml:"names,omitempty"`
	Patterns   []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Namespaces []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ResourceMatcher constrains which resource URIs a rule applies to.
type ResourceMatcher struct {
	URIs     []string `json:"uris,omitempty" yaml:"uris,omitempty"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	// Schemes match the URI scheme, e.g. "user" for user://profile.
	Schemes []string `json:"schemes,omitempty" yaml:"schemes,omitempty"`
}

// PromptMatcher constrains which prompts a rule applies to.
type PromptMatcher struct {
	Names    []string `json:"names,omitempty" yaml:"names,omitempty"`
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Rule is one atomic allow/deny predicate. A rule matches when the
// requested action matches Actions, the caller matches Agents (if set),
// the capability matches the matcher for its type (if set), and every
// condition holds.
type Rule struct {
	Name        string           `json:"name" yaml:"name" validate:"required"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Effect      Effect           `json:"effect" yaml:"effect" validate:"required,oneof=allow deny"`
	Agents      *AgentMatcher    `json:"agents,omitempty" yaml:"agents,omitempty"`
	Tools       *ToolMatcher     `json:"tools,omitempty" yaml:"tools,omitempty"`
	Resources   *ResourceMatcher `json:"resources,omitempty" yaml:"resources,omitempty"`
	Prompts     *PromptMatcher   `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Actions     []string         `json:"actions" yaml:"actions" validate:"required,min=1,dive,required"`
	Conditions  []Condition      `json:"conditions,omitempty" yaml:"conditions,omitempty" validate:"dive"`
	Priority    int              `json:"priority" yaml:"priority"`
}

// Policy is a named, versioned collection of rules plus the default
// effect applied when none of them match.
type Policy struct {
	Name          string   `json:"name" yaml:"name" validate:"required"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version       string   `json:"version" yaml:"version" validate:"required"`
	DefaultEffect Effect   `json:"default_effect" yaml:"default_effect" validate:"required,oneof=allow deny"`
	Rules         []Rule   `json:"rules" yaml:"rules" validate:"dive"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedBy     string   `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// clone returns a copy whose Rules slice is independent of the receiver,
// so the engine can sort and retain it without aliasing caller memory.
func (p *Policy) clone() *Policy {
	cp := *p
	cp.Rules = make([]Rule, len(p.Rules))
	copy(cp.Rules, p.Rules)
	return &cp
}
