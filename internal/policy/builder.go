package policy

import "github.com/dhawalhost/mcpguard/internal/authz"

// Builder assembles a policy programmatically. Terminal Build validates
// through the same path as the YAML loader, so built and loaded policies
// obey identical shape rules.
type Builder struct {
	p authz.Policy
}

// NewPolicy starts a builder for a named policy. Defaults: version 1.0,
// default effect deny.
func NewPolicy(name string) *Builder {
	return &Builder{p: authz.Policy{
		Name:          name,
		Version:       "1.0",
		DefaultEffect: authz.EffectDeny,
	}}
}

func (b *Builder) Description(d string) *Builder {
	b.p.Description = d
	return b
}

func (b *Builder) Version(v string) *Builder {
	b.p.Version = v
	return b
}

func (b *Builder) AllowByDefault() *Builder {
	b.p.DefaultEffect = authz.EffectAllow
	return b
}

func (b *Builder) DenyByDefault() *Builder {
	b.p.DefaultEffect = authz.EffectDeny
	return b
}

func (b *Builder) Tags(tags ...string) *Builder {
	b.p.Tags = append(b.p.Tags, tags...)
	return b
}

func (b *Builder) CreatedBy(creator string) *Builder {
	b.p.CreatedBy = creator
	return b
}

// Rule appends a finished rule builder to the policy.
func (b *Builder) Rule(r *RuleBuilder) *Builder {
	b.p.Rules = append(b.p.Rules, r.rule)
	return b
}

// Build validates and returns the policy.
func (b *Builder) Build() (authz.Policy, error) {
	p := b.p
	if err := NewLoader(nil).Validate(&p); err != nil {
		return authz.Policy{}, err
	}
	return p, nil
}

// RuleBuilder assembles one rule. Defaults: effect allow, actions ["*"],
// priority 100.
type RuleBuilder struct {
	rule authz.Rule
}

// NewRule starts a rule builder.
func NewRule(name string) *RuleBuilder {
	return &RuleBuilder{rule: authz.Rule{
		Name:     name,
		Effect:   authz.EffectAllow,
		Actions:  []string{"*"},
		Priority: 100,
	}}
}

func (r *RuleBuilder) Description(d string) *RuleBuilder {
	r.rule.Description = d
	return r
}

func (r *RuleBuilder) Allow() *RuleBuilder {
	r.rule.Effect = authz.EffectAllow
	return r
}

func (r *RuleBuilder) Deny() *RuleBuilder {
	r.rule.Effect = authz.EffectDeny
	return r
}

func (r *RuleBuilder) agents() *authz.AgentMatcher {
	if r.rule.Agents == nil {
		r.rule.Agents = &authz.AgentMatcher{}
	}
	return r.rule.Agents
}

func (r *RuleBuilder) tools() *authz.ToolMatcher {
	if r.rule.Tools == nil {
		r.rule.Tools = &authz.ToolMatcher{}
	}
	return r.rule.Tools
}

func (r *RuleBuilder) ForUsers(userIDs ...string) *RuleBuilder {
	r.agents().UserIDs = append(r.agents().UserIDs, userIDs...)
	return r
}

func (r *RuleBuilder) ForRoles(roles ...string) *RuleBuilder {
	r.agents().Roles = append(r.agents().Roles, roles...)
	return r
}

func (r *RuleBuilder) ForAgents(agentIDs ...string) *RuleBuilder {
	r.agents().AgentIDs = append(r.agents().AgentIDs, agentIDs...)
	return r
}

func (r *RuleBuilder) ForPatterns(patterns ...string) *RuleBuilder {
	r.agents().Patterns = append(r.agents().Patterns, patterns...)
	return r
}

func (r *RuleBuilder) ForTools(names ...string) *RuleBuilder {
	r.tools().Names = append(r.tools().Names, names...)
	return r
}

func (r *RuleBuilder) ForToolPatterns(patterns ...string) *RuleBuilder {
	r.tools().Patterns = append(r.tools().Patterns, patterns...)
	return r
}

func (r *RuleBuilder) ForNamespaces(namespaces ...string) *RuleBuilder {
	r.tools().Namespaces = append(r.tools().Namespaces, namespaces...)
	return r
}

func (r *RuleBuilder) ForToolTags(tags ...string) *RuleBuilder {
	r.tools().Tags = append(r.tools().Tags, tags...)
	return r
}

func (r *RuleBuilder) ForResources(m authz.ResourceMatcher) *RuleBuilder {
	r.rule.Resources = &m
	return r
}

func (r *RuleBuilder) ForPrompts(m authz.PromptMatcher) *RuleBuilder {
	r.rule.Prompts = &m
	return r
}

func (r *RuleBuilder) ForActions(actions ...string) *RuleBuilder {
	r.rule.Actions = actions
	return r
}

// When adds a condition.
func (r *RuleBuilder) When(field string, op authz.Operator, value any) *RuleBuilder {
	r.rule.Conditions = append(r.rule.Conditions, authz.Condition{
		Field: field, Operator: op, Value: value,
	})
	return r
}

func (r *RuleBuilder) WhenEquals(field string, value any) *RuleBuilder {
	return r.When(field, authz.OpEquals, value)
}

func (r *RuleBuilder) WhenIn(field string, values []any) *RuleBuilder {
	return r.When(field, authz.OpIn, values)
}

func (r *RuleBuilder) WhenContains(field string, value any) *RuleBuilder {
	return r.When(field, authz.OpContains, value)
}

func (r *RuleBuilder) Priority(p int) *RuleBuilder {
	r.rule.Priority = p
	return r
}

// AdminFullAccess is a ready-made rule granting the admin role every
// action on every tool at high priority.
func AdminFullAccess() *RuleBuilder {
	return NewRule("admin_access").
		ForRoles("admin").
		ForToolPatterns("*").
		Allow().
		Priority(1000)
}

// DenySensitiveTools is a ready-made rule blocking destructive tool
// names for everyone.
func DenySensitiveTools() *RuleBuilder {
	return NewRule("deny_sensitive").
		ForToolPatterns("*admin*", "*delete*", "*destroy*").
		Deny().
		Priority(900)
}
