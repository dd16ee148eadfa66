package policy

import (
	"testing"

	"github.com/dhawalhost/mcpguard/internal/authz"
)

func TestBuilderProducesValidatedPolicy(t *testing.T) {
	p, err := NewPolicy("ops").
		Description("operations policy").
		DenyByDefault().
		Tags("ops", "generated").
		CreatedBy("platform-team").
		Rule(AdminFullAccess()).
		Rule(DenySensitiveTools()).
		Rule(NewRule("oncall_deploys").
			ForRoles("oncall").
			ForToolPatterns("deploy_*").
			ForActions("call").
			WhenEquals("tool.args.environment", "staging").
			Priority(500)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Rules) != 3 {
		t.Fatalf("rules = %d, want 3", len(p.Rules))
	}
	if p.DefaultEffect != authz.EffectDeny {
		t.Errorf("default effect = %q", p.DefaultEffect)
	}

	e, err := authz.NewEngine([]authz.Policy{p})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Priority 1000 admin allow wins over the 900 deny on delete tools.
	admin := authz.AuthContext{UserID: "root", Roles: []string{"admin"}, Authenticated: true}
	d := e.Evaluate(admin, authz.ResourceContext{
		Type:     authz.TypeTool,
		Resource: authz.Resource{Name: "delete_user"},
		Action:   "call",
	})
	if !d.Allowed || d.MatchedRule != "admin_access" {
		t.Fatalf("decision = %+v, want allow via admin_access", d)
	}

	// Non-admin hits the sensitive-tool deny.
	dev := authz.AuthContext{UserID: "d", Roles: []string{"oncall"}, Authenticated: true}
	d = e.Evaluate(dev, authz.ResourceContext{
		Type:     authz.TypeTool,
		Resource: authz.Resource{Name: "destroy_cluster"},
		Action:   "call",
	})
	if d.Allowed || d.MatchedRule != "deny_sensitive" {
		t.Fatalf("decision = %+v, want deny via deny_sensitive", d)
	}

	// Conditioned rule only fires when the argument matches.
	d = e.Evaluate(dev, authz.ResourceContext{
		Type: authz.TypeTool,
		Resource: authz.Resource{
			Name:      "deploy_api",
			Arguments: map[string]any{"environment": "staging"},
		},
		Action: "call",
	})
	if !d.Allowed || d.MatchedRule != "oncall_deploys" {
		t.Fatalf("decision = %+v, want allow via oncall_deploys", d)
	}
}

func TestBuilderRejectsInvalidRule(t *testing.T) {
	_, err := NewPolicy("bad").
		Rule(NewRule("r").ForActions()). // empty actions
		Build()
	if err == nil {
		t.Fatalf("expected validation failure for empty actions")
	}
}

func TestBuilderDefaultEffectIsDeny(t *testing.T) {
	p, err := NewPolicy("empty").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.DefaultEffect != authz.EffectDeny {
		t.Fatalf("default effect = %q, want deny", p.DefaultEffect)
	}
	if p.Version != "1.0" {
		t.Errorf("version = %q, want 1.0", p.Version)
	}
}
