package authz

import "testing"

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		name, pattern string
		want          bool
	}{
		{"delete_user", "*delete*", true},
		{"get_weather", "*delete*", false},
		{"get_weather", "get_*", true},
		{"anything", "*", true},
		{"ab", "a?", true},
		{"abc", "a?", false},
		{"user://profile/1", "user://*", true},
		{"exact", "exact", true},
		{"exact2", "exact", false},
		{"a.b", "a.b", true},
		{"aXb", "a.b", false}, // '.' is literal, not regex
	}
	for _, c := range cases {
		if got := matchGlob(c.name, c.pattern); got != c.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", c.name, c.pattern, got, c.want)
		}
	}
}

func TestMatchAction(t *testing.T) {
	if !matchAction([]string{"*"}, "call") {
		t.Errorf("wildcard action should match")
	}
	if !matchAction([]string{"read", "lis*"}, "list") {
		t.Errorf("glob action should match")
	}
	if matchAction([]string{"read"}, "call") {
		t.Errorf("unrelated action should not match")
	}
}

func TestMatchAgentCriteriaAreANDed(t *testing.T) {
	auth := AuthContext{UserID: "alice", AgentID: "agent-7", Roles: []string{"dev"}}

	m := &AgentMatcher{UserIDs: []string{"ali*"}, Roles: []string{"dev"}}
	if !matchAgent(m, &auth) {
		t.Fatalf("both criteria hold, expected match")
	}
	m = &AgentMatcher{UserIDs: []string{"ali*"}, Roles: []string{"admin"}}
	if matchAgent(m, &auth) {
		t.Fatalf("role criterion fails, expected no match")
	}
}

func TestMatchAgentRoleWildcard(t *testing.T) {
	m := &AgentMatcher{Roles: []string{"*"}}

	withRole := AuthContext{UserID: "u", Roles: []string{"anything"}}
	if !matchAgent(m, &withRole) {
		t.Errorf("wildcard should match a caller holding any role")
	}
	noRole := AuthContext{UserID: "u"}
	if matchAgent(m, &noRole) {
		t.Errorf("wildcard requires at least one role")
	}
}

func TestMatchAgentGenericPatterns(t *testing.T) {
	m := &AgentMatcher{Patterns: []string{"svc-*"}}

	byUser := AuthContext{UserID: "svc-batch", AgentID: "other"}
	if !matchAgent(m, &byUser) {
		t.Errorf("pattern should match on user_id")
	}
	byAgent := AuthContext{UserID: "human", AgentID: "svc-crawler"}
	if !matchAgent(m, &byAgent) {
		t.Errorf("pattern should match on agent_id")
	}
	neither := AuthContext{UserID: "human", AgentID: "desktop"}
	if matchAgent(m, &neither) {
		t.Errorf("pattern matches neither id")
	}
}

func TestMatchTool(t *testing.T) {
	res := Resource{Name: "get_weather", Namespace: "weather", Tags: []string{"public", "readonly"}}

	if !matchTool(&ToolMatcher{Names: []string{"get_weather"}}, &res) {
		t.Errorf("exact name should match")
	}
	if !matchTool(&ToolMatcher{Patterns: []string{"get_*"}, Namespaces: []string{"weather"}}, &res) {
		t.Errorf("pattern+namespace should match")
	}
	if matchTool(&ToolMatcher{Patterns: []string{"get_*"}, Namespaces: []string{"billing"}}, &res) {
		t.Errorf("namespace mismatch: criteria are ANDed")
	}
	if !matchTool(&ToolMatcher{Tags: []string{"internal", "public"}}, &res) {
		t.Errorf("any shared tag suffices")
	}
	if matchTool(&ToolMatcher{Tags: []string{"internal"}}, &res) {
		t.Errorf("no shared tag, expected no match")
	}
}

func TestMatchResourceSchemes(t *testing.T) {
	res := Resource{Name: "admin://users/42"}

	if !matchResource(&ResourceMatcher{Schemes: []string{"admin"}}, &res) {
		t.Errorf("scheme should be extracted from the URI")
	}
	if matchResource(&ResourceMatcher{Schemes: []string{"user"}}, &res) {
		t.Errorf("wrong scheme should not match")
	}
	bare := Resource{Name: "no-scheme"}
	if matchResource(&ResourceMatcher{Schemes: []string{"admin"}}, &bare) {
		t.Errorf("schemeless URI should not match a scheme constraint")
	}
}

func TestMatchCapabilityUnrestrictedWhenNoMatcherAnywhere(t *testing.T) {
	rule := &Rule{Name: "r", Effect: EffectAllow, Actions: []string{"*"}}
	rc := ResourceContext{Type: TypePrompt, Resource: Resource{Name: "greeting"}, Action: "get"}

	if !matchCapability(rule, &rc, false) {
		t.Fatalf("rule with no matchers should be unrestricted")
	}
}

func TestMatchCapabilitySkipsWrongTypeWithoutFallback(t *testing.T) {
	rule := &Rule{
		Name:    "tool_only",
		Effect:  EffectAllow,
		Tools:   &ToolMatcher{Patterns: []string{"*"}},
		Actions: []string{"*"},
	}
	rc := ResourceContext{Type: TypeResource, Resource: Resource{Name: "user://data"}, Action: "read"}

	if matchCapability(rule, &rc, false) {
		t.Fatalf("tool matcher must not apply to resource requests by default")
	}
	if !matchCapability(rule, &rc, true) {
		t.Fatalf("legacy fallback enabled: tool matcher should apply by name")
	}
}

func TestLegacyFallbackYieldsToDedicatedMatcher(t *testing.T) {
	// When a rule carries a resource matcher, that matcher decides for
	// resource requests even with the fallback enabled.
	rule := &Rule{
		Name:      "both",
		Effect:    EffectAllow,
		Tools:     &ToolMatcher{Patterns: []string{"*"}},
		Resources: &ResourceMatcher{Schemes: []string{"public"}},
		Actions:   []string{"*"},
	}
	rc := ResourceContext{Type: TypeResource, Resource: Resource{Name: "secret://x"}, Action: "read"}

	if matchCapability(rule, &rc, true) {
		t.Fatalf("dedicated resource matcher must take precedence over fallback")
	}
}

func TestMatchPrompt(t *testing.T) {
	res := Resource{Name: "summarize", Tags: []string{"nlp"}}

	if !matchPrompt(&PromptMatcher{Patterns: []string{"summ*"}}, &res) {
		t.Errorf("prompt pattern should match")
	}
	if matchPrompt(&PromptMatcher{Names: []string{"translate"}}, &res) {
		t.Errorf("prompt name mismatch")
	}
}
