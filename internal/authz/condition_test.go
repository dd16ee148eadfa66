package authz

import "testing"

func sampleContext() evalContext {
	auth := AuthContext{
		UserID:        "alice",
		Roles:         []string{"dev", "oncall"},
		AgentID:       "agent-1",
		Authenticated: true,
		Claims:        map[string]any{"department": "platform", "level": 3},
	}
	rc := ResourceContext{
		Type: TypeTool,
		Resource: Resource{
			Name:      "deploy_service",
			Namespace: "ops",
			Tags:      []string{"dangerous"},
			Arguments: map[string]any{"environment": "staging", "replicas": 2},
		},
		Action:    "call",
		Method:    "tools/call",
		Timestamp: 1724500000,
	}
	return buildEvalContext(&auth, &rc)
}

func evalOne(t *testing.T, field string, op Operator, value any) bool {
	t.Helper()
	return evalCondition(&Condition{Field: field, Operator: op, Value: value}, sampleContext())
}

func TestConditionOperators(t *testing.T) {
	cases := []struct {
		name  string
		field string
		op    Operator
		value any
		want  bool
	}{
		{"equals string", "user.id", OpEquals, "alice", true},
		{"equals mismatch", "user.id", OpEquals, "bob", false},
		{"equals nested claim", "user.claims.department", OpEquals, "platform", true},
		{"equals numeric coercion", "user.claims.level", OpEquals, 3.0, true},
		{"not_equals", "user.id", OpNotEquals, "bob", true},
		{"in", "tool.args.environment", OpIn, []any{"staging", "dev"}, true},
		{"in miss", "tool.args.environment", OpIn, []any{"production"}, false},
		{"not_in", "tool.args.environment", OpNotIn, []any{"production"}, true},
		{"contains on list", "user.roles", OpContains, "oncall", true},
		{"contains on list miss", "user.roles", OpContains, "admin", false},
		{"contains substring", "tool.name", OpContains, "deploy", true},
		{"not_contains", "tool.name", OpNotContains, "delete", true},
		{"starts_with", "tool.name", OpStartsWith, "deploy_", true},
		{"ends_with", "tool.name", OpEndsWith, "_service", true},
		{"regex", "tool.name", OpRegex, "^deploy_[a-z]+$", true},
		{"regex miss", "tool.name", OpRegex, "^delete_", false},
		{"gt", "tool.args.replicas", OpGreater, 1, true},
		{"gt miss", "tool.args.replicas", OpGreater, 2, false},
		{"gte", "tool.args.replicas", OpGreaterEq, 2, true},
		{"lt", "user.claims.level", OpLess, 10, true},
		{"lte", "user.claims.level", OpLessEq, 3, true},
		{"string ordering", "user.id", OpLess, "bob", true},
		{"request namespace", "request.action", OpEquals, "call", true},
		{"resource_type", "request.resource_type", OpEquals, "tools", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := evalOne(t, c.field, c.op, c.value); got != c.want {
				t.Errorf("%s %s %v = %v, want %v", c.field, c.op, c.value, got, c.want)
			}
		})
	}
}

// Missing fields resolve to the absence sentinel; every operator,
// including the negated ones, must then evaluate false.
func TestMissingFieldFailsClosed(t *testing.T) {
	ops := []struct {
		op    Operator
		value any
	}{
		{OpEquals, "x"},
		{OpNotEquals, "x"},
		{OpIn, []any{"x"}},
		{OpNotIn, []any{"x"}},
		{OpContains, "x"},
		{OpNotContains, "x"},
		{OpStartsWith, "x"},
		{OpEndsWith, "x"},
		{OpRegex, ".*"},
		{OpGreater, 0},
		{OpLess, 0},
		{OpGreaterEq, 0},
		{OpLessEq, 0},
	}
	for _, c := range ops {
		if evalOne(t, "tool.args.no_such_field", c.op, c.value) {
			t.Errorf("operator %s on missing field must be false", c.op)
		}
		if evalOne(t, "no_such_namespace.x", c.op, c.value) {
			t.Errorf("operator %s on missing namespace must be false", c.op)
		}
	}
}

func TestTraversalThroughNonMapFailsClosed(t *testing.T) {
	// user.id is a string; descending into it must hit the sentinel.
	if evalOne(t, "user.id.deeper", OpEquals, "x") {
		t.Fatalf("path through a leaf value must resolve to absence")
	}
}

func TestMalformedRegexIsNonMatch(t *testing.T) {
	if evalOne(t, "tool.name", OpRegex, "([unclosed") {
		t.Fatalf("malformed regex must evaluate false, not panic")
	}
}

func TestTypeMismatchComparisonsFailClosed(t *testing.T) {
	// Ordering a string field against a number is undefined: false.
	if evalOne(t, "user.id", OpGreater, 5) {
		t.Errorf("string vs number ordering must be false")
	}
	if evalOne(t, "tool.args.replicas", OpLess, "many") {
		t.Errorf("number vs string ordering must be false")
	}
	// Equality across incompatible types is false, not an error.
	if evalOne(t, "user.claims.level", OpEquals, "three") {
		t.Errorf("number vs string equality must be false")
	}
}

func TestUnknownOperatorIsNonMatch(t *testing.T) {
	if evalOne(t, "user.id", Operator("sounds_like"), "alice") {
		t.Fatalf("unknown operator must be a non-match")
	}
}

func TestAllConditionsAreANDed(t *testing.T) {
	e := mustEngine(t, []Policy{{
		Name: "cond", Version: "1.0", DefaultEffect: EffectDeny,
		Rules: []Rule{{
			Name:    "staging_deploys",
			Effect:  EffectAllow,
			Actions: []string{"call"},
			Conditions: []Condition{
				{Field: "tool.args.environment", Operator: OpEquals, Value: "staging"},
				{Field: "user.roles", Operator: OpContains, Value: "oncall"},
			},
			Priority: 10,
		}},
	}})

	auth := AuthContext{UserID: "alice", Roles: []string{"oncall"}, Authenticated: true}
	ok := ResourceContext{
		Type:     TypeTool,
		Resource: Resource{Name: "deploy", Arguments: map[string]any{"environment": "staging"}},
		Action:   "call",
	}
	if d := e.Evaluate(auth, ok); !d.Allowed {
		t.Fatalf("both conditions hold, expected allow")
	}

	bad := ok
	bad.Resource.Arguments = map[string]any{"environment": "production"}
	if d := e.Evaluate(auth, bad); d.Allowed {
		t.Fatalf("one failing condition must reject the rule")
	}
}
