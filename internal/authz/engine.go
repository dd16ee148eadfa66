package authz

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// snapshot is one immutable, internally consistent version of the policy
// set. Readers load it with a single atomic pointer read; writers build a
// replacement and publish it with a single swap, so an in-flight Evaluate
// always sees exactly one whole version.
type snapshot struct {
	policies     []*Policy
	defaultAllow bool
}

func newSnapshot(policies []*Policy) *snapshot {
	snap := &snapshot{policies: policies}
	for _, p := range policies {
		if p.DefaultEffect == EffectAllow {
			snap.defaultAllow = true
		}
	}
	return snap
}

// sortRules orders rules by descending priority. SliceStable keeps the
// definition order for equal priorities. Only ever called on freshly
// cloned policies; published snapshots are never mutated.
func sortRules(p *Policy) {
	sort.SliceStable(p.Rules, func(i, j int) bool {
		return p.Rules[i].Priority > p.Rules[j].Priority
	})
}

// Engine evaluates capability-access attempts against an ordered set of
// policies. Evaluate is safe for unbounded concurrent use; mutations are
// serialized and published copy-on-write.
type Engine struct {
	mu   sync.Mutex // serializes mutations only
	snap atomic.Pointer[snapshot]

	legacyToolFallback bool
	logger             *zap.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLegacyToolFallback enables the compatibility shim that reapplies a
// rule's tool matcher to resource and prompt requests when the rule
// defines no matcher for those types. Off by default.
func WithLegacyToolFallback(enabled bool) Option {
	return func(e *Engine) { e.legacyToolFallback = enabled }
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine builds an engine from already-validated policy records (the
// loader or builder is responsible for shape validation). Policy names
// must be unique; a duplicate fails construction.
func NewEngine(policies []Policy, opts ...Option) (*Engine, error) {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("authz.engine")

	cloned, err := clonePolicies(policies)
	if err != nil {
		return nil, err
	}
	e.snap.Store(newSnapshot(cloned))
	e.logger.Info("policy engine initialized", zap.Int("policies", len(policies)))
	return e, nil
}

func clonePolicies(policies []Policy) ([]*Policy, error) {
	seen := make(map[string]struct{}, len(policies))
	out := make([]*Policy, 0, len(policies))
	for i := range policies {
		p := &policies[i]
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrPolicyExists, p.Name)
		}
		seen[p.Name] = struct{}{}
		c := p.clone()
		sortRules(c)
		out = append(out, c)
	}
	return out, nil
}

// Evaluate decides whether the described access is allowed. It performs
// no I/O, never blocks on other evaluations, and always runs to
// completion so the audit fields stay consistent.
func (e *Engine) Evaluate(auth AuthContext, rc ResourceContext) Decision {
	start := time.Now()

	if !auth.Authenticated {
		return Decision{
			Allowed:        false,
			Reason:         ReasonAuthenticationFailed,
			Message:        "authentication required",
			EvaluatedRules: 0,
			EvaluationTime: elapsedMillis(start),
		}
	}

	snap := e.snap.Load()
	evaluated := 0
	for _, p := range snap.policies {
		for i := range p.Rules {
			rule := &p.Rules[i]
			evaluated++
			if !e.ruleMatches(rule, &auth, &rc) {
				continue
			}
			e.logger.Debug("rule matched",
				zap.String("policy", p.Name),
				zap.String("rule", rule.Name),
				zap.String("effect", string(rule.Effect)),
				zap.String("user_id", auth.UserID),
				zap.String("capability", rc.Resource.Name),
			)
			return Decision{
				Allowed:        rule.Effect == EffectAllow,
				Reason:         ReasonRuleMatched,
				MatchedRule:    rule.Name,
				Message:        fmt.Sprintf("matched rule: %s", rule.Name),
				EvaluatedRules: evaluated,
				EvaluationTime: elapsedMillis(start),
			}
		}
	}

	// No rule matched anywhere: the aggregate default is allow when any
	// loaded policy defaults to allow. Deliberately permissive; see the
	// package tests that pin this behavior.
	return Decision{
		Allowed:        snap.defaultAllow,
		Reason:         ReasonDefaultEffect,
		Message:        "no matching rules, using default effect",
		EvaluatedRules: evaluated,
		EvaluationTime: elapsedMillis(start),
	}
}

// ruleMatches applies action, agent, capability, and condition checks.
// Any panic during matching counts as a non-match so an evaluation
// failure can never turn into an authorization bypass.
func (e *Engine) ruleMatches(rule *Rule, auth *AuthContext, rc *ResourceContext) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("rule evaluation panic treated as non-match",
				zap.String("rule", rule.Name), zap.Any("panic", r))
			matched = false
		}
	}()

	if !matchAction(rule.Actions, rc.Action) {
		return false
	}
	if rule.Agents != nil && !matchAgent(rule.Agents, auth) {
		return false
	}
	if !matchCapability(rule, rc, e.legacyToolFallback) {
		return false
	}
	if len(rule.Conditions) > 0 {
		ctx := buildEvalContext(auth, rc)
		for i := range rule.Conditions {
			if !evalCondition(&rule.Conditions[i], ctx) {
				return false
			}
		}
	}
	return true
}

// AddPolicy appends a policy to the evaluation order. Adding a name that
// is already present is a configuration error.
func (e *Engine) AddPolicy(p Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	for _, existing := range cur.policies {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: %q", ErrPolicyExists, p.Name)
		}
	}
	next := make([]*Policy, len(cur.policies), len(cur.policies)+1)
	copy(next, cur.policies)
	c := p.clone()
	sortRules(c)
	next = append(next, c)
	e.snap.Store(newSnapshot(next))
	e.logger.Info("policy added", zap.String("policy", p.Name))
	return nil
}

// RemovePolicy removes the named policy, reporting whether it was
// present.
func (e *Engine) RemovePolicy(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	next := make([]*Policy, 0, len(cur.policies))
	found := false
	for _, p := range cur.policies {
		if p.Name == name {
			found = true
			continue
		}
		next = append(next, p)
	}
	if !found {
		return false
	}
	e.snap.Store(newSnapshot(next))
	e.logger.Info("policy removed", zap.String("policy", name))
	return true
}

// Reload atomically replaces the whole policy set. On validation failure
// (duplicate names) the previous set stays active untouched.
func (e *Engine) Reload(policies []Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cloned, err := clonePolicies(policies)
	if err != nil {
		return err
	}
	e.snap.Store(newSnapshot(cloned))
	e.logger.Info("policies reloaded", zap.Int("policies", len(policies)))
	return nil
}

// Policy returns a copy of the named policy.
func (e *Engine) Policy(name string) (Policy, error) {
	for _, p := range e.snap.Load().policies {
		if p.Name == name {
			return *p.clone(), nil
		}
	}
	return Policy{}, fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
}

// PolicyNames lists loaded policy names in evaluation order.
func (e *Engine) PolicyNames() []string {
	snap := e.snap.Load()
	names := make([]string, len(snap.policies))
	for i, p := range snap.policies {
		names[i] = p.Name
	}
	return names
}

// PolicyCount reports how many policies are loaded.
func (e *Engine) PolicyCount() int {
	return len(e.snap.Load().policies)
}

// Policies returns a copy of every loaded policy in evaluation order.
func (e *Engine) Policies() []Policy {
	snap := e.snap.Load()
	out := make([]Policy, len(snap.policies))
	for i, p := range snap.policies {
		out[i] = *p.clone()
	}
	return out
}

func elapsedMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
