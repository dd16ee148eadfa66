package authz

// DecisionReason explains why a decision came out the way it did.
type DecisionReason string

const (
	ReasonRuleMatched          DecisionReason = "rule_matched"
	ReasonDefaultEffect        DecisionReason = "default_effect"
	ReasonAuthenticationFailed DecisionReason = "authentication_failed"
	ReasonInvalidToken         DecisionReason = "invalid_token"
	ReasonMissingClaims        DecisionReason = "missing_claims"
	ReasonConditionFailed      DecisionReason = "condition_failed"
)

// Decision is the outcome of one Evaluate call, including the audit
// metadata callers need to explain or log the result. Decisions are
// ephemeral; the engine never stores them.
type Decision struct {
	Allowed     bool           `json:"allowed"`
	Reason      DecisionReason `json:"reason"`
	MatchedRule string         `json:"matched_rule,omitempty"`
	Message     string         `json:"message,omitempty"`

	// EvaluatedRules counts how many rules were considered before the
	// decision was reached.
	EvaluatedRules int `json:"evaluated_rules"`
	// EvaluationTime is wall-clock evaluation duration in milliseconds.
	EvaluationTime float64 `json:"evaluation_time_ms"`
}
