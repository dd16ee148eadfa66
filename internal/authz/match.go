package authz

import "strings"

// matchAction reports whether the requested action is covered by the
// rule's action list. "*" covers everything; other entries are globs.
func matchAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == "*" || matchGlob(action, a) {
			return true
		}
	}
	return false
}

// matchAgent applies the AND-of-criteria agent check from the rule's
// matcher. An unset criterion imposes no constraint.
func matchAgent(m *AgentMatcher, auth *AuthContext) bool {
	if len(m.UserIDs) > 0 && !matchAnyGlob(auth.UserID, m.UserIDs) {
		return false
	}
	if len(m.Roles) > 0 {
		if containsString(m.Roles, "*") {
			// Wildcard: the caller must hold at least one role.
			if len(auth.Roles) == 0 {
				return false
			}
		} else if !anyRoleHeld(m.Roles, auth) {
			return false
		}
	}
	if len(m.AgentIDs) > 0 && !matchAnyGlob(auth.AgentID, m.AgentIDs) {
		return false
	}
	if len(m.Patterns) > 0 &&
		!matchAnyGlob(auth.UserID, m.Patterns) &&
		!matchAnyGlob(auth.AgentID, m.Patterns) {
		return false
	}
	return true
}

func anyRoleHeld(roles []string, auth *AuthContext) bool {
	for _, r := range roles {
		if auth.HasRole(r) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func matchTool(m *ToolMatcher, res *Resource) bool {
	if len(m.Names) > 0 && !containsString(m.Names, res.Name) {
		return false
	}
	if len(m.Patterns) > 0 && !matchAnyGlob(res.Name, m.Patterns) {
		return false
	}
	if len(m.Namespaces) > 0 && !containsString(m.Namespaces, res.Namespace) {
		return false
	}
	if len(m.Tags) > 0 && !anyTagShared(m.Tags, res.Tags) {
		return false
	}
	return true
}

func matchResource(m *ResourceMatcher, res *Resource) bool {
	if len(m.URIs) > 0 && !containsString(m.URIs, res.Name) {
		return false
	}
	if len(m.Patterns) > 0 && !matchAnyGlob(res.Name, m.Patterns) {
		return false
	}
	if len(m.Schemes) > 0 {
		scheme := ""
		if i := strings.Index(res.Name, "://"); i >= 0 {
			scheme = res.Name[:i]
		}
		if !containsString(m.Schemes, scheme) {
			return false
		}
	}
	return true
}

func matchPrompt(m *PromptMatcher, res *Resource) bool {
	if len(m.Names) > 0 && !containsString(m.Names, res.Name) {
		return false
	}
	if len(m.Patterns) > 0 && !matchAnyGlob(res.Name, m.Patterns) {
		return false
	}
	if len(m.Tags) > 0 && !anyTagShared(m.Tags, res.Tags) {
		return false
	}
	return true
}

func anyTagShared(want, have []string) bool {
	for _, w := range want {
		if containsString(have, w) {
			return true
		}
	}
	return false
}

// matchCapability dispatches to the matcher shape owned by the request's
// resource type. A rule with no matcher for any type is unrestricted on
// this dimension. With legacyToolFallback set, a rule whose only matcher
// is a tool matcher is additionally applied to resource and prompt
// requests by reusing its name/pattern checks against the resource name;
// that compatibility shim is opt-in, never the default.
func matchCapability(rule *Rule, rc *ResourceContext, legacyToolFallback bool) bool {
	switch {
	case rule.Tools != nil && rc.Type == TypeTool:
		return matchTool(rule.Tools, &rc.Resource)
	case rule.Resources != nil && rc.Type == TypeResource:
		return matchResource(rule.Resources, &rc.Resource)
	case rule.Prompts != nil && rc.Type == TypePrompt:
		return matchPrompt(rule.Prompts, &rc.Resource)
	case rule.Tools == nil && rule.Resources == nil && rule.Prompts == nil:
		return true
	case legacyToolFallback && rule.Tools != nil &&
		(rc.Type == TypeResource || rc.Type == TypePrompt):
		return matchTool(rule.Tools, &rc.Resource)
	default:
		return false
	}
}
