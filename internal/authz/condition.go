package authz

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// evalContext is the read-only tree conditions resolve fields against.
// It exposes exactly three namespaces: user.*, tool.* (the attempted
// capability's descriptor, whatever its type), and request.*.
type evalContext map[string]any

func buildEvalContext(auth *AuthContext, rc *ResourceContext) evalContext {
	return evalContext{
		"user": map[string]any{
			"id":            auth.UserID,
			"roles":         auth.Roles,
			"agent_id":      auth.AgentID,
			"authenticated": auth.Authenticated,
			"claims":        auth.Claims,
		},
		"tool": map[string]any{
			"name":      rc.Resource.Name,
			"namespace": rc.Resource.Namespace,
			"version":   rc.Resource.Version,
			"tags":      rc.Resource.Tags,
			"args":      rc.Resource.Arguments,
			"metadata":  rc.Resource.Metadata,
		},
		"request": map[string]any{
			"action":        rc.Action,
			"method":        rc.Method,
			"resource_type": string(rc.Type),
			"timestamp":     rc.Timestamp,
		},
	}
}

// resolve walks a dot path through the context tree. The second return
// is false when any segment is missing; callers must treat that as the
// absence sentinel and fail closed.
func (c evalContext) resolve(path string) (any, bool) {
	var cur any = map[string]any(c)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// evalCondition evaluates one condition against the context tree. A
// missing field, an unknown operator, a malformed regex, or a type
// mismatch all evaluate to false; nothing here ever panics outward.
func evalCondition(cond *Condition, ctx evalContext) bool {
	field, ok := ctx.resolve(cond.Field)
	if !ok {
		// Absent field: no operator is defined to detect absence, so
		// every comparison against the sentinel is false.
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return looseEqual(field, cond.Value)
	case OpNotEquals:
		return !looseEqual(field, cond.Value)
	case OpIn:
		return valueIn(field, cond.Value)
	case OpNotIn:
		return !valueIn(field, cond.Value)
	case OpContains:
		return valueContains(field, cond.Value)
	case OpNotContains:
		return !valueContains(field, cond.Value)
	case OpStartsWith:
		return strings.HasPrefix(toString(field), toString(cond.Value))
	case OpEndsWith:
		return strings.HasSuffix(toString(field), toString(cond.Value))
	case OpRegex:
		re, err := regexp.Compile(toString(cond.Value))
		if err != nil {
			return false
		}
		return re.MatchString(toString(field))
	case OpGreater:
		return compareOrdered(field, cond.Value) > 0
	case OpLess:
		return compareOrdered(field, cond.Value) < 0
	case OpGreaterEq:
		cmp := compareOrdered(field, cond.Value)
		return cmp == 0 || cmp == 1
	case OpLessEq:
		cmp := compareOrdered(field, cond.Value)
		return cmp == 0 || cmp == -1
	default:
		return false
	}
}

// looseEqual compares with numeric coercion so a YAML int matches a JSON
// float, and string-to-string otherwise.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	if ab, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return bok && ab == bb
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok || bok {
		return aok && bok && as == bs
	}
	return reflect.DeepEqual(a, b)
}

// valueIn checks membership of the field value in the condition's list.
func valueIn(field, value any) bool {
	list, ok := toSlice(value)
	if !ok {
		return false
	}
	for _, item := range list {
		if looseEqual(field, item) {
			return true
		}
	}
	return false
}

// valueContains checks element membership when the field is a list, and
// substring containment otherwise.
func valueContains(field, value any) bool {
	if list, ok := toSlice(field); ok {
		for _, item := range list {
			if looseEqual(item, value) {
				return true
			}
		}
		return false
	}
	return strings.Contains(toString(field), toString(value))
}

// compareOrdered returns -1, 0, or 1 for comparable operands, or an
// out-of-band 2 when the operands are not mutually ordered (which makes
// every ordering operator false, the fail-closed default).
func compareOrdered(a, b any) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
		return 2
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	return 2
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}
