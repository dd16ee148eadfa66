package authz

import "errors"

// Engine configuration errors. Mutation operations report these instead
// of silently no-opping, so a misconfigured caller can never leave the
// engine in an over-permissive state.
var (
	// ErrPolicyExists is returned by AddPolicy for a duplicate name.
	ErrPolicyExists = errors.New("policy already exists")
	// ErrPolicyNotFound is returned when a named policy is absent.
	ErrPolicyNotFound = errors.New("policy not found")
)
