package handler

import (
	"fmt"
	"net/http"
	"strings"
)

// Policy selects one generated operation and the access rule guarding it.
type Policy int

const (
	// CreateAsOwner inserts a record owned by the caller.
	CreateAsOwner Policy = iota + 1
	// Read finds a record by id for anyone.
	Read
	// ReadIfOwner finds a record by id for its owner only.
	ReadIfOwner
	// ReadIfVisible finds a record by id when it is public, or for its
	// owner when it is private.
	ReadIfVisible
	// UpdateIfOwner rewrites a record owned by the caller.
	UpdateIfOwner
	// DeleteIfOwner removes a record owned by the caller.
	DeleteIfOwner
)

var policyNames = map[Policy]string{
	CreateAsOwner: "create_as_owner",
	Read:          "read",
	ReadIfOwner:   "read_if_owner",
	ReadIfVisible: "read_if_visible",
	UpdateIfOwner: "update_if_owner",
	DeleteIfOwner: "delete_if_owner",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy reads a policy from its snake_case name.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown policy %q", s)
}

// Method is the HTTP method serving the policy.
func (p Policy) Method() string {
	switch p {
	case CreateAsOwner:
		return http.MethodPost
	case Read, ReadIfOwner, ReadIfVisible:
		return http.MethodGet
	case UpdateIfOwner:
		return http.MethodPut
	case DeleteIfOwner:
		return http.MethodDelete
	}
	return ""
}

// Path is the route path relative to the entity prefix.
func (p Policy) Path() string {
	switch p {
	case Read, ReadIfOwner, ReadIfVisible, DeleteIfOwner:
		return "/:id"
	}
	return "/"
}

// NeedsOwner reports whether the entity must carry an owner field.
func (p Policy) NeedsOwner() bool {
	return p != Read
}

// NeedsVisibility reports whether the entity must carry a visibility field.
func (p Policy) NeedsVisibility() bool {
	return p == ReadIfVisible
}

// RequiresAuth reports whether a guest is always refused.
func (p Policy) RequiresAuth() bool {
	switch p {
	case Read, ReadIfVisible:
		return false
	}
	return true
}
