package auth

import "github.com/dmitrijs2005/contactkeeper/internal/common"

// Action is an operation on an owned resource.
type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionDelete
)

// Subject is the authenticated caller.
type Subject struct {
	ID   string
	Role string
}

// Policy decides whether a subject may act on a resource it may not own.
type Policy struct {
	adminBypass bool
}

// NewPolicy returns a Policy. With adminBypass set, admins may act on any
// resource; otherwise only owners may.
func NewPolicy(adminBypass bool) Policy {
	return Policy{adminBypass: adminBypass}
}

// Allowed reports whether subject may perform action on a resource owned by
// ownerID.
func (p Policy) Allowed(action Action, subject Subject, ownerID string) bool {
	return Allowed(action, subject, ownerID, p.adminBypass)
}

// Allowed is the pure rule: owners always, admins only when adminBypass is on.
// Every action is governed by the same rule today.
func Allowed(_ Action, subject Subject, ownerID string, adminBypass bool) bool {
	if subject.ID == "" {
		return false
	}
	if adminBypass && subject.Role == common.RoleAdmin {
		return true
	}
	return ownerID == subject.ID
}
