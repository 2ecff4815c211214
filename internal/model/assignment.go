// internal/model/assignment.go
package model

import "fmt"

// PrincipalKind is the side of a role assignment receiving the role.
type PrincipalKind string

const (
	PrincipalUser PrincipalKind = "user"
	PrincipalTeam PrincipalKind = "team"
)

// Principal identifies the user or team a role is assigned to. Team
// principals use the composite "organization/name" key.
type Principal struct {
	Kind PrincipalKind `yaml:"kind" validate:"required,oneof=user team"`
	Name string        `yaml:"name" validate:"required"`
}

// Ref returns the entity reference for the principal.
func (p Principal) Ref() Ref {
	if p.Kind == PrincipalTeam {
		return Ref{Kind: KindTeam, Key: p.Name}
	}
	return Ref{Kind: KindUser, Key: p.Name}
}

// RoleAssignment grants a role definition to a principal on a scope
// target. A zero Target means the assignment is system-wide, which is
// only valid for roles with global scope. At most one assignment
// exists per (principal, role, target) tuple; duplicates in desired
// state collapse to a single logical assignment.
type RoleAssignment struct {
	Principal Principal `yaml:"principal"`
	Role      string    `yaml:"role" validate:"required"`
	Target    Ref       `yaml:"target,omitempty"`
}

func (a RoleAssignment) Kind() Kind { return KindRoleAssignment }

func (a RoleAssignment) IdentityKey() string {
	target := "system"
	if !a.Target.IsZero() {
		target = a.Target.String()
	}
	return fmt.Sprintf("%s:%s+%s@%s", a.Principal.Kind, a.Principal.Name, a.Role, target)
}

func (a RoleAssignment) Ref() Ref {
	return Ref{Kind: KindRoleAssignment, Key: a.IdentityKey()}
}

func (a RoleAssignment) DependencyRefs() []Ref {
	refs := []Ref{
		a.Principal.Ref(),
		{Kind: KindRoleDefinition, Key: a.Role},
	}
	if !a.Target.IsZero() {
		refs = append(refs, a.Target)
	}
	return refs
}

// Attributes is empty: every field of an assignment is part of its
// identity, so assignments are only ever created or deleted.
func (a RoleAssignment) Attributes() map[string]any {
	return nil
}
