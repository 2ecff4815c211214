// internal/model/state.go
package model

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// DesiredState is the fully materialized declarative input for one
// reconciliation pass. It is discarded when the pass ends; the engine
// keeps no state across passes.
type DesiredState struct {
	Organizations   []Organization   `yaml:"organizations,omitempty"`
	Teams           []Team           `yaml:"teams,omitempty"`
	Users           []User           `yaml:"users,omitempty"`
	RoleDefinitions []RoleDefinition `yaml:"role_definitions,omitempty"`
	Assignments     []RoleAssignment `yaml:"role_assignments,omitempty"`
}

// Entities returns the declared entities of one kind.
func (s *DesiredState) Entities(kind Kind) []Entity {
	var out []Entity
	switch kind {
	case KindOrganization:
		for _, o := range s.Organizations {
			out = append(out, o)
		}
	case KindTeam:
		for _, t := range s.Teams {
			out = append(out, t)
		}
	case KindUser:
		for _, u := range s.Users {
			out = append(out, u)
		}
	case KindRoleDefinition:
		for _, r := range s.RoleDefinitions {
			out = append(out, r)
		}
	case KindRoleAssignment:
		for _, a := range s.Assignments {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the total number of declared entities.
func (s *DesiredState) Len() int {
	return len(s.Organizations) + len(s.Teams) + len(s.Users) +
		len(s.RoleDefinitions) + len(s.Assignments)
}

// Validate checks the desired state before any backend call is made.
// It enforces per-entity field constraints, rejects duplicate
// identities with conflicting attributes (identical duplicates are
// collapsed later by the differ), and checks role scope against
// assignment targets where the role is declared in the same batch.
// All problems are collected into a single ValidationError.
func (s *DesiredState) Validate() error {
	validate := validator.New()

	var problems []string

	for _, kind := range Kinds() {
		seen := make(map[string]Entity)
		for _, e := range s.Entities(kind) {
			if err := validate.Struct(e); err != nil {
				problems = append(problems, fmt.Sprintf("%s %q: %v", kind, e.IdentityKey(), err))
				continue
			}
			key := e.IdentityKey()
			prev, ok := seen[key]
			if !ok {
				seen[key] = e
				continue
			}
			if !reflect.DeepEqual(prev.Attributes(), e.Attributes()) {
				problems = append(problems, fmt.Sprintf("%s %q declared twice with conflicting attributes", kind, key))
			}
		}
	}

	problems = append(problems, s.checkAssignmentScopes()...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// checkAssignmentScopes verifies assignment targets against the scope
// of roles declared in the same batch. Roles that only exist live are
// left to the backend to police.
func (s *DesiredState) checkAssignmentScopes() []string {
	scopes := make(map[string]RoleScope, len(s.RoleDefinitions))
	for _, r := range s.RoleDefinitions {
		scopes[r.Name] = r.Scope
	}

	var problems []string
	for _, a := range s.Assignments {
		if !a.Target.IsZero() && a.Target.Kind != KindOrganization && a.Target.Kind != KindTeam {
			problems = append(problems, fmt.Sprintf("role_assignment %q: target kind %q is not assignable", a.IdentityKey(), a.Target.Kind))
			continue
		}
		scope, ok := scopes[a.Role]
		if !ok {
			continue
		}
		switch {
		case scope == ScopeGlobal && !a.Target.IsZero():
			problems = append(problems, fmt.Sprintf("role_assignment %q: role %q is global and cannot take a target", a.IdentityKey(), a.Role))
		case scope == ScopeOrganization && a.Target.Kind != KindOrganization:
			problems = append(problems, fmt.Sprintf("role_assignment %q: role %q applies to organizations", a.IdentityKey(), a.Role))
		case scope == ScopeTeam && a.Target.Kind != KindTeam:
			problems = append(problems, fmt.Sprintf("role_assignment %q: role %q applies to teams", a.IdentityKey(), a.Role))
		}
	}
	return problems
}
