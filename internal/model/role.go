// internal/model/role.go
package model

import "sort"

// RoleScope declares the level a role definition applies at.
type RoleScope string

const (
	ScopeGlobal       RoleScope = "global"
	ScopeOrganization RoleScope = "organization"
	ScopeTeam         RoleScope = "team"
)

// RoleDefinition names a set of permissions. The permission set is
// compared as an unordered set; an update replaces it wholesale.
type RoleDefinition struct {
	Name        string    `yaml:"name" validate:"required"`
	Description string    `yaml:"description,omitempty"`
	Permissions []string  `yaml:"permissions" validate:"required,min=1"`
	Scope       RoleScope `yaml:"scope" validate:"required,oneof=global organization team"`
}

func (r RoleDefinition) Kind() Kind { return KindRoleDefinition }

func (r RoleDefinition) IdentityKey() string { return r.Name }

func (r RoleDefinition) Ref() Ref { return Ref{Kind: KindRoleDefinition, Key: r.Name} }

func (r RoleDefinition) DependencyRefs() []Ref { return nil }

func (r RoleDefinition) Attributes() map[string]any {
	return map[string]any{
		"description": r.Description,
		"permissions": normalizePermissions(r.Permissions),
		"scope":       r.Scope,
	}
}

// normalizePermissions returns a sorted, de-duplicated copy so set
// comparison reduces to structural equality.
func normalizePermissions(perms []string) []string {
	if len(perms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
