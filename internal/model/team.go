// internal/model/team.go
package model

import "strings"

// Team belongs to exactly one organization. Its identity key is
// qualified by the owning organization, so the same team name may
// exist under different organizations.
type Team struct {
	Name         string `yaml:"name" validate:"required"`
	Organization string `yaml:"organization" validate:"required"`
	Description  string `yaml:"description,omitempty"`
}

// TeamKey builds the composite identity key for a team.
func TeamKey(organization, name string) string {
	return organization + "/" + name
}

// SplitTeamKey splits a composite team key back into organization and
// team name. ok is false when key is not in "organization/name" form.
func SplitTeamKey(key string) (organization, name string, ok bool) {
	organization, name, ok = strings.Cut(key, "/")
	if organization == "" || name == "" {
		return "", "", false
	}
	return organization, name, ok
}

func (t Team) Kind() Kind { return KindTeam }

func (t Team) IdentityKey() string { return TeamKey(t.Organization, t.Name) }

func (t Team) Ref() Ref { return Ref{Kind: KindTeam, Key: t.IdentityKey()} }

func (t Team) DependencyRefs() []Ref {
	return []Ref{{Kind: KindOrganization, Key: t.Organization}}
}

func (t Team) Attributes() map[string]any {
	return map[string]any{
		"description": t.Description,
	}
}
