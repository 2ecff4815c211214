// internal/backend/gateway/wire.go
package gateway

import (
	"context"

	"github.com/dangerclosesec/rbacsync/internal/model"
)

// Wire representations of the gateway API resources. List endpoints
// return pages of these; create and update accept them as payloads.

type apiOrganization struct {
	ID          int               `json:"id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (o apiOrganization) toModel() model.Organization {
	return model.Organization{
		Name:        o.Name,
		Description: o.Description,
		Metadata:    o.Metadata,
	}
}

type apiTeam struct {
	ID           int    `json:"id,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Organization int    `json:"organization"`
}

type apiUser struct {
	ID          int    `json:"id,omitempty"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	IsSuperuser bool   `json:"is_superuser"`
	IsActive    bool   `json:"is_active"`
}

func (u apiUser) toModel() model.User {
	return model.User{
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
	}
}

type apiRoleDefinition struct {
	ID          int      `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
	ContentType string   `json:"content_type,omitempty"`
}

func (r apiRoleDefinition) toModel() model.RoleDefinition {
	return model.RoleDefinition{
		Name:        r.Name,
		Description: r.Description,
		Permissions: r.Permissions,
		Scope:       scopeForContentType(r.ContentType),
	}
}

// apiAssignment covers both the role_user_assignments and the
// role_team_assignments endpoints; exactly one of User and Team is
// set depending on the endpoint.
type apiAssignment struct {
	ID             int    `json:"id,omitempty"`
	RoleDefinition int    `json:"role_definition"`
	User           int    `json:"user,omitempty"`
	Team           int    `json:"team,omitempty"`
	ObjectID       *int   `json:"object_id,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
}

// apiNamed is the minimal shape needed for name-to-id resolution
// across resources.
type apiNamed struct {
	ID       int    `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

const (
	contentTypeOrganization = "shared.organization"
	contentTypeTeam         = "shared.team"
)

func contentTypeForScope(scope model.RoleScope) string {
	switch scope {
	case model.ScopeOrganization:
		return contentTypeOrganization
	case model.ScopeTeam:
		return contentTypeTeam
	default:
		return ""
	}
}

func scopeForContentType(contentType string) model.RoleScope {
	switch contentType {
	case contentTypeOrganization:
		return model.ScopeOrganization
	case contentTypeTeam:
		return model.ScopeTeam
	default:
		return model.ScopeGlobal
	}
}

func contentTypeForRef(ref model.Ref) string {
	if ref.Kind == model.KindTeam {
		return contentTypeTeam
	}
	return contentTypeOrganization
}

// nameIndex holds the reverse id-to-name maps needed to express live
// assignments in terms the engine understands.
type nameIndex struct {
	orgs  map[int]string
	teams map[int]string
	users map[int]string
	roles map[int]string
}

func (a *Adapter) nameIndex(ctx context.Context) (*nameIndex, error) {
	idx := &nameIndex{
		teams: make(map[int]string),
		users: make(map[int]string),
		roles: make(map[int]string),
	}

	orgs, err := a.organizationNames(ctx)
	if err != nil {
		return nil, err
	}
	idx.orgs = orgs

	teams, err := listAll[apiTeam](ctx, a, "teams", nil)
	if err != nil {
		return nil, a.classify("listing teams", err)
	}
	for _, t := range teams {
		idx.teams[t.ID] = model.TeamKey(orgs[t.Organization], t.Name)
	}

	users, err := listAll[apiNamed](ctx, a, "users", nil)
	if err != nil {
		return nil, a.classify("listing users", err)
	}
	for _, u := range users {
		idx.users[u.ID] = u.Username
	}

	roles, err := listAll[apiNamed](ctx, a, "role_definitions", nil)
	if err != nil {
		return nil, a.classify("listing role_definitions", err)
	}
	for _, r := range roles {
		idx.roles[r.ID] = r.Name
	}

	return idx, nil
}

// toAssignment maps one wire assignment onto the model. ok is false
// when a referenced id no longer resolves, e.g. the principal was
// deleted out-of-band between list calls.
func (n *nameIndex) toAssignment(raw apiAssignment, principalKind model.PrincipalKind) (model.RoleAssignment, bool) {
	role, ok := n.roles[raw.RoleDefinition]
	if !ok {
		return model.RoleAssignment{}, false
	}

	principal := model.Principal{Kind: principalKind}
	if principalKind == model.PrincipalTeam {
		principal.Name, ok = n.teams[raw.Team]
	} else {
		principal.Name, ok = n.users[raw.User]
	}
	if !ok {
		return model.RoleAssignment{}, false
	}

	assignment := model.RoleAssignment{Principal: principal, Role: role}
	if raw.ObjectID != nil {
		switch raw.ContentType {
		case contentTypeTeam:
			key, ok := n.teams[*raw.ObjectID]
			if !ok {
				return model.RoleAssignment{}, false
			}
			assignment.Target = model.Ref{Kind: model.KindTeam, Key: key}
		default:
			key, ok := n.orgs[*raw.ObjectID]
			if !ok {
				return model.RoleAssignment{}, false
			}
			assignment.Target = model.Ref{Kind: model.KindOrganization, Key: key}
		}
	}
	return assignment, true
}
