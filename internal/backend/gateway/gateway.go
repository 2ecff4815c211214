// internal/backend/gateway/gateway.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dangerclosesec/rbacsync/internal/backend"
	"github.com/dangerclosesec/rbacsync/internal/model"
)

const apiBase = "/api/gateway/v1"

// Config represents the connection settings for one gateway service.
// It is injected at construction; the adapter never reads the
// environment itself.
type Config struct {
	// BaseURL is the base URL of the gateway, without the API path.
	BaseURL string
	// Username and Password are used for basic auth.
	Username string
	Password string
	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8043",
		HTTPClient: http.DefaultClient,
		Timeout:    30 * time.Second,
	}
}

// Adapter implements backend.Adapter over the gateway REST API. The
// engine works with names; the API works with numeric ids, so the
// adapter resolves names to ids and keeps a per-instance id cache
// warmed by FetchAll.
type Adapter struct {
	config *Config
	client *http.Client
	logger *slog.Logger

	mu  sync.RWMutex
	ids map[model.Ref]resourceID
}

type resourceID struct {
	resource string
	id       int
}

// New creates a gateway adapter with the given configuration.
func New(config *Config, logger *slog.Logger) *Adapter {
	if config == nil {
		config = DefaultConfig()
	}
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		config: config,
		client: client,
		logger: logger,
		ids:    make(map[model.Ref]resourceID),
	}
}

// FetchAll returns the live entities of one kind.
func (a *Adapter) FetchAll(ctx context.Context, kind model.Kind) ([]model.Entity, error) {
	switch kind {
	case model.KindOrganization:
		return a.fetchOrganizations(ctx)
	case model.KindTeam:
		return a.fetchTeams(ctx)
	case model.KindUser:
		return a.fetchUsers(ctx)
	case model.KindRoleDefinition:
		return a.fetchRoleDefinitions(ctx)
	case model.KindRoleAssignment:
		return a.fetchAssignments(ctx)
	default:
		return nil, backend.Permanent("fetch", fmt.Errorf("unknown kind %q", kind))
	}
}

// Create creates the entity and returns its live representation.
func (a *Adapter) Create(ctx context.Context, e model.Entity) (model.Entity, error) {
	switch want := e.(type) {
	case model.Organization:
		var created apiOrganization
		err := a.post(ctx, "organizations", apiOrganization{
			Name:        want.Name,
			Description: want.Description,
			Metadata:    want.Metadata,
		}, &created)
		if err != nil {
			return nil, a.classify("creating organization "+want.Name, err)
		}
		a.remember(e.Ref(), "organizations", created.ID)
		return created.toModel(), nil

	case model.Team:
		orgID, err := a.resolveID(ctx, model.Ref{Kind: model.KindOrganization, Key: want.Organization})
		if err != nil {
			return nil, err
		}
		var created apiTeam
		err = a.post(ctx, "teams", apiTeam{
			Name:         want.Name,
			Description:  want.Description,
			Organization: orgID,
		}, &created)
		if err != nil {
			return nil, a.classify("creating team "+want.IdentityKey(), err)
		}
		a.remember(e.Ref(), "teams", created.ID)
		return want, nil

	case model.User:
		var created apiUser
		err := a.post(ctx, "users", apiUser{
			Username:    want.Username,
			Email:       want.Email,
			FirstName:   want.FirstName,
			LastName:    want.LastName,
			IsSuperuser: want.IsSuperuser,
			IsActive:    want.IsActive,
		}, &created)
		if err != nil {
			return nil, a.classify("creating user "+want.Username, err)
		}
		a.remember(e.Ref(), "users", created.ID)
		return created.toModel(), nil

	case model.RoleDefinition:
		var created apiRoleDefinition
		err := a.post(ctx, "role_definitions", apiRoleDefinition{
			Name:        want.Name,
			Description: want.Description,
			Permissions: want.Permissions,
			ContentType: contentTypeForScope(want.Scope),
		}, &created)
		if err != nil {
			return nil, a.classify("creating role_definition "+want.Name, err)
		}
		a.remember(e.Ref(), "role_definitions", created.ID)
		return created.toModel(), nil

	case model.RoleAssignment:
		return a.createAssignment(ctx, want)
	}
	return nil, backend.Permanent("create", fmt.Errorf("unknown entity type %T", e))
}

// Update replaces the mutable attributes of an existing entity. Role
// assignments have no mutable attributes; the API only supports
// creating and deleting them.
func (a *Adapter) Update(ctx context.Context, e model.Entity) error {
	rid, err := a.lookupID(ctx, e.Ref())
	if err != nil {
		return err
	}

	var payload any
	switch want := e.(type) {
	case model.Organization:
		payload = apiOrganization{Name: want.Name, Description: want.Description, Metadata: want.Metadata}
	case model.Team:
		payload = map[string]any{"description": want.Description}
	case model.User:
		payload = apiUser{
			Username:    want.Username,
			Email:       want.Email,
			FirstName:   want.FirstName,
			LastName:    want.LastName,
			IsSuperuser: want.IsSuperuser,
			IsActive:    want.IsActive,
		}
	case model.RoleDefinition:
		payload = apiRoleDefinition{
			Name:        want.Name,
			Description: want.Description,
			Permissions: want.Permissions,
			ContentType: contentTypeForScope(want.Scope),
		}
	default:
		return backend.Permanent("update", fmt.Errorf("%s cannot be updated in place", e.Ref()))
	}

	if err := a.patch(ctx, fmt.Sprintf("%s/%d", rid.resource, rid.id), payload); err != nil {
		return a.classify("updating "+e.Ref().String(), err)
	}
	return nil
}

// Delete removes the entity identified by ref.
func (a *Adapter) Delete(ctx context.Context, ref model.Ref) error {
	rid, err := a.lookupID(ctx, ref)
	if err != nil {
		return err
	}
	if err := a.delete(ctx, fmt.Sprintf("%s/%d", rid.resource, rid.id)); err != nil {
		return a.classify("deleting "+ref.String(), err)
	}
	a.forget(ref)
	return nil
}

// ---- per-kind fetch ----

func (a *Adapter) fetchOrganizations(ctx context.Context) ([]model.Entity, error) {
	orgs, err := listAll[apiOrganization](ctx, a, "organizations", nil)
	if err != nil {
		return nil, a.classify("listing organizations", err)
	}
	out := make([]model.Entity, 0, len(orgs))
	for _, o := range orgs {
		e := o.toModel()
		a.remember(e.Ref(), "organizations", o.ID)
		out = append(out, e)
	}
	return out, nil
}

func (a *Adapter) fetchTeams(ctx context.Context) ([]model.Entity, error) {
	orgNames, err := a.organizationNames(ctx)
	if err != nil {
		return nil, err
	}
	teams, err := listAll[apiTeam](ctx, a, "teams", nil)
	if err != nil {
		return nil, a.classify("listing teams", err)
	}
	out := make([]model.Entity, 0, len(teams))
	for _, t := range teams {
		team := model.Team{
			Name:         t.Name,
			Organization: orgNames[t.Organization],
			Description:  t.Description,
		}
		a.remember(team.Ref(), "teams", t.ID)
		out = append(out, team)
	}
	return out, nil
}

func (a *Adapter) fetchUsers(ctx context.Context) ([]model.Entity, error) {
	users, err := listAll[apiUser](ctx, a, "users", nil)
	if err != nil {
		return nil, a.classify("listing users", err)
	}
	out := make([]model.Entity, 0, len(users))
	for _, u := range users {
		e := u.toModel()
		a.remember(e.Ref(), "users", u.ID)
		out = append(out, e)
	}
	return out, nil
}

func (a *Adapter) fetchRoleDefinitions(ctx context.Context) ([]model.Entity, error) {
	roles, err := listAll[apiRoleDefinition](ctx, a, "role_definitions", nil)
	if err != nil {
		return nil, a.classify("listing role_definitions", err)
	}
	out := make([]model.Entity, 0, len(roles))
	for _, r := range roles {
		e := r.toModel()
		a.remember(e.Ref(), "role_definitions", r.ID)
		out = append(out, e)
	}
	return out, nil
}

// fetchAssignments merges the user- and team-assignment endpoints
// into the engine's single assignment kind, resolving every id back
// to a name.
func (a *Adapter) fetchAssignments(ctx context.Context) ([]model.Entity, error) {
	names, err := a.nameIndex(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.Entity

	userAssignments, err := listAll[apiAssignment](ctx, a, "role_user_assignments", nil)
	if err != nil {
		return nil, a.classify("listing role_user_assignments", err)
	}
	for _, raw := range userAssignments {
		assignment, ok := names.toAssignment(raw, model.PrincipalUser)
		if !ok {
			a.logger.Warn("skipping unresolvable live assignment", "id", raw.ID)
			continue
		}
		a.remember(assignment.Ref(), "role_user_assignments", raw.ID)
		out = append(out, assignment)
	}

	teamAssignments, err := listAll[apiAssignment](ctx, a, "role_team_assignments", nil)
	if err != nil {
		return nil, a.classify("listing role_team_assignments", err)
	}
	for _, raw := range teamAssignments {
		assignment, ok := names.toAssignment(raw, model.PrincipalTeam)
		if !ok {
			a.logger.Warn("skipping unresolvable live assignment", "id", raw.ID)
			continue
		}
		a.remember(assignment.Ref(), "role_team_assignments", raw.ID)
		out = append(out, assignment)
	}

	return out, nil
}

func (a *Adapter) createAssignment(ctx context.Context, want model.RoleAssignment) (model.Entity, error) {
	roleID, err := a.resolveID(ctx, model.Ref{Kind: model.KindRoleDefinition, Key: want.Role})
	if err != nil {
		return nil, err
	}
	principalID, err := a.resolveID(ctx, want.Principal.Ref())
	if err != nil {
		return nil, err
	}

	payload := apiAssignment{RoleDefinition: roleID}
	resource := "role_user_assignments"
	if want.Principal.Kind == model.PrincipalTeam {
		resource = "role_team_assignments"
		payload.Team = principalID
	} else {
		payload.User = principalID
	}

	if !want.Target.IsZero() {
		targetID, err := a.resolveID(ctx, want.Target)
		if err != nil {
			return nil, err
		}
		payload.ObjectID = &targetID
		payload.ContentType = contentTypeForRef(want.Target)
	}

	var created apiAssignment
	if err := a.post(ctx, resource, payload, &created); err != nil {
		return nil, a.classify("creating role_assignment "+want.IdentityKey(), err)
	}
	a.remember(want.Ref(), resource, created.ID)
	return want, nil
}

// ---- name/id resolution ----

// resolveID turns an entity reference into the backend's numeric id,
// consulting the cache first and falling back to a filtered list
// query, the same way the upstream modules resolve names.
func (a *Adapter) resolveID(ctx context.Context, ref model.Ref) (int, error) {
	a.mu.RLock()
	rid, ok := a.ids[ref]
	a.mu.RUnlock()
	if ok {
		return rid.id, nil
	}

	switch ref.Kind {
	case model.KindOrganization:
		return a.resolveByName(ctx, ref, "organizations", "name", ref.Key)
	case model.KindUser:
		return a.resolveByName(ctx, ref, "users", "username", ref.Key)
	case model.KindRoleDefinition:
		return a.resolveByName(ctx, ref, "role_definitions", "name", ref.Key)
	case model.KindTeam:
		return a.resolveTeamID(ctx, ref)
	default:
		return 0, backend.Permanent("resolve", fmt.Errorf("cannot resolve id for %s", ref))
	}
}

func (a *Adapter) resolveByName(ctx context.Context, ref model.Ref, resource, field, name string) (int, error) {
	query := url.Values{field: []string{name}}
	items, err := listAll[apiNamed](ctx, a, resource, query)
	if err != nil {
		return 0, a.classify("resolving "+ref.String(), err)
	}
	for _, item := range items {
		if item.Name == name || item.Username == name {
			a.remember(ref, resource, item.ID)
			return item.ID, nil
		}
	}
	return 0, backend.Permanent("resolve", fmt.Errorf("%s not found", ref))
}

func (a *Adapter) resolveTeamID(ctx context.Context, ref model.Ref) (int, error) {
	orgName, teamName, ok := model.SplitTeamKey(ref.Key)
	if !ok {
		return 0, backend.Permanent("resolve", fmt.Errorf("malformed team key %q", ref.Key))
	}
	orgID, err := a.resolveID(ctx, model.Ref{Kind: model.KindOrganization, Key: orgName})
	if err != nil {
		return 0, err
	}
	query := url.Values{
		"name":         []string{teamName},
		"organization": []string{fmt.Sprint(orgID)},
	}
	items, err := listAll[apiNamed](ctx, a, "teams", query)
	if err != nil {
		return 0, a.classify("resolving "+ref.String(), err)
	}
	for _, item := range items {
		if item.Name == teamName {
			a.remember(ref, "teams", item.ID)
			return item.ID, nil
		}
	}
	return 0, backend.Permanent("resolve", fmt.Errorf("%s not found", ref))
}

// lookupID is resolveID plus the resource name, needed for update and
// delete paths. Assignments are only resolvable through the cache,
// which FetchAll warms at the start of every pass.
func (a *Adapter) lookupID(ctx context.Context, ref model.Ref) (resourceID, error) {
	a.mu.RLock()
	rid, ok := a.ids[ref]
	a.mu.RUnlock()
	if ok {
		return rid, nil
	}
	if ref.Kind == model.KindRoleAssignment {
		return resourceID{}, backend.Permanent("resolve", fmt.Errorf("%s not found", ref))
	}
	if _, err := a.resolveID(ctx, ref); err != nil {
		return resourceID{}, err
	}
	a.mu.RLock()
	rid = a.ids[ref]
	a.mu.RUnlock()
	return rid, nil
}

func (a *Adapter) organizationNames(ctx context.Context) (map[int]string, error) {
	orgs, err := listAll[apiOrganization](ctx, a, "organizations", nil)
	if err != nil {
		return nil, a.classify("listing organizations", err)
	}
	names := make(map[int]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.Name
		a.remember(model.Ref{Kind: model.KindOrganization, Key: o.Name}, "organizations", o.ID)
	}
	return names, nil
}

func (a *Adapter) remember(ref model.Ref, resource string, id int) {
	a.mu.Lock()
	a.ids[ref] = resourceID{resource: resource, id: id}
	a.mu.Unlock()
}

func (a *Adapter) forget(ref model.Ref) {
	a.mu.Lock()
	delete(a.ids, ref)
	a.mu.Unlock()
}

// classify maps transport and API failures onto the retry taxonomy:
// network errors, timeouts, throttling and server errors are
// transient, everything else is permanent.
func (a *Adapter) classify(op string, err error) error {
	var be *backend.Error
	if errors.As(err, &be) {
		return err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= 500:
			return backend.Transient(op, err)
		default:
			return backend.Permanent(op, err)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return backend.Transient(op, err)
	}
	return backend.Permanent(op, err)
}
