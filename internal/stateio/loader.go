// internal/stateio/loader.go
package stateio

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dangerclosesec/rbacsync/internal/model"
)

// document mirrors model.DesiredState with file-level conveniences:
// unknown fields are rejected and user activation defaults to true
// when omitted, matching how operators actually write these files.
type document struct {
	Organizations   []model.Organization   `yaml:"organizations"`
	Teams           []model.Team           `yaml:"teams"`
	Users           []userDoc              `yaml:"users"`
	RoleDefinitions []model.RoleDefinition `yaml:"role_definitions"`
	Assignments     []model.RoleAssignment `yaml:"role_assignments"`
}

type userDoc struct {
	Username    string `yaml:"username"`
	Email       string `yaml:"email"`
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	IsSuperuser bool   `yaml:"is_superuser"`
	IsActive    *bool  `yaml:"is_active"`
}

// Load reads a desired-state YAML file.
func Load(path string) (*model.DesiredState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	state, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return state, nil
}

// Parse decodes desired state from r. The input must be fully
// materialized: every entity carries its complete definition, there
// is no lazy resolution at apply time.
func Parse(r io.Reader) (*model.DesiredState, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &model.DesiredState{}, nil
		}
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	state := &model.DesiredState{
		Organizations:   doc.Organizations,
		Teams:           doc.Teams,
		RoleDefinitions: doc.RoleDefinitions,
		Assignments:     doc.Assignments,
	}
	for _, u := range doc.Users {
		active := true
		if u.IsActive != nil {
			active = *u.IsActive
		}
		state.Users = append(state.Users, model.User{
			Username:    u.Username,
			Email:       u.Email,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			IsSuperuser: u.IsSuperuser,
			IsActive:    active,
		})
	}
	return state, nil
}
