// internal/model/entity.go
package model

// Kind identifies one of the reconciled entity kinds.
type Kind string

const (
	KindOrganization   Kind = "organization"
	KindTeam           Kind = "team"
	KindUser           Kind = "user"
	KindRoleDefinition Kind = "role_definition"
	KindRoleAssignment Kind = "role_assignment"
)

// Kinds returns all reconciled kinds in a stable order. Fetching and
// reporting iterate kinds in this order so results are deterministic.
func Kinds() []Kind {
	return []Kind{
		KindOrganization,
		KindTeam,
		KindUser,
		KindRoleDefinition,
		KindRoleAssignment,
	}
}

// Ref points at an entity by kind and identity key.
type Ref struct {
	Kind Kind   `yaml:"kind"`
	Key  string `yaml:"name"`
}

// IsZero reports whether the ref is unset.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.Key == ""
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.Key
}

// Entity is the capability surface shared by all reconciled kinds.
// The differ, resolver and applier only ever see this interface, so
// adding a kind does not touch the engine.
type Entity interface {
	// Kind returns the entity kind.
	Kind() Kind

	// IdentityKey returns the unique matching key within the kind
	// (name, or a composite key for role assignments).
	IdentityKey() string

	// Ref returns the entity's own reference.
	Ref() Ref

	// DependencyRefs returns the entities this one references. A
	// referenced entity must exist, or be created in the same pass,
	// before this entity can be created.
	DependencyRefs() []Ref

	// Attributes returns the mutable fields in canonical form. Two
	// entities with equal attribute maps are considered converged.
	Attributes() map[string]any
}
