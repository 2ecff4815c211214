// internal/model/organization.go
package model

// Organization is the top-level container entity. Teams belong to
// exactly one organization.
type Organization struct {
	Name        string            `yaml:"name" validate:"required"`
	Description string            `yaml:"description,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
}

func (o Organization) Kind() Kind { return KindOrganization }

func (o Organization) IdentityKey() string { return o.Name }

func (o Organization) Ref() Ref { return Ref{Kind: KindOrganization, Key: o.Name} }

func (o Organization) DependencyRefs() []Ref { return nil }

func (o Organization) Attributes() map[string]any {
	var meta map[string]string
	if len(o.Metadata) > 0 {
		meta = o.Metadata
	}
	return map[string]any{
		"description": o.Description,
		"metadata":    meta,
	}
}
