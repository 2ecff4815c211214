// internal/model/user.go
package model

// User is independent of organizations and teams; it only appears as
// a role assignment principal.
type User struct {
	Username    string `yaml:"username" validate:"required"`
	Email       string `yaml:"email,omitempty" validate:"omitempty,email"`
	FirstName   string `yaml:"first_name,omitempty"`
	LastName    string `yaml:"last_name,omitempty"`
	IsSuperuser bool   `yaml:"is_superuser,omitempty"`
	IsActive    bool   `yaml:"is_active"`
}

func (u User) Kind() Kind { return KindUser }

func (u User) IdentityKey() string { return u.Username }

func (u User) Ref() Ref { return Ref{Kind: KindUser, Key: u.Username} }

func (u User) DependencyRefs() []Ref { return nil }

func (u User) Attributes() map[string]any {
	return map[string]any{
		"email":        u.Email,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"is_superuser": u.IsSuperuser,
		"is_active":    u.IsActive,
	}
}
