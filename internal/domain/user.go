package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// DefaultRoles is the local enumeration used when the roles endpoint
// returns nothing.
func DefaultRoles() []RoleOption {
	return []RoleOption{
		{Value: RoleAdmin, Label: "Administrador"},
		{Value: RoleManager, Label: "Gerente"},
		{Value: RoleOperator, Label: "Operador"},
		{Value: RoleViewer, Label: "Consulta"},
	}
}

// RoleOption is one entry of the role selector in the invite/edit forms.
type RoleOption struct {
	Value Role   `json:"value"`
	Label string `json:"label"`
}

type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Status      string     `json:"status"` // "active", "invited" or "disabled"
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (u User) EntityID() string { return u.ID }

func (u User) WithEntityID(id string) User {
	u.ID = id
	return u
}

// Profile is the signed-in operator.
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

func (p Profile) EntityID() string { return p.ID }

func (p Profile) WithEntityID(id string) Profile {
	p.ID = id
	return p
}
