package model

import (
	"strings"

	"fincas-assistant/internal/domain"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors a row of the usuarios table.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"nombre"`
	Username     string `json:"nombre_usuario"`
	Phone        string `json:"telefono_movil"`
	Role         string `json:"rol"`
	PasswordHash string `json:"-"`
}

func NewUser(id, name, username, phone string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if username == "" && phone == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:       id,
		Name:     name,
		Username: username,
		Phone:    phone,
		Role:     RoleUser,
	}, nil
}

// DisplayName falls back from the real name to the username.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.ID
	}
}

// EffectiveRole treats an empty rol column as a regular user.
func (u *User) EffectiveRole() string {
	if u == nil || strings.TrimSpace(u.Role) == "" {
		return RoleUser
	}
	return strings.ToLower(strings.TrimSpace(u.Role))
}

func (u *User) HasRole(roles ...string) bool {
	r := u.EffectiveRole()
	for _, want := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
