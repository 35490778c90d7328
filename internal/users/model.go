package users

import (
	"fmt"
	"time"
)

// Role tags an account as a service consumer or a service provider.
type Role string

const (
	// RoleClient marks accounts that book services.
	RoleClient Role = "CLIENT"
	// RoleProvider marks accounts that offer services.
	RoleProvider Role = "PROVIDER"
)

// ParseRole validates a raw role value.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleClient:
		return RoleClient, nil
	case RoleProvider:
		return RoleProvider, nil
	default:
		return "", fmt.Errorf("users: unknown role %q", value)
	}
}

// User is a registered marketplace account.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:36"`
	Username     string    `gorm:"column:username;size:190;not null;uniqueIndex"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	Password     string    `gorm:"column:password;size:190;not null"`
	Avatar       string    `gorm:"column:avatar;size:512"`
	Role         Role      `gorm:"column:role;size:16;not null"`
	RefreshToken string    `gorm:"column:refresh_token;size:190"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// PublicProfile is the projection of a user embedded in other resources.
type PublicProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Public returns the profile projection safe to embed in API responses.
func (u User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
