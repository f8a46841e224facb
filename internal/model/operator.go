package model

import "time"

// Operator is a backend API account.
type Operator struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Operator roles, weakest to strongest.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

var roleRank = map[string]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// RoleAtLeast reports whether role meets the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	return roleRank[role] >= roleRank[minimum]
}
