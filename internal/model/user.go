package model

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleFrontend  UserRole = "frontend"
	RoleBackend   UserRole = "backend"
	RoleDesign    UserRole = "design"
	RoleMarketing UserRole = "marketing"
	RoleGeneral   UserRole = "general"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleFrontend, RoleBackend, RoleDesign, RoleMarketing, RoleGeneral:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         UserRole  `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail 统一邮箱格式，比较与存储都使用小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
