package models

import (
	"time"
)

// Role is the caller's role as asserted by the gateway in X-Role.
type Role string

const (
	RoleStudent  Role = "student"
	RoleClient   Role = "client"
	RoleTrainer  Role = "trainer"
	RoleDirector Role = "director"
)

// IsStaff reports whether the role may run trainer/director operations.
func (r Role) IsStaff() bool {
	return r == RoleTrainer || r == RoleDirector
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleClient, RoleTrainer, RoleDirector:
		return true
	}
	return false
}

// User is the school's account directory (students, trainers, directors).
type User struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"index" json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `gorm:"type:varchar(16);index;not null" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
