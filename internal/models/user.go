// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role defines a user's authorization level.
type Role string

const (
	// RolePatron is the default role; patrons browse, request, and review.
	RolePatron Role = "patron"
	// RoleLibrarian is the elevated role; librarians manage the catalog,
	// collections, and borrow requests.
	RoleLibrarian Role = "librarian"
)

// User represents an account in the lending system.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"size:30;unique;not null" json:"username"`
	Email       string         `gorm:"size:254;unique;not null" json:"email"`
	Password    string         `gorm:"not null" json:"-"`
	Role        Role           `gorm:"type:varchar(10);not null;default:'patron';index" json:"role"`
	FirstName   string         `gorm:"size:120" json:"first_name"`
	LastName    string         `gorm:"size:120" json:"last_name"`
	PhoneNumber string         `gorm:"size:32" json:"phone_number"`
	AvatarPath  string         `json:"avatar_path"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsLibrarian reports whether the user holds the librarian role.
func (u *User) IsLibrarian() bool {
	return u.Role == RoleLibrarian
}

// FullName returns the display name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
