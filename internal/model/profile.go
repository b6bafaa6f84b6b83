package model

import "time"

// Profile roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Profile is an account identified by its position title. New profiles
// start unapproved and cannot log in until an admin approves them.
type Profile struct {
	ID            int64     `json:"id"`
	PositionTitle string    `json:"position_title"`
	Role          string    `json:"role"`
	IsApproved    bool      `json:"is_approved"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
