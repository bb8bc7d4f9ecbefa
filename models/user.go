package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Role gates access to the athlete, staff and admin surfaces.
type Role string

const (
	RoleAthlete Role = "athlete"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// User is an account with a bcrypt-hashed password.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	Name      string    `bun:"name,notnull" json:"name"`
	Password  string    `bun:"password,notnull" json:"-"`
	Role      Role      `bun:"role,notnull,default:'athlete'" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// TeamMember is an athlete profile saved by a user to fill registrations.
type TeamMember struct {
	bun.BaseModel `bun:"table:team_members,alias:tm"`

	ID        string         `bun:"id,pk,type:uuid" json:"id"`
	OwnerID   string         `bun:"owner_id,notnull" json:"ownerId"`
	Profile   AthleteProfile `bun:"profile,type:jsonb,notnull" json:"profile"`
	ShirtSize string         `bun:"shirt_size" json:"shirtSize,omitempty"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
