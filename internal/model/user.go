// Package model defines the data structures used throughout the application.
package model

import "time"

// Welcome grant credited to every account exactly once, at creation.
// Later reconciliation passes never touch the balance.
const WelcomePointsGrant = 100

// Role is the coarse permission tier of an account.
type Role string

const (
	RoleUser       Role = "user"
	RoleCreator    Role = "creator"
	RoleSuperAdmin Role = "super_admin"
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User represents a registered user account.
//
// Two independent natural keys identify an account:
//
//   - ExternalUID: the identity provider's stable user ID, set for accounts
//     that have logged in through the provider. Unique when present, empty
//     for password-only accounts.
//   - Email: always present, stored lower-cased, unique case-insensitively.
//
// A lookup that matches on either key must resolve to the same single row;
// that is the invariant the reconciliation engine is built on.
//
// WHY ExternalUID string (not *string)?
// The provider issues opaque string UIDs. We use the empty string as "not
// linked" rather than a nullable pointer — simpler to work with, and the
// repository translates "" to SQL NULL so the UNIQUE index ignores
// unlinked rows.
type User struct {
	ID           string    `json:"id"            db:"id"`
	ExternalUID  string    `json:"externalUid,omitempty" db:"external_uid"` // provider UID; "" when not linked
	Email        string    `json:"email"         db:"email"`                // lower-cased, required
	Username     string    `json:"username"      db:"username"`             // derived from email if absent
	FullName     string    `json:"fullName"      db:"full_name"`
	Phone        string    `json:"phone"         db:"phone"`
	ProfileImage string    `json:"profilePicture" db:"profile_image"`
	PasswordHash string    `json:"-"             db:"password_hash"` // never serialized; "" for federated-only accounts
	Role         Role      `json:"role"          db:"role"`
	IsCreator    bool      `json:"isCreator"     db:"is_creator"`
	IsVerified   bool      `json:"isVerified"    db:"is_verified"`
	PointsBalance    int   `json:"pointsBalance"    db:"points_balance"`
	Status           Status `json:"status"          db:"status"`
	TotalGenerations int   `json:"totalGenerations" db:"total_generations"`
	LastActive   time.Time `json:"lastActive"    db:"last_active"`
	MemberSince  time.Time `json:"memberSince"   db:"member_since"`
	UpdatedAt    time.Time `json:"updatedAt"     db:"updated_at"`
}
