package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenancy boundary. Each organization owns zero or more
// projects, and users gain access to those projects only through a
// membership in the organization.
type Organization struct {
	OrgID     uuid.UUID // UUIDv7
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership grants a user access to an organization. It is the sole
// authority consulted for scoping decisions; no other relation confers
// access to org-owned resources.
type Membership struct {
	MembershipID uuid.UUID // UUIDv7
	UserID       uuid.UUID // FK to users
	OrgID        uuid.UUID // FK to organizations

	// Role is persisted for a future asymmetric policy (e.g. read-only
	// members). The access guard does not consult it today.
	Role string // "admin" or "member"

	CreatedAt time.Time
}

// Membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)
