package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a unit of work owned by exactly one organization. The owning
// organization is fixed at creation time and never reassigned.
type Project struct {
	ProjectID uuid.UUID // UUIDv7
	OrgID     uuid.UUID // FK to organizations, immutable after creation
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
