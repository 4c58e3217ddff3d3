// Package domain holds the shift-matching data model: open shifts, matching
// configuration, caregiver contexts, scored candidates, assignment proposals,
// match history, and caregiver preference profiles.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Type aliases for domain identity and temporal fields, matching the
// convention of keeping ids distinct by name even though they share an
// underlying representation.
type (
	OpenShiftID     = uuid.UUID
	VisitID         = uuid.UUID
	OrganizationID  = uuid.UUID
	BranchID        = uuid.UUID
	ClientID        = uuid.UUID
	CaregiverID     = uuid.UUID
	ConfigurationID = uuid.UUID
	ProposalID      = uuid.UUID
	HistoryID       = uuid.UUID
	UserID          = uuid.UUID
)

// Now returns the current UTC time; the single time source production code
// should call directly. Orchestration code takes a clock instead so tests can
// inject determinism (see Matcher.Now and Expirer.Now).
func Now() time.Time {
	return time.Now().UTC()
}

// AuditMeta carries the created/updated/deleted audit columns shared by every
// persisted entity.
type AuditMeta struct {
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy UserID     `json:"createdBy"`
	UpdatedAt time.Time  `json:"updatedAt"`
	UpdatedBy UserID     `json:"updatedBy"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	DeletedBy *UserID    `json:"deletedBy,omitempty"`
	Version   int64      `json:"version"`
}

// IsDeleted reports whether the entity has been soft-deleted.
func (a AuditMeta) IsDeleted() bool {
	return a.DeletedAt != nil
}
