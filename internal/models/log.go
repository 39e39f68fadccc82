package models

import (
	"time"

	"gorm.io/datatypes"

	"student-records/internal/diff"
)

const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// AuditChanges is the payload of one audit entry: the full before/after
// snapshots plus the field-level delta between them.
type AuditChanges struct {
	Before diff.Fields  `json:"before"`
	After  diff.Fields  `json:"after"`
	Delta  diff.Changes `json:"delta"`
}

// AuditLog is an immutable record of one mutation. ActorID is nil for
// system actions; deleting the user keeps the entry.
type AuditLog struct {
	ID         string                           `gorm:"primaryKey;size:27" json:"id"`
	ActorID    *uint                            `gorm:"index" json:"actorId,omitempty"`
	Action     string                           `gorm:"size:16;index;not null" json:"action"`
	EntityType string                           `gorm:"size:32;not null" json:"entityType"`
	EntityID   string                           `gorm:"size:64;index" json:"entityId"`
	Changes    datatypes.JSONType[AuditChanges] `json:"changes"`
	IP         string                           `gorm:"size:64" json:"ip"`
	UserAgent  string                           `gorm:"size:255" json:"userAgent"`
	CreatedAt  time.Time                        `gorm:"index" json:"createdAt"`

	Actor *User `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL" json:"-"`
}
