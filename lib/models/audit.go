package models

import (
	"time"
)

// AuditRecord is an immutable snapshot of a deleted subscription, written
// once per owned unsubscribe. System-seeded subscriptions are not audited.
type AuditRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string
	OdcID        string
	URL          string
	Name         string
	Remark       string
	SubCreatedAt time.Time
	DeletedAt    time.Time
}
