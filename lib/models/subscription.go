package models

import (
	"time"
)

// Owner identifies who holds a subscription: a user, an org data center, or
// neither for system-seeded subscriptions.
type Owner struct {
	UserID string
	OdcID  string
}

var SystemOwner = Owner{}

// IsSystem reports whether the subscription was seeded automatically rather
// than created by a user or an org data center.
func (o Owner) IsSystem() bool {
	return o.UserID == "" && o.OdcID == ""
}

// Subscription is one owner's intent to monitor a target. Several owners may
// subscribe to the same URL; the probe fleet only ever sees the deduplicated
// ProbeTask derived from them.
type Subscription struct {
	ID              string     `gorm:"primaryKey;size:36"`
	UserID          string     `gorm:"index:idx_owner_hash"`
	OdcID           string     `gorm:"index:idx_owner_hash"`
	SchemeType      SchemeType `gorm:"size:16"`
	Scheme          string     `gorm:"size:16"`
	Host            string
	URI             string
	URLHash         string `gorm:"index:idx_owner_hash;index"`
	TamperResistant bool
	Name            string
	Remark          string
	Attention       bool
	CreatedAt       time.Time
	ModifiedAt      time.Time
}

type Subscriptions []Subscription

// Target reconstructs the normalized target from the stored parts.
func (s *Subscription) Target() *NormalizedTarget {
	return &NormalizedTarget{Scheme: s.Scheme, Host: s.Host, Path: s.URI}
}

func (s *Subscription) Owner() Owner {
	return Owner{UserID: s.UserID, OdcID: s.OdcID}
}

// OwnedBy reports whether owner may read or mutate this subscription.
func (s *Subscription) OwnedBy(owner Owner) bool {
	return s.UserID == owner.UserID && s.OdcID == owner.OdcID
}
