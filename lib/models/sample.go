package models

import (
	"time"
)

// InvalidCount marks a sample whose backend query failed. The row is still
// written so that "query failed" stays distinguishable from "never sampled".
const InvalidCount int64 = -1

// Sample is one request-count observation for a monitored unit. Timestamp is
// the cycle bucket in unix seconds and is part of the key; backfill may
// overwrite Count in place but never the key.
type Sample struct {
	UnitID    string `gorm:"primaryKey;size:36"`
	Timestamp int64  `gorm:"primaryKey"`
	Count     int64
}

func (s *Sample) Valid() bool {
	return s.Count >= 0
}

type Samples []Sample

// MonitorUnit is a sampled entity: a service whose request counts are pulled
// from the metric backend every cycle.
type MonitorUnit struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string
	Selector  string
	Enabled   bool `gorm:"index"`
	CreatedAt time.Time
}

type MonitorUnits []MonitorUnit

// WatermarkID is the primary key of the singleton watermark row.
const WatermarkID = 1

// RequestCounterWatermark tracks how far hourly request aggregation has
// progressed. Until advances monotonically and by whole hours only.
type RequestCounterWatermark struct {
	ID    uint `gorm:"primaryKey"`
	Count int64
	Until time.Time
}
