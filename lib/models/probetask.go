package models

import (
	"time"
)

// ProbeTask is the canonical deduplicated probe target handed to the external
// polling fleet. It exists iff at least one live subscription references its
// hash, and is only ever written inside the registry's locked transactions.
type ProbeTask struct {
	URLHash         string `gorm:"primaryKey;size:64"`
	URL             string
	TamperResistant bool
	CreatedAt       time.Time `gorm:"index:idx_task_created"`
}

type ProbeTasks []ProbeTask

// TaskVersionID is the primary key of the singleton version row.
const TaskVersionID = 1

// TaskVersion is the monotonic change counter for the probe-task set. Pollers
// compare Version against their cached value to skip full re-fetches.
type TaskVersion struct {
	ID         uint `gorm:"primaryKey"`
	Version    int64
	ModifiedAt time.Time
}
