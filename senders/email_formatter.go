package senders

import (
	"fmt"
	"time"
)

type OutageEmailFormat struct {
	UnitName     string
	UnitID       string
	InvalidCount int
	Window       time.Duration
	DetectedAt   time.Time
}

func (ef *OutageEmailFormat) Subject() string {
	return fmt.Sprintf("Probewatch: %s looks down", ef.UnitName)
}

func (ef *OutageEmailFormat) Body() string {
	return fmt.Sprintf(
		`
			<h3>Backend outage suspected for %s</h3>
			<br>
			<pre>unit:            %s
invalid samples: %d in the past %s
detected at:     %s</pre>
			<br>
			Backfill is suspended for this unit until it recovers.
		`,
		ef.UnitName,
		ef.UnitID, ef.InvalidCount, ef.Window, ef.DetectedAt.Format(time.RFC3339),
	)
}
