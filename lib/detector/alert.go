package detector

import (
	"context"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/models"
	"github.com/GOSC-CNIC/probewatch/senders"
)

// alertDown notifies operators that a unit's backend looks unreachable.
// Alerting is best-effort and fires at most once per down episode; the
// episode ends when a later scan finds the unit healthy again.
func (d *Detector) alertDown(ctx context.Context, unit *models.MonitorUnit, invalidCount int, now time.Time) {
	d.downMu.Lock()
	if _, active := d.downSince[unit.ID]; active {
		d.downMu.Unlock()
		return
	}
	d.downSince[unit.ID] = now
	d.downMu.Unlock()

	d.log.Sugar().Warnw("Unit classified as down",
		"unit", unit.ID, "name", unit.Name, "invalid_samples", invalidCount)

	sender, ok := d.senders["email"]
	if !ok || len(d.recipients) == 0 {
		d.log.Sugar().Info("No alert sender configured, skipping down alert")
		return
	}

	format := senders.OutageEmailFormat{
		UnitName:     unit.Name,
		UnitID:       unit.ID,
		InvalidCount: invalidCount,
		Window:       d.policy.Window,
		DetectedAt:   now,
	}
	for _, recipient := range d.recipients {
		if _, err := sender.Send(ctx, format.Subject(), format.Body(), recipient); err != nil {
			d.log.Sugar().Infow("Failed to send down alert", "recipient", recipient, "err", err)
		}
	}
}
