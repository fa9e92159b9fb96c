package detector

import (
	"context"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/models"
	"gorm.io/gorm"
)

const backfillBatchSize = 100

// Backfill re-queries each invalid sample's original bucket and overwrites
// the count in place when the query now succeeds. The bucket key never
// changes, so re-running on an already-recovered sample is a no-op. Updates
// are committed as one bulk write per batch; a failed re-query just leaves
// its row at the invalid sentinel for a later pass.
func (d *Detector) Backfill(ctx context.Context, unit *models.MonitorUnit, invalid models.Samples) {
	recovered := 0
	for start := 0; start < len(invalid); start += backfillBatchSize {
		end := start + backfillBatchSize
		if end > len(invalid) {
			end = len(invalid)
		}

		updates := d.requeryBatch(ctx, unit, invalid[start:end])
		if len(updates) == 0 {
			continue
		}

		err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, smp := range updates {
				err := tx.Model(&models.Sample{}).
					Where("unit_id = ? AND timestamp = ?", smp.UnitID, smp.Timestamp).
					Update("count", smp.Count).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			d.log.Sugar().Errorf("Failed to commit backfill batch for unit %s: %v", unit.ID, err)
			continue
		}
		recovered += len(updates)
	}

	if recovered > 0 {
		d.log.Sugar().Infow("Backfilled invalid samples",
			"unit", unit.ID, "recovered", recovered, "scanned", len(invalid))
	}
}

func (d *Detector) requeryBatch(ctx context.Context, unit *models.MonitorUnit, batch models.Samples) models.Samples {
	updates := make(models.Samples, 0, len(batch))
	for _, smp := range batch {
		bucket := time.Unix(smp.Timestamp, 0).UTC()

		queryCtx, cancel := context.WithTimeout(ctx, d.queryTimeout)
		count, err := d.backend.CountRange(queryCtx, unit.Selector, bucket.Add(-d.policy.Cycle), bucket)
		cancel()
		if err != nil {
			continue
		}

		smp.Count = count
		updates = append(updates, smp)
	}
	return updates
}
