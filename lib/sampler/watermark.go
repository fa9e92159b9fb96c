package sampler

import (
	"context"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/models"
	"gorm.io/gorm"
)

// AdvanceWatermark folds finished hours of valid samples into the cumulative
// request counter. The watermark moves by whole hours only and never
// backwards; a cycle that wakes mid-hour is a no-op.
func (s *Sampler) AdvanceWatermark(ctx context.Context, now time.Time) {
	hourTop := now.UTC().Truncate(time.Hour)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wm models.RequestCounterWatermark
		if err := tx.First(&wm, models.WatermarkID).Error; err != nil {
			return err
		}
		if !wm.Until.Before(hourTop) {
			return nil
		}

		var delta int64
		err := tx.Model(&models.Sample{}).
			Where("count >= 0 AND timestamp > ? AND timestamp <= ?", wm.Until.Unix(), hourTop.Unix()).
			Select("COALESCE(SUM(count), 0)").
			Scan(&delta).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.RequestCounterWatermark{}).
			Where("id = ?", models.WatermarkID).
			Updates(map[string]any{
				"count": gorm.Expr("count + ?", delta),
				"until": hourTop,
			}).Error
	})
	if err != nil {
		s.log.Sugar().Errorf("Failed to advance request counter watermark: %v", err)
	}
}
