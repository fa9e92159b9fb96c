package lib

import (
	"context"
	"errors"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type unsubscribe struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	reg *registry
}

// Unsubscribe deletes the subscription, writes an audit snapshot for owned
// subscriptions, then releases the target identity: the ProbeTask goes away
// with its last referencing subscription.
func (svc *unsubscribe) Unsubscribe(ctx context.Context, subID string, owner models.Owner) error {
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := svc.reg.lockVersion(tx); err != nil {
			return err
		}

		var sub models.Subscription
		err := tx.Where("id = ?", subID).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.Newf(errs.CodeNotFound, "subscription %s not found", subID)
		}
		if err != nil {
			return err
		}
		if !sub.OwnedBy(owner) {
			return errs.New(errs.CodeAccessDenied, "subscription belongs to another owner")
		}

		if err := tx.Delete(&sub).Error; err != nil {
			return err
		}

		if !sub.Owner().IsSystem() {
			record := models.AuditRecord{
				ID:           uuid.NewString(),
				UserID:       sub.UserID,
				OdcID:        sub.OdcID,
				URL:          sub.Target().URL(),
				Name:         sub.Name,
				Remark:       sub.Remark,
				SubCreatedAt: sub.CreatedAt,
				DeletedAt:    time.Now().UTC(),
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}

		changed, err := svc.reg.releaseTask(tx, sub.URLHash)
		if err != nil {
			return err
		}
		if changed {
			return svc.reg.bumpVersion(tx)
		}
		return nil
	})
}
