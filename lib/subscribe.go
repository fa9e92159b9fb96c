package lib

import (
	"context"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type subscribe struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	reg *registry
}

// Subscribe records one owner's intent to monitor a target and keeps the
// deduplicated task set in sync: the first subscription to a URL creates its
// ProbeTask and bumps the task version, later ones only bump when they raise
// the aggregated tamper flag.
func (svc *subscribe) Subscribe(
	ctx context.Context, owner models.Owner,
	scheme, host, path string, tamper bool, name, remark string,
) (*models.Subscription, error) {
	if owner.UserID != "" && owner.OdcID != "" {
		return nil, errs.New(errs.CodeInvalidArgument, "owner cannot be both a user and an odc")
	}
	target, err := models.NormalizeTarget(scheme, host, path)
	if err != nil {
		return nil, err
	}
	if tamper && target.Type() != models.SchemeHTTP {
		return nil, errs.New(errs.CodeInvalidArgument, "tamper resistance requires an http target")
	}

	now := time.Now().UTC()
	sub := &models.Subscription{
		ID:              uuid.NewString(),
		UserID:          owner.UserID,
		OdcID:           owner.OdcID,
		SchemeType:      target.Type(),
		Scheme:          target.Scheme,
		Host:            target.Host,
		URI:             target.Path,
		URLHash:         target.Identity(),
		TamperResistant: tamper,
		Name:            name,
		Remark:          remark,
		CreatedAt:       now,
		ModifiedAt:      now,
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := svc.reg.lockVersion(tx); err != nil {
			return err
		}

		var count int64
		err := svc.reg.ownerScope(tx.Model(&models.Subscription{}), owner).
			Where("url_hash = ?", sub.URLHash).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return errs.Newf(errs.CodeTargetAlreadyExists, "target %s is already monitored", target.URL())
		}

		if err := tx.Create(sub).Error; err != nil {
			return err
		}

		changed, err := svc.reg.acquireTask(tx, target, tamper)
		if err != nil {
			return err
		}
		if changed {
			return svc.reg.bumpVersion(tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.log.Sugar().Infow("Created subscription", "id", sub.ID, "url", target.URL())
	return sub, nil
}
