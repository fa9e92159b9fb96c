package lib

import (
	"context"
	"errors"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type edit struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	reg *registry
}

// Edit rewrites a subscription. Changing the URL is an atomic move: the old
// identity is released (task deleted or flag re-aggregated) and the new one
// acquired in the same transaction, with at most one version bump even when
// both sides changed. A same-URL edit only re-aggregates the tamper flag.
func (svc *edit) Edit(
	ctx context.Context, subID string, owner models.Owner,
	scheme, host, path string, tamper bool, name, remark string,
) (*models.Subscription, error) {
	target, err := models.NormalizeTarget(scheme, host, path)
	if err != nil {
		return nil, err
	}
	if tamper && target.Type() != models.SchemeHTTP {
		return nil, errs.New(errs.CodeInvalidArgument, "tamper resistance requires an http target")
	}

	var out models.Subscription
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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

		oldHash := sub.URLHash
		newHash := target.Identity()

		if oldHash != newHash {
			var count int64
			err := svc.reg.ownerScope(tx.Model(&models.Subscription{}), owner).
				Where("url_hash = ?", newHash).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				return errs.Newf(errs.CodeTargetAlreadyExists, "target %s is already monitored", target.URL())
			}
		}

		sub.SchemeType = target.Type()
		sub.Scheme = target.Scheme
		sub.Host = target.Host
		sub.URI = target.Path
		sub.URLHash = newHash
		sub.TamperResistant = tamper
		sub.Name = name
		sub.Remark = remark
		sub.ModifiedAt = time.Now().UTC()
		if err := tx.Save(&sub).Error; err != nil {
			return err
		}

		var changed bool
		if oldHash == newHash {
			changed, err = svc.reg.releaseTask(tx, newHash)
			if err != nil {
				return err
			}
		} else {
			released, err := svc.reg.releaseTask(tx, oldHash)
			if err != nil {
				return err
			}
			acquired, err := svc.reg.acquireTask(tx, target, tamper)
			if err != nil {
				return err
			}
			changed = released || acquired
		}

		out = sub
		if changed {
			return svc.reg.bumpVersion(tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.log.Sugar().Infow("Edited subscription", "id", out.ID, "url", target.URL())
	return &out, nil
}
