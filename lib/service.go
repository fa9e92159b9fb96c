package lib

import (
	"context"
	"errors"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the task-registry facade wired into the HTTP layer.
type Service struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB

	*subscribe
	*edit
	*unsubscribe
	*taskReader
}

func NewService(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, db *gorm.DB) *Service {
	reg := &registry{log, db}
	return &Service{
		cfg, log, db,
		&subscribe{cfg, log, db, reg},
		&edit{cfg, log, db, reg},
		&unsubscribe{cfg, log, db, reg},
		&taskReader{log, db},
	}
}

// ListSubscriptions returns the caller's own subscriptions, newest first.
func (svc *Service) ListSubscriptions(ctx context.Context, owner models.Owner) (models.Subscriptions, error) {
	var subs models.Subscriptions
	err := svc.db.WithContext(ctx).
		Where("user_id = ? AND odc_id = ?", owner.UserID, owner.OdcID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// SetAttention flips the attention flag. Metadata only: it never touches the
// task set and never bumps the version.
func (svc *Service) SetAttention(ctx context.Context, subID string, owner models.Owner, attention bool) (*models.Subscription, error) {
	var sub models.Subscription
	err := svc.db.WithContext(ctx).Where("id = ?", subID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Newf(errs.CodeNotFound, "subscription %s not found", subID)
	}
	if err != nil {
		return nil, err
	}
	if !sub.OwnedBy(owner) {
		return nil, errs.New(errs.CodeAccessDenied, "subscription belongs to another owner")
	}

	sub.Attention = attention
	sub.ModifiedAt = time.Now().UTC()
	err = svc.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", subID).
		Updates(map[string]any{"attention": attention, "modified_at": sub.ModifiedAt}).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
