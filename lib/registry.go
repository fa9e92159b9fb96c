package lib

import (
	"errors"
	"time"

	"github.com/GOSC-CNIC/probewatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// registry carries the helpers shared by every task-set mutation. All of
// Subscribe/Edit/Unsubscribe run inside one transaction that first takes the
// exclusive row lock on the version singleton, so mutations are serialized
// across the whole system while reads stay lock-free.
type registry struct {
	log *zap.Logger
	db  *gorm.DB
}

// lockVersion takes the exclusive row lock on the TaskVersion singleton for
// the remainder of tx.
func (r *registry) lockVersion(tx *gorm.DB) error {
	var ver models.TaskVersion
	return tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", models.TaskVersionID).
		First(&ver).Error
}

// bumpVersion increments the version counter. Callers funnel all "did the
// canonical set change" decisions into a single call per transaction.
func (r *registry) bumpVersion(tx *gorm.DB) error {
	return tx.Model(&models.TaskVersion{}).
		Where("id = ?", models.TaskVersionID).
		Updates(map[string]any{
			"version":     gorm.Expr("version + 1"),
			"modified_at": time.Now().UTC(),
		}).Error
}

func (r *registry) ownerScope(q *gorm.DB, owner models.Owner) *gorm.DB {
	return q.Where("user_id = ? AND odc_id = ?", owner.UserID, owner.OdcID)
}

// aggregateTamper recomputes the referencing-subscription count and the OR
// of their tamper flags for one target identity.
func (r *registry) aggregateTamper(tx *gorm.DB, urlHash string) (int64, bool, error) {
	var count int64
	if err := tx.Model(&models.Subscription{}).
		Where("url_hash = ?", urlHash).
		Count(&count).Error; err != nil {
		return 0, false, err
	}

	var tamperCount int64
	if err := tx.Model(&models.Subscription{}).
		Where("url_hash = ? AND tamper_resistant = ?", urlHash, true).
		Count(&tamperCount).Error; err != nil {
		return 0, false, err
	}

	return count, tamperCount > 0, nil
}

// acquireTask ensures a ProbeTask exists for target and its flag covers a
// new subscription requesting tamper. Reports whether the canonical set
// changed.
func (r *registry) acquireTask(tx *gorm.DB, target *models.NormalizedTarget, tamper bool) (bool, error) {
	urlHash := target.Identity()

	var task models.ProbeTask
	err := tx.Where("url_hash = ?", urlHash).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		task = models.ProbeTask{
			URLHash:         urlHash,
			URL:             target.URL(),
			TamperResistant: tamper,
			CreatedAt:       time.Now().UTC(),
		}
		if err := tx.Create(&task).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if tamper && !task.TamperResistant {
		err := tx.Model(&models.ProbeTask{}).
			Where("url_hash = ?", urlHash).
			Update("tamper_resistant", true).Error
		return err == nil, err
	}
	return false, nil
}

// releaseTask re-derives the ProbeTask after a referencing subscription was
// removed, moved away, or changed its flag: deletes the task when
// unreferenced, else re-aggregates the flag. Reports whether the canonical
// set changed.
func (r *registry) releaseTask(tx *gorm.DB, urlHash string) (bool, error) {
	count, tamper, err := r.aggregateTamper(tx, urlHash)
	if err != nil {
		return false, err
	}

	if count == 0 {
		res := tx.Where("url_hash = ?", urlHash).Delete(&models.ProbeTask{})
		return res.RowsAffected > 0, res.Error
	}

	var task models.ProbeTask
	if err := tx.Where("url_hash = ?", urlHash).First(&task).Error; err != nil {
		return false, err
	}
	if task.TamperResistant != tamper {
		err := tx.Model(&models.ProbeTask{}).
			Where("url_hash = ?", urlHash).
			Update("tamper_resistant", tamper).Error
		return err == nil, err
	}
	return false, nil
}
