package app

import (
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Sugar().Panic("failed to connect database", "err", err)
	}
	log.Info("Database started")

	log.Info("Starting migrations")
	db.AutoMigrate(
		&models.Subscription{},
		&models.ProbeTask{},
		&models.TaskVersion{},
		&models.AuditRecord{},
		&models.Sample{},
		&models.MonitorUnit{},
		&models.RequestCounterWatermark{},
	)

	seedSingletons(db)
	return db
}

// seedSingletons guarantees the version and watermark rows exist so that
// every later mutation can lock and update them in place.
func seedSingletons(db *gorm.DB) {
	now := time.Now().UTC()

	ver := models.TaskVersion{ID: models.TaskVersionID, ModifiedAt: now}
	db.Where("id = ?", models.TaskVersionID).FirstOrCreate(&ver)

	wm := models.RequestCounterWatermark{ID: models.WatermarkID, Until: now.Truncate(time.Hour)}
	db.Where("id = ?", models.WatermarkID).FirstOrCreate(&wm)
}
