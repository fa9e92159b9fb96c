package detector

import (
	"context"
	"sync"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib/backend"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"github.com/GOSC-CNIC/probewatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewDetector(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, db *gorm.DB, be backend.Backend, reg senders.Registry) *Detector {
	window := time.Duration(cfg.DetectBeforeMinutes) * time.Minute

	detector := &Detector{
		db:           db,
		log:          log,
		backend:      be,
		senders:      reg,
		recipients:   cfg.AlertRecipients,
		policy:       DefaultPolicy(cfg.SampleCycle, window),
		wakeInterval: cfg.DetectCycle,
		queryTimeout: cfg.QueryTimeout,
		downSince:    make(map[string]time.Time),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go detector.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop detector")
			detector.Stop()
			return nil
		},
	})

	return detector
}

// Detector periodically classifies each unit's recent invalid samples as a
// backend outage versus noise, backfills the recoverable ones, and raises an
// alert once per down episode.
type Detector struct {
	db         *gorm.DB
	log        *zap.Logger
	backend    backend.Backend
	senders    senders.Registry
	recipients []string

	cancel       context.CancelFunc
	policy       Policy
	wakeInterval time.Duration
	queryTimeout time.Duration

	downMu    sync.Mutex
	downSince map[string]time.Time
}

func (d *Detector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	ticker := time.NewTicker(d.wakeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Sugar().Info("Detector stopped")
			return

		case wakeupTime := <-ticker.C:
			d.Scan(ctx, wakeupTime.UTC())
		}
	}
}

func (d *Detector) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Scan runs one detection pass over every enabled unit. Units are handled
// independently: a failure on one never aborts the pass.
func (d *Detector) Scan(ctx context.Context, now time.Time) {
	var units models.MonitorUnits
	if err := d.db.WithContext(ctx).Where("enabled = ?", true).Find(&units).Error; err != nil {
		d.log.Sugar().Errorf("Failed to fetch monitor units: %v", err)
		return
	}

	for _, unit := range units {
		d.scanUnit(ctx, &unit, now)
	}
}

func (d *Detector) scanUnit(ctx context.Context, unit *models.MonitorUnit, now time.Time) {
	since := now.Add(-d.policy.Window)

	var invalid models.Samples
	err := d.db.WithContext(ctx).
		Where("unit_id = ? AND count < 0 AND timestamp >= ?", unit.ID, since.Unix()).
		Order("timestamp ASC").
		Find(&invalid).Error
	if err != nil {
		d.log.Sugar().Errorf("Failed to fetch invalid samples for unit %s: %v", unit.ID, err)
		return
	}

	if len(invalid) == 0 {
		d.clearDown(unit.ID)
		return
	}

	times := make([]time.Time, len(invalid))
	for i, smp := range invalid {
		times[i] = time.Unix(smp.Timestamp, 0).UTC()
	}

	if d.policy.IsDown(times, now) {
		// Re-querying an unreachable backend only wastes the timeout.
		d.alertDown(ctx, unit, len(invalid), now)
		return
	}

	d.clearDown(unit.ID)
	d.Backfill(ctx, unit, invalid)
}

func (d *Detector) clearDown(unitID string) {
	d.downMu.Lock()
	defer d.downMu.Unlock()
	delete(d.downSince, unitID)
}
