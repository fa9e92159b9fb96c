package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib/backend"
	"github.com/GOSC-CNIC/probewatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 20

func NewSampler(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, db *gorm.DB, be backend.Backend) *Sampler {
	sampler := &Sampler{
		db:           db,
		log:          log,
		backend:      be,
		cycle:        cfg.SampleCycle,
		queryTimeout: cfg.QueryTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go sampler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop sampler")
			sampler.Stop()
			return nil
		},
	})

	return sampler
}

// Sampler collects one request-count sample per monitored unit per cycle.
// Units are independent: each query gets its own timeout and a unit's
// failure only shows up as an invalid sample row.
type Sampler struct {
	db      *gorm.DB
	log     *zap.Logger
	backend backend.Backend

	cancel       context.CancelFunc
	cycle        time.Duration // sampling cadence, also the bucket width
	queryTimeout time.Duration
}

type cycleMetrics struct {
	mu      sync.Mutex
	sampled int
	errored int
}

func (m *cycleMetrics) record(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampled++
	if !ok {
		m.errored++
	}
}

func (s *Sampler) tickerWithImmediateTick(interval time.Duration) *time.Ticker {
	withImmediateTick := make(chan time.Time, 1)

	ticker := time.NewTicker(interval)
	tickerC := ticker.C
	go func() {
		withImmediateTick <- time.Now()
		for c := range tickerC {
			withImmediateTick <- c
		}
	}()

	ticker.C = withImmediateTick
	return ticker
}

func (s *Sampler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	ticker := s.tickerWithImmediateTick(s.cycle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Sugar().Info("Sampler stopped")
			return

		case wakeupTime := <-ticker.C:
			s.CollectSamples(ctx, wakeupTime.UTC())
			s.AdvanceWatermark(ctx, wakeupTime.UTC())
		}
	}
}

func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// CollectSamples runs one sampling cycle: every enabled unit gets exactly one
// row for this cycle's bucket, valid or not.
func (s *Sampler) CollectSamples(ctx context.Context, wakeupTime time.Time) {
	bucket := wakeupTime.Truncate(s.cycle)

	var metrics cycleMetrics
	var units models.MonitorUnits
	tx := s.db.WithContext(ctx).
		Where("enabled = ?", true).
		FindInBatches(&units, batchSize, func(tx *gorm.DB, batch int) error {
			s.collectBatch(ctx, units, bucket, &metrics)
			return nil
		})
	if err := tx.Error; err != nil {
		s.log.Sugar().Errorf("Failed to fetch monitor units: %v", err)
		return
	}

	if metrics.sampled > 0 {
		s.log.Sugar().Infow("Sampling cycle complete",
			"bucket", bucket.Unix(), "sampled", metrics.sampled, "errored", metrics.errored)
	}
}

func (s *Sampler) collectBatch(ctx context.Context, batch models.MonitorUnits, bucket time.Time, metrics *cycleMetrics) {
	var wg sync.WaitGroup
	for _, unit := range batch {
		unit := unit
		wg.Add(1)

		go func() {
			defer wg.Done()
			metrics.record(s.sampleUnit(ctx, &unit, bucket))
		}()
	}
	wg.Wait()
}

// sampleUnit issues one bounded query and always writes the bucket's row,
// with the invalid sentinel on any failure.
func (s *Sampler) sampleUnit(ctx context.Context, unit *models.MonitorUnit, bucket time.Time) bool {
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	count, err := s.backend.CountRange(queryCtx, unit.Selector, bucket.Add(-s.cycle), bucket)
	ok := err == nil
	if err != nil {
		s.log.Sugar().Warnw("Sample query failed", "unit", unit.ID, "err", err)
		count = models.InvalidCount
	}

	sample := models.Sample{UnitID: unit.ID, Timestamp: bucket.Unix(), Count: count}
	tx := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&sample)
	if tx.Error != nil {
		s.log.Sugar().Errorf("Failed to store sample for unit %s: %v", unit.ID, tx.Error)
		return false
	}
	return ok
}
