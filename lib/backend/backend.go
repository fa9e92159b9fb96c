package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/GOSC-CNIC/probewatch/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Backend is the opaque metric/log store the sampler and detector query.
// CountRange returns the number of events matching selector in (from, to].
// Failures and timeouts are equivalent: the caller records an invalid sample
// and retries on its next cycle.
type Backend interface {
	CountRange(ctx context.Context, selector string, from, to time.Time) (int64, error)
}

func NewBackend(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) Backend {
	switch cfg.MetricBackend {
	case "prometheus":
		b, err := NewPrometheus(cfg.PrometheusEndpoint)
		if err != nil {
			log.Sugar().Panicw("failed to build prometheus backend", "err", err)
		}
		log.Sugar().Infow("Using prometheus metric backend", "endpoint", cfg.PrometheusEndpoint)
		return b

	default:
		log.Sugar().Infow("Using loki metric backend", "endpoint", cfg.LokiEndpoint)
		return NewLoki(cfg.LokiEndpoint, transport)
	}
}
