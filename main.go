package main

import (
	"net/http"
	"os"
	"time"

	"github.com/GOSC-CNIC/probewatch/app"
	"github.com/GOSC-CNIC/probewatch/config"
	"github.com/GOSC-CNIC/probewatch/lib"
	"github.com/GOSC-CNIC/probewatch/lib/backend"
	"github.com/GOSC-CNIC/probewatch/lib/detector"
	"github.com/GOSC-CNIC/probewatch/lib/sampler"
	"github.com/GOSC-CNIC/probewatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(senders.NewSenderRegistry),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),
		fx.Provide(backend.NewBackend),
		fx.Provide(lib.NewService),
		fx.Provide(sampler.NewSampler),
		fx.Provide(detector.NewDetector),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server) {}),
		fx.Invoke(func(*sampler.Sampler) {}),
		fx.Invoke(func(*detector.Detector) {}),
	).Run()
}
