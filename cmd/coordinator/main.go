package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"time"

	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/coordinator/api"
	"github.com/agrifed/agrifed/coordinator/middleware"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/modelstore"
	"github.com/agrifed/agrifed/pkg/mqtt"
	"github.com/agrifed/agrifed/pkg/scheduler"
	"github.com/agrifed/agrifed/pkg/storage"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7070"
	envPrefix     = "AGRIFED_"
	envPrefixHTTP = "AGRIFED_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel     string        `env:"AGRIFED_LOG_LEVEL"     envDefault:"info"`
	InstanceID   string        `env:"AGRIFED_INSTANCE_ID"`
	DataDir      string        `env:"AGRIFED_DATA_DIR"      envDefault:"./data"`
	CohortSeed   int64         `env:"AGRIFED_COHORT_SEED"`
	BackendURL   string        `env:"AGRIFED_BACKEND_URL"`
	BaseTopic    string        `env:"AGRIFED_BASE_TOPIC"    envDefault:"agrifed/fl"`
	MQTTAddress  string        `env:"AGRIFED_MQTT_ADDRESS"`
	MQTTQoS      uint8         `env:"AGRIFED_MQTT_QOS"      envDefault:"2"`
	MQTTTimeout  time.Duration `env:"AGRIFED_MQTT_TIMEOUT"  envDefault:"30s"`
	MQTTUsername string        `env:"AGRIFED_MQTT_USERNAME"`
	MQTTPassword string        `env:"AGRIFED_MQTT_PASSWORD"`
	OTELURL      url.URL       `env:"AGRIFED_OTEL_URL"`
	TraceRatio   float64       `env:"AGRIFED_TRACE_RATIO"   envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	coordCfg := coordinator.Config{}
	if err := env.ParseWithOptions(&coordCfg, env.Options{Prefix: envPrefix}); err != nil {
		log.Fatalf("failed to load coordinator configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	var pubsub mqtt.PubSub
	if cfg.MQTTAddress != "" {
		ps, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTimeout, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		pubsub = ps
	}

	models, err := modelstore.Open(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open model store", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := models.Close(); err != nil {
			logger.Error("error closing model store", slog.Any("error", err))
		}
	}()

	seed := cfg.CohortSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	svc, err := coordinator.NewService(
		coordCfg,
		storage.NewInMemoryStorage(),
		storage.NewInMemoryStorage(),
		models,
		scheduler.NewUniformRandom(rand.NewSource(seed)),
		fl.NewFedAvgAggregator(),
		pubsub,
		cfg.BackendURL,
		cfg.BaseTopic,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize coordinator", slog.String("error", err.Error()))

		return
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return svc.Run(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
