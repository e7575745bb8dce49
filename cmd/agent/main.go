package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrifed/agrifed/agent"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/mqtt"
	"github.com/agrifed/agrifed/pkg/sdk"
)

const (
	defConfigPath  = "agent/config.json"
	defMQTTQoS     = 1
	defMQTTTimeout = 30 * time.Second
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flag.StringVar(&configPath, "config", defConfigPath, "Path to the agent configuration file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := configureLogger(logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("Starting agent service")

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	cfg, err := agent.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("path", configPath), slog.Any("error", err))

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	s := sdk.NewSDK(sdk.Config{CoordinatorURL: cfg.CoordinatorURL})

	// First-round schema before any global model exists.
	init := fl.Params{
		"weights": {0, 0, 0, 0},
		"bias":    {0},
	}
	trainer := agent.NewSimulatedTrainer(cfg.TrainSeed, 0.1, init)

	var pubsub mqtt.PubSub
	if cfg.BrokerURL != "" {
		ps, err := mqtt.NewPubSub(cfg.BrokerURL, defMQTTQoS, cfg.ClientID, "", "", defMQTTTimeout, logger)
		if err != nil {
			logger.Error("Failed to connect to MQTT broker", slog.String("url", cfg.BrokerURL), slog.Any("error", err))

			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer func() {
			if err := ps.Disconnect(context.Background()); err != nil {
				logger.Warn("Failed to disconnect from MQTT broker", slog.Any("error", err))
			}
		}()
		pubsub = ps
	}

	svc := agent.NewService(cfg, s, trainer, pubsub, logger)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func configureLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})

	return slog.New(handler), nil
}
