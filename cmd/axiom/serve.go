package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brent1981/AIProject/internal/api"
	"github.com/Brent1981/AIProject/internal/connwatch"
	"github.com/Brent1981/AIProject/internal/homeassistant"
	"github.com/Brent1981/AIProject/internal/metrics"
	"github.com/Brent1981/AIProject/internal/mqtt"
)

func newServeCmd(flags *globalFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and MQTT bridges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), stdout, flags.configPath)
		},
	}
}

// runServe is the primary operating mode. It blocks until SIGINT or
// SIGTERM, then publishes MQTT offline status and drains the HTTP
// server.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(stdout, cfg)
	startupBanner(logger)
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Models.PromptModel(),
		"ollama_url", cfg.Models.OllamaURL,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	a, err := newApp(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("memory store close failed", "error", err)
		}
	}()

	health := connwatch.NewManager(logger, m)
	if cfg.HomeAssistant.Configured() {
		health.Watch(ctx, "homeassistant", a.ha.Ping, connwatch.DefaultBackoff())
	}
	health.Watch(ctx, "ollama", a.models.Ping, connwatch.DefaultBackoff())

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, a.orchestrator, logger)
	server.SetSession(a.orchestrator.Session())
	server.SetHomeAssistant(a.ha)
	server.SetMetrics(m)
	server.SetStatusSource(health)
	server.SetRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	if a.memory.Available() {
		server.SetMemory(a.memory)
	}
	if a.sorter != nil {
		server.SetFileSorter(a.sorter)
	}

	var wg sync.WaitGroup
	var bridges *mqtt.Client
	if cfg.MQTT.PromptBridge.Enabled || cfg.MQTT.SwitchLights.Enabled {
		bridges, err = newMQTTClient(a, m)
		if err != nil {
			return err
		}
		health.Watch(ctx, "mqtt", bridges.AwaitConnection, connwatch.DefaultBackoff())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridges.Start(ctx); err != nil {
				logger.Error("mqtt bridges stopped", "error", err)
			}
		}()
	} else {
		logger.Info("mqtt bridges disabled")
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if bridges != nil {
			if err := bridges.Stop(shutdownCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server failed: %w", err)
	}
	wg.Wait()
	health.Wait()

	logger.Info("AXIOM stopped")
	return nil
}

// newMQTTClient registers the enabled bridges on one broker connection.
func newMQTTClient(a *app, m *metrics.Metrics) (*mqtt.Client, error) {
	cfg := a.cfg.MQTT

	instanceID, err := mqtt.LoadOrCreateInstanceID(a.cfg.DataPath())
	if err != nil {
		return nil, err
	}

	client := mqtt.NewClient(cfg, cfg.PromptBridge.AvailabilityTopic, a.logger, m)

	if cfg.PromptBridge.Enabled {
		client.Register(mqtt.NewPromptBridge(cfg.PromptBridge, cfg.DiscoveryPrefix, instanceID, a.orchestrator, a.logger))
		a.logger.Info("mqtt prompt bridge enabled", "request_topic", cfg.PromptBridge.RequestTopic)
	}

	if cfg.SwitchLights.Enabled {
		var watcher mqtt.StateWatcher
		if a.cfg.HomeAssistant.Configured() {
			watcher = homeassistant.NewWSClient(a.cfg.HomeAssistant.URL, a.cfg.HomeAssistant.Token, a.logger)
		}
		client.Register(mqtt.NewSwitchLights(cfg.SwitchLights, cfg.DiscoveryPrefix, cfg.PromptBridge.AvailabilityTopic, a.ha, watcher, a.logger))
		a.logger.Info("mqtt switch-as-light bridge enabled",
			"resync_sec", cfg.SwitchLights.ResyncSec,
			"excluded", len(cfg.SwitchLights.Exclude))
	}

	return client, nil
}
