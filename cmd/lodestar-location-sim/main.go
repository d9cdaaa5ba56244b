// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lodestar-chat/lodestar/beacon"
	"github.com/lodestar-chat/lodestar/lib/config"
	"github.com/lodestar-chat/lodestar/lib/geo"
	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/messaging"
	"github.com/lodestar-chat/lodestar/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "",
		"config file path (default: $"+config.EnvVar+", then compiled-in defaults)")
	roomFlag := pflag.String("room", "!sim:lodestar.chat",
		"room ID to share into")
	userFlag := pflag.String("user", "@sim:lodestar.chat",
		"user ID doing the sharing")
	shareDuration := pflag.Duration("share-duration", 5*time.Minute,
		"beacon timeout; the share expires on its own after this long")
	seed := pflag.Int64("seed", 1, "random walk seed")
	verbose := pflag.Bool("verbose", false, "debug logging")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	room, err := ref.ParseRoomID(*roomFlag)
	if err != nil {
		return fmt.Errorf("--room: %w", err)
	}
	user, err := ref.ParseUserID(*userFlag)
	if err != nil {
		return fmt.Errorf("--user: %w", err)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := storage.OpenSQLite(cfg.Storage.Path, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	client := newSimClient(user, logger)
	locator := geo.NewWalker(geo.WalkerConfig{
		Start: geo.Position{
			Latitude:  cfg.Sim.Latitude,
			Longitude: cfg.Sim.Longitude,
		},
		Interval:    cfg.Sim.FixInterval,
		StepDegrees: cfg.Sim.StepDegrees,
		Seed:        *seed,
	})

	store, err := beacon.New(beacon.Config{
		Client:           client,
		Locator:          locator,
		Storage:          kv,
		Logger:           logger,
		DebounceWindow:   cfg.Publish.DebounceWindow,
		StaleInterval:    cfg.Publish.StaleInterval,
		FailureThreshold: cfg.Publish.FailureThreshold,
	})
	if err != nil {
		return err
	}

	store.OnLivenessChange(func(ids []ref.BeaconID) {
		logger.Info("live beacons changed", "count", len(ids))
	})
	store.OnMonitoringChange(func(monitoring bool) {
		logger.Info("location monitoring", "active", monitoring)
	})
	store.OnLocationPublishError(func(id ref.BeaconID) {
		logger.Warn("publish error state changed", "beacon_id", id)
	})

	if err := store.Start(ctx); err != nil {
		return err
	}
	defer store.Stop()

	info := messaging.NewBeaconInfo("simulated live share", *shareDuration, true, time.Now())
	if err := store.CreateLiveBeacon(ctx, room, info); err != nil {
		return fmt.Errorf("starting share: %w", err)
	}
	logger.Info("sharing live location",
		"room_id", room,
		"user_id", user,
		"duration", *shareDuration)

	<-ctx.Done()
	stop()

	// Stop any still-running shares cleanly before exiting.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range store.LiveBeaconIDs() {
		if err := store.StopBeacon(shutdownCtx, id); err != nil {
			logger.Error("stopping beacon on shutdown", "beacon_id", id, "error", err)
		}
	}
	return nil
}
