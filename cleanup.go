package main

import (
	"context"

	"github.com/chainguard-dev/clog"

	"github.com/apophenist/vpn-tunnel/internal/gateway"
)

// runCleanup is the recovery hammer: session teardown first (fast path from
// local state), then a fleet-wide sweep that rediscovers tagged bundles in
// every region, catching anything a crash or a failed teardown left behind.
func runCleanup(ctx context.Context) error {
	log := clog.FromContext(ctx)

	cfg, err := preflight(ctx)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	if err := teardownSession(ctx, store, cfg); err != nil {
		log.Warn("session teardown incomplete, continuing with the sweep", "error", err)
	}

	log.Info("sweeping all regions for tagged orphans")
	if err := gateway.NewSweeper(cfg).Sweep(ctx, ""); err != nil {
		return err
	}

	// The provider-side sweep can't reach local disk; stale private key
	// material from crashed sessions is reaped here.
	if reaped, err := store.ReapKeyFiles(); err != nil {
		log.Warn("stale key material reap incomplete", "error", err)
	} else if reaped > 0 {
		log.Info("reaped stale key material", "files", reaped)
	}

	log.Info("cleanup complete")
	return nil
}
