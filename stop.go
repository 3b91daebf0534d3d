package main

import (
	"context"

	"github.com/chainguard-dev/clog"
)

// runStop tears down the active session. Exit is clean whether or not a
// session was active: stopping nothing is not an error.
func runStop(ctx context.Context) error {
	cfg, err := preflight(ctx)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	sess, err := store.Load()
	if err == nil && sess == nil {
		clog.FromContext(ctx).Info("no active session")
	}
	return teardownSession(ctx, store, cfg)
}
