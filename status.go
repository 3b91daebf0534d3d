package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/chainguard-dev/clog"

	"github.com/apophenist/vpn-tunnel/internal/gateway"
	"github.com/apophenist/vpn-tunnel/internal/tunnel"
)

// runStatus reports the active session from local state. With no session it
// prints the inactive line and exits 0 without touching the provider at
// all; provider state is only consulted when a session record exists.
func runStatus(ctx context.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	sess, err := store.Load()
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Println("no active tunnel session")
		return nil
	}

	fmt.Println("tunnel session active")
	fmt.Printf("  session:       %s\n", sess.SessionID)
	fmt.Printf("  region:        %s\n", sess.Region)
	fmt.Printf("  instance:      %s\n", sess.InstanceID)
	if !sess.StartedAt.IsZero() {
		fmt.Printf("  started:       %s\n", sess.StartedAt.Format(time.RFC3339))
		fmt.Printf("  elapsed:       %s\n", sess.Elapsed(time.Now()))
	}

	if sess.InstanceID != "" && sess.Region != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			clog.FromContext(ctx).Warn("cannot reach provider for instance state", "error", err)
		} else {
			g := gateway.New(gateway.NewClient(cfg, sess.Region), sess.Region)
			state, err := g.InstanceState(ctx, sess.InstanceID)
			if err != nil {
				clog.FromContext(ctx).Warn("failed to fetch instance state", "error", err)
			} else {
				fmt.Printf("  instance state: %s\n", state)
			}
		}
	}

	if tunnel.NewSupervisor(store).Alive() {
		fmt.Println("  tunnel:        running")
	} else {
		fmt.Println("  tunnel:        not running")
	}
	return nil
}
