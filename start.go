package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/kballard/go-shellquote"

	"github.com/apophenist/vpn-tunnel/internal/gateway"
	"github.com/apophenist/vpn-tunnel/internal/region"
	"github.com/apophenist/vpn-tunnel/internal/sshkeys"
	"github.com/apophenist/vpn-tunnel/internal/state"
	"github.com/apophenist/vpn-tunnel/internal/tunnel"
)

func runStart(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	regionInput := fs.String("region", "", "region alias (EU, US, ASIA, APAC) or literal region code")
	instanceClass := fs.String("instance-class", gateway.DefaultInstanceClass, "EC2 instance type")
	idleTimeout := fs.Int("idle-timeout", gateway.DefaultIdleTimeoutMinutes, "idle minutes before the gateway shuts itself down")
	tunnelArgs := fs.String("tunnel-args", "", "extra sshuttle arguments, shell-quoted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *regionInput == "" {
		return fmt.Errorf("--region is required")
	}
	extraArgs, err := shellquote.Split(*tunnelArgs)
	if err != nil {
		return fmt.Errorf("invalid --tunnel-args: %w", err)
	}

	log := clog.FromContext(ctx)

	cfg, err := preflight(ctx)
	if err != nil {
		return err
	}

	code := region.Resolve(*regionInput)
	client := gateway.NewClient(cfg, code)
	if err := region.Validate(ctx, client, *regionInput, code); err != nil {
		return err
	}
	log.Info("region resolved", "input", *regionInput, "region", code)

	store, err := openStore()
	if err != nil {
		return err
	}

	// The lock closes the gap between the active-session check and the
	// session save; without it two concurrent starts could both pass the
	// check and provision two bundles.
	release, err := store.AcquireLock()
	if err != nil {
		return err
	}
	locked := true
	defer func() {
		if locked {
			release()
		}
	}()

	if sess, err := store.Load(); err != nil {
		return err
	} else if sess != nil {
		return fmt.Errorf("a session is already active (instance %s in %s); run 'stop' first", sess.InstanceID, sess.Region)
	}

	g := gateway.New(client, code)
	bundle, err := g.Provision(ctx, gateway.ProvisionInput{
		InstanceClass:      *instanceClass,
		IdleTimeoutMinutes: *idleTimeout,
		KeyPath:            store.KeyFilePath,
	})
	if err != nil {
		return err
	}

	if err := store.Save(state.Session{
		SessionID:         bundle.SessionID,
		Region:            bundle.Region,
		InstanceID:        bundle.InstanceID,
		SecurityGroupID:   bundle.SecurityGroupID,
		SecurityGroupName: bundle.SecurityGroupName,
		KeyName:           bundle.KeyName,
		KeyPath:           bundle.KeyPath,
		StartedAt:         bundle.CreatedAt,
	}); err != nil {
		// The bundle exists but couldn't be recorded; take it straight
		// back down rather than leave an untracked gateway running.
		_ = g.TeardownBundle(context.WithoutCancel(ctx), bundle)
		return err
	}
	release()
	locked = false

	// From here on, every exit cause - normal tunnel exit, interrupt,
	// termination signal, readiness or launch failure - funnels into one
	// teardown execution. The signal context is likely already cancelled
	// when teardown runs, so teardown gets a detached context.
	var teardownOnce sync.Once
	teardown := func() {
		teardownOnce.Do(func() {
			if err := teardownSession(context.WithoutCancel(ctx), store, cfg); err != nil {
				log.Warn("session teardown incomplete", "error", err)
			}
		})
	}
	defer teardown()

	signer, err := sshkeys.LoadSigner(bundle.KeyPath)
	if err != nil {
		return err
	}

	addr, err := g.AwaitReady(ctx, bundle, signer, 0)
	if err != nil {
		return err
	}

	sup := tunnel.NewSupervisor(store)
	pid, err := sup.Start(ctx, tunnel.Config{
		Address:   addr,
		User:      gateway.SSHUser,
		KeyPath:   bundle.KeyPath,
		ExtraArgs: extraArgs,
	})
	if err != nil {
		return err
	}

	err = sup.Supervise(ctx, pid)
	switch {
	case err == nil:
		log.Info("tunnel ended, tearing the session down")
	case errors.Is(err, context.Canceled):
		log.Info("interrupted, tearing the session down")
	default:
		log.Warn("tunnel supervision ended", "error", err)
	}

	teardown()
	return nil
}
