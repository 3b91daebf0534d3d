package main

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/chainguard-dev/clog"

	"github.com/apophenist/vpn-tunnel/internal/gateway"
	"github.com/apophenist/vpn-tunnel/internal/state"
	"github.com/apophenist/vpn-tunnel/internal/tunnel"
)

func openStore() (*state.Store, error) {
	dir, err := state.DefaultDir()
	if err != nil {
		return nil, err
	}
	return state.NewStore(dir)
}

func sessionBundle(sess state.Session) gateway.Bundle {
	return gateway.Bundle{
		SessionID:         sess.SessionID,
		Region:            sess.Region,
		InstanceID:        sess.InstanceID,
		SecurityGroupID:   sess.SecurityGroupID,
		SecurityGroupName: sess.SecurityGroupName,
		KeyName:           sess.KeyName,
		KeyPath:           sess.KeyPath,
		CreatedAt:         sess.StartedAt,
	}
}

// teardownSession is the one teardown path every exit cause converges on:
// normal tunnel exit, interrupt, termination signal, explicit 'stop' and
// 'cleanup'. It stops the tunnel process, destroys the recorded bundle, and
// clears session state last, unconditionally, even when a delete step
// failed, because a stuck "active" record is worse than an orphan the sweep
// can recover.
func teardownSession(ctx context.Context, store *state.Store, cfg aws.Config) error {
	log := clog.FromContext(ctx)

	if err := tunnel.NewSupervisor(store).Stop(ctx); err != nil {
		log.Warn("failed to stop tunnel process", "error", err)
	}

	sess, err := store.Load()
	if err != nil {
		log.Warn("session record unreadable, only the tunnel was stopped", "error", err)
		return store.Clear()
	}
	if sess == nil {
		return nil
	}

	g := gateway.New(gateway.NewClient(cfg, sess.Region), sess.Region)
	if err := g.TeardownBundle(ctx, sessionBundle(*sess)); err != nil {
		if errors.Is(err, gateway.ErrCleanupPartial) {
			log.Warn("teardown left resources behind, 'cleanup' will sweep them", "error", err)
		} else {
			log.Warn("teardown failed, 'cleanup' will sweep the leftovers", "error", err)
		}
	}

	return store.Clear()
}
