package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
)

const (
	terminateWaitTimeout = 5 * time.Minute

	groupDeleteAttempts = 5
	groupDeleteDelay    = 5 * time.Second
)

// TeardownBundle destroys whatever parts of the bundle still exist, in
// dependency order: instance first (waiting for full termination so the
// group's dependency is released), then key pair, then security group with
// bounded retries. A step failure never stops the remaining steps; all
// failures come back joined under ErrCleanupPartial so the caller can log
// them as warnings and still clear session state. The orphan sweep is the
// backstop for anything left behind.
//
// Calling TeardownBundle twice on the same, already-absent bundle is a
// no-op: every delete tolerates not-found.
func (g *Gateway) TeardownBundle(ctx context.Context, bundle Bundle) error {
	log := clog.FromContext(ctx).With("region", g.region)
	var failures error

	if bundle.InstanceID != "" {
		log.Info("terminating instance", "instance_id", bundle.InstanceID)
		if err := instanceTerminate(ctx, g.client, bundle.InstanceID); err != nil {
			failures = errors.Join(failures, err)
		} else if err := awaitInstanceTerminated(ctx, g.client, bundle.InstanceID, terminateWaitTimeout); err != nil {
			log.Warn("instance may still be terminating", "error", err)
			failures = errors.Join(failures, err)
		}
	}

	if bundle.KeyName != "" {
		log.Info("deleting key pair", "key_name", bundle.KeyName)
		if err := keyPairDelete(ctx, g.client, bundle.KeyName, bundle.KeyPath); err != nil {
			failures = errors.Join(failures, err)
		}
	}

	if bundle.SecurityGroupID != "" {
		log.Info("deleting security group", "security_group", bundle.SecurityGroupID)
		// Group deletion races the provider releasing the terminated
		// instance's network interface, hence the bounded retry.
		err := g.groupDeleteRetry.Do(ctx, func(ctx context.Context) error {
			return securityGroupDelete(ctx, g.client, bundle.SecurityGroupID)
		})
		if err != nil {
			failures = errors.Join(failures, err)
		}
	}

	if failures != nil {
		return fmt.Errorf("%w: %w", ErrCleanupPartial, failures)
	}
	log.Info("bundle teardown complete")
	return nil
}
