package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
	"golang.org/x/crypto/ssh"

	"github.com/apophenist/vpn-tunnel/internal/sshkeys"
)

const (
	// SSHUser is the login user baked into the Ubuntu base image.
	SSHUser = "ubuntu"

	DefaultReadyTimeout = 300 * time.Second

	probeInterval = 10 * time.Second
)

// ProbeFunc answers whether host:port is reachable and accepts our key.
type ProbeFunc func(host string, port uint16, user string, signer ssh.Signer) error

func defaultProbe(host string, port uint16, user string, signer ssh.Signer) error {
	return sshkeys.Probe(host, port, user, signer)
}

var ErrNoPublicAddress = fmt.Errorf("instance is running but has no public address")

// AwaitReady blocks until the bundle's instance is running and reachable
// over SSH, then returns its public address. 'timeout' bounds the whole
// wait; zero means DefaultReadyTimeout. On timeout the bundle is left
// untouched: readiness checking never tears anything down, that is the
// caller's call to make.
func (g *Gateway) AwaitReady(ctx context.Context, bundle Bundle, signer ssh.Signer, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	log := clog.FromContext(ctx).With("instance_id", bundle.InstanceID)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	log.Info("waiting for instance to enter running state")
	waiter := ec2.NewInstanceRunningWaiter(g.client)
	output, err := waiter.WaitForOutput(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{bundle.InstanceID},
	}, time.Until(deadline))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotReadyTimeout, err)
	}

	if len(output.Reservations) == 0 || len(output.Reservations[0].Instances) == 0 {
		return "", fmt.Errorf("%w: instance disappeared while waiting", ErrNotReadyTimeout)
	}
	addr := aws.ToString(output.Reservations[0].Instances[0].PublicIpAddress)
	if addr == "" {
		return "", fmt.Errorf("%w: %w", ErrNotReadyTimeout, ErrNoPublicAddress)
	}
	log = log.With("address", addr)
	log.Info("instance is running, probing SSH connectivity")

	// Each attempt is a short-timeout handshake, not a long-lived session.
	for {
		if err := g.Probe(addr, uint16(portSSH), SSHUser, signer); err == nil {
			log.Info("instance is reachable via SSH")
			return addr, nil
		} else {
			log.Debug("SSH not ready yet", "error", err)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: SSH never became reachable at %s", ErrNotReadyTimeout, addr)
		case <-time.After(probeInterval):
		}
	}
}
