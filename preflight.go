package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/apophenist/vpn-tunnel/internal/tunnel"
)

var ErrDependencyMissing = fmt.Errorf("a required external dependency is missing")

// preflight verifies both external collaborators before any stateful action:
// the tunnel binary on PATH and resolvable AWS credentials. It returns the
// loaded AWS config so commands don't resolve credentials twice.
func preflight(ctx context.Context) (aws.Config, error) {
	if err := tunnel.LookPath(); err != nil {
		return aws.Config{}, fmt.Errorf("%w: %w", ErrDependencyMissing, err)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("%w: failed to load AWS configuration: %w", ErrDependencyMissing, err)
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, fmt.Errorf("%w: no usable AWS credentials: %w", ErrDependencyMissing, err)
	}
	return cfg, nil
}
