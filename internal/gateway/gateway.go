// Package gateway provisions and destroys the disposable VPN gateway's
// resource bundle on EC2: one security group, one imported key pair and one
// spot instance, created as a tagged unit and destroyed as one.
//
// # Lifecycle
//
// Provision -> AwaitReady -> (tunnel runs elsewhere) -> TeardownBundle
//
// Provisioning is strictly sequential; each resource needs the previous
// one's identifier. A failure mid-way unwinds whatever already exists using
// a LIFO destructor stack, so a failed 'start' never leaks silently.
//
// Teardown is layered. TeardownBundle removes the bundle recorded in
// session state (the fast path); Sweeper rediscovers bundles by tag alone
// and removes them regardless of local state (the recovery path, robust to
// crashes between provisioning and state save). The sweep trusts the
// ownership tag exclusively and never deletes untagged resources.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
)

var (
	ErrProvision       = fmt.Errorf("failed to provision the gateway bundle")
	ErrNotReadyTimeout = fmt.Errorf("gateway did not become reachable before the deadline")
	ErrCleanupPartial  = fmt.Errorf("some bundle resources could not be deleted")
)

// API is the slice of the EC2 control plane this package uses.
// '*ec2.Client' satisfies it; tests substitute a fake. The DescribeInstances
// signature matches 'ec2.DescribeInstancesAPIClient' so the SDK waiters
// accept an API directly.
type API interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)

	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	ImportKeyPair(ctx context.Context, params *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error)
	DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error)

	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// Gateway drives the provisioning and teardown of one bundle in one region.
type Gateway struct {
	client API
	region string

	// Probe is the connectivity check used by AwaitReady. Defaults to an
	// SSH handshake; overridable in tests.
	Probe ProbeFunc

	// groupDeleteRetry covers the dependency-release race on security
	// group deletion.
	groupDeleteRetry retryPolicy
}

// New constructs a Gateway over an EC2 API client scoped to 'region'.
func New(client API, region string) *Gateway {
	return &Gateway{
		client:           client,
		region:           region,
		Probe:            defaultProbe,
		groupDeleteRetry: retryPolicy{Attempts: groupDeleteAttempts, Delay: groupDeleteDelay},
	}
}

// NewClient builds a region-scoped '*ec2.Client' from ambient credentials.
func NewClient(cfg aws.Config, region string) *ec2.Client {
	return ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		o.Region = region
	})
}

// apiErrorCode extracts the AWS error code, or "" for non-API errors.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// isNotFound reports whether 'err' is one of the EC2 not-found codes the
// idempotent delete paths tolerate.
func isNotFound(err error) bool {
	switch apiErrorCode(err) {
	case "InvalidGroup.NotFound",
		"InvalidKeyPair.NotFound",
		"InvalidInstanceID.NotFound":
		return true
	}
	return false
}
