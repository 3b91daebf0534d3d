package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// RegionLister lists the regions the provider serves for this account.
type RegionLister interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// Sweeper is the fleet-wide recovery path: it rediscovers bundles by the
// ownership tag alone, ignoring local session state entirely, and removes
// every match. Tags are ground truth; state is only ever a hint for the
// fast path. Resources without the tag are never enumerated, let alone
// deleted.
type Sweeper struct {
	regions   RegionLister
	clientFor func(region string) API

	groupDeleteRetry retryPolicy
}

// NewSweeper builds a Sweeper over ambient credentials. The region lister
// runs in the SDK's default region; per-region clients are derived per
// sweep target.
func NewSweeper(cfg aws.Config) *Sweeper {
	return &Sweeper{
		regions: ec2.NewFromConfig(cfg),
		clientFor: func(region string) API {
			return NewClient(cfg, region)
		},
		groupDeleteRetry: retryPolicy{Attempts: groupDeleteAttempts, Delay: groupDeleteDelay},
	}
}

var ErrSweep = fmt.Errorf("orphan sweep incomplete")

// Sweep removes all tagged orphans in 'region', or in every region the
// provider lists when 'region' is empty. Per-region failures are collected
// and joined; one region's trouble never stops the rest of the fleet from
// being swept.
func (s *Sweeper) Sweep(ctx context.Context, region string) error {
	targets := []string{region}
	if region == "" {
		all, err := s.allRegions(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSweep, err)
		}
		targets = all
	}

	var failures error
	for _, target := range targets {
		if err := s.sweepRegion(ctx, target); err != nil {
			failures = errors.Join(failures, fmt.Errorf("region %s: %w", target, err))
		}
	}
	if failures != nil {
		return fmt.Errorf("%w: %w", ErrSweep, failures)
	}
	return nil
}

func (s *Sweeper) allRegions(ctx context.Context) ([]string, error) {
	result, err := s.regions.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	names := make([]string, 0, len(result.Regions))
	for _, r := range result.Regions {
		names = append(names, aws.ToString(r.RegionName))
	}
	return names, nil
}

func (s *Sweeper) sweepRegion(ctx context.Context, region string) error {
	log := clog.FromContext(ctx).With("region", region)
	ctx = clog.WithLogger(ctx, log)
	client := s.clientFor(region)
	var failures error

	instanceIDs, err := s.findTaggedInstances(ctx, client)
	if err != nil {
		failures = errors.Join(failures, err)
	}
	for _, id := range instanceIDs {
		log.Info("terminating orphaned instance", "instance_id", id)
		if err := instanceTerminate(ctx, client, id); err != nil {
			failures = errors.Join(failures, err)
		}
	}
	// Group deletion below fails while a dependent instance still holds
	// its network interface, so wait for the terminations to land.
	for _, id := range instanceIDs {
		if err := awaitInstanceTerminated(ctx, client, id, terminateWaitTimeout); err != nil {
			failures = errors.Join(failures, err)
		}
	}

	keyNames, err := s.findTaggedKeyPairs(ctx, client)
	if err != nil {
		failures = errors.Join(failures, err)
	}
	for _, name := range keyNames {
		log.Info("deleting orphaned key pair", "key_name", name)
		if err := keyPairDelete(ctx, client, name, ""); err != nil {
			failures = errors.Join(failures, err)
		}
	}

	groupIDs, err := s.findTaggedSecurityGroups(ctx, client)
	if err != nil {
		failures = errors.Join(failures, err)
	}
	for _, id := range groupIDs {
		log.Info("deleting orphaned security group", "security_group", id)
		err := s.groupDeleteRetry.Do(ctx, func(ctx context.Context) error {
			return securityGroupDelete(ctx, client, id)
		})
		if err != nil {
			failures = errors.Join(failures, err)
		}
	}

	if len(instanceIDs) == 0 && len(keyNames) == 0 && len(groupIDs) == 0 {
		log.Info("no orphaned resources found")
	}
	return failures
}

func (s *Sweeper) findTaggedInstances(ctx context.Context, client API) ([]string, error) {
	filters := append(ownedFilter(), types.Filter{
		Name: aws.String("instance-state-name"),
		Values: []string{
			string(types.InstanceStateNamePending),
			string(types.InstanceStateNameRunning),
			string(types.InstanceStateNameStopping),
			string(types.InstanceStateNameStopped),
		},
	})
	result, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: filters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for tagged instances: %w", err)
	}
	var ids []string
	for _, reservation := range result.Reservations {
		for _, instance := range reservation.Instances {
			if instance.InstanceId != nil {
				ids = append(ids, *instance.InstanceId)
			}
		}
	}
	return ids, nil
}

func (s *Sweeper) findTaggedKeyPairs(ctx context.Context, client API) ([]string, error) {
	result, err := client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		Filters: ownedFilter(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for tagged key pairs: %w", err)
	}
	var names []string
	for _, kp := range result.KeyPairs {
		if kp.KeyName != nil {
			names = append(names, *kp.KeyName)
		}
	}
	return names, nil
}

func (s *Sweeper) findTaggedSecurityGroups(ctx context.Context, client API) ([]string, error) {
	result, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: ownedFilter(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for tagged security groups: %w", err)
	}
	var ids []string
	for _, sg := range result.SecurityGroups {
		if sg.GroupId != nil {
			ids = append(ids, *sg.GroupId)
		}
	}
	return ids, nil
}
