package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

var (
	ErrInstanceLaunch            = fmt.Errorf("failed to launch instance")
	ErrInstanceLaunchNoInstances = fmt.Errorf("encountered no error during " +
		"instance launch, but no instance was actually created")
	ErrInstanceTerminate = fmt.Errorf("failed to terminate instance")
)

type launchSpec struct {
	ami             string
	instanceType    types.InstanceType
	keyName         string
	securityGroupID string
	userData        string
	name            string
	sessionID       string
}

// instanceLaunchSpot requests a one-shot spot instance. Spot keeps the
// gateway cheap; interruption behavior is terminate, which the fleet sweep
// and the instance's own boot script both already handle.
func instanceLaunchSpot(ctx context.Context, client API, spec launchSpec) (string, error) {
	log := clog.FromContext(ctx)

	result, err := client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.ami),
		InstanceType: spec.instanceType,
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		KeyName:      aws.String(spec.keyName),
		SecurityGroupIds: []string{
			spec.securityGroupID,
		},
		UserData: aws.String(base64.StdEncoding.EncodeToString([]byte(spec.userData))),
		InstanceMarketOptions: &types.InstanceMarketOptionsRequest{
			MarketType: types.MarketTypeSpot,
			SpotOptions: &types.SpotMarketOptions{
				SpotInstanceType:             types.SpotInstanceTypeOneTime,
				InstanceInterruptionBehavior: types.InstanceInterruptionBehaviorTerminate,
			},
		},
		TagSpecifications: tagSpecification(types.ResourceTypeInstance, spec.name, spec.sessionID),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInstanceLaunch, err)
	}
	if len(result.Instances) < 1 || result.Instances[0].InstanceId == nil {
		return "", ErrInstanceLaunchNoInstances
	}

	id := *result.Instances[0].InstanceId
	log.Info("launched spot instance", "id", id, "type", spec.instanceType)
	return id, nil
}

// instanceTerminate requests termination, tolerating an already-gone
// instance.
func instanceTerminate(ctx context.Context, client API, id string) error {
	_, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %w", ErrInstanceTerminate, err)
	}
	return nil
}

var (
	ErrInstanceState         = fmt.Errorf("failed to fetch instance state")
	ErrInstanceStateNotFound = fmt.Errorf("describe instances call produced " +
		"no errors, but returned no matching instance")
)

// instanceState returns the provider-reported lifecycle state of 'id'.
func instanceState(ctx context.Context, client API, id string) (types.InstanceStateName, error) {
	result, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInstanceState, err)
	}
	if len(result.Reservations) == 0 || len(result.Reservations[0].Instances) == 0 {
		return "", ErrInstanceStateNotFound
	}
	instance := result.Reservations[0].Instances[0]
	if instance.State == nil {
		return "", ErrInstanceStateNotFound
	}
	return instance.State.Name, nil
}

// InstanceState exposes the provider-reported lifecycle state for status
// reporting. A not-found instance reads as "terminated": the record
// outliving the resource is the normal crash-recovery shape, not an error.
func (g *Gateway) InstanceState(ctx context.Context, id string) (string, error) {
	state, err := instanceState(ctx, g.client, id)
	if err != nil {
		if isNotFound(err) || errors.Is(err, ErrInstanceStateNotFound) {
			return string(types.InstanceStateNameTerminated), nil
		}
		return "", err
	}
	return string(state), nil
}

// awaitInstanceTerminated blocks until 'id' reaches the 'terminated' state.
// Dependent deletes (the security group in particular) fail while the
// instance's network interface is still attached, so teardown has to wait
// for the instance to actually be gone, not merely shutting down.
func awaitInstanceTerminated(ctx context.Context, client API, id string, timeout time.Duration) error {
	log := clog.FromContext(ctx).With("instance_id", id)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		state, err := instanceState(ctx, client, id)
		if err != nil {
			if isNotFound(err) || errors.Is(err, ErrInstanceStateNotFound) {
				return nil
			}
			return err
		}
		if state == types.InstanceStateNameTerminated {
			log.Info("instance termination complete")
			return nil
		}
		log.Debug("instance still terminating, waiting longer", "state", state)
		select {
		case <-ctx.Done():
			return fmt.Errorf("deadlined waiting for instance termination: %w", ctx.Err())
		case <-time.After(5 * time.Second):
		}
	}
}
