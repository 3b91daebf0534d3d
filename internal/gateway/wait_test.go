package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func describeRunning(id, ip string) func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
	return func(params *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		instance := types.Instance{
			InstanceId: aws.String(id),
			State:      &types.InstanceState{Name: types.InstanceStateNameRunning},
		}
		if ip != "" {
			instance.PublicIpAddress = aws.String(ip)
		}
		return &ec2.DescribeInstancesOutput{
			Reservations: []types.Reservation{{Instances: []types.Instance{instance}}},
		}, nil
	}
}

func TestAwaitReady(t *testing.T) {
	fake := &fakeEC2{describeInstances: describeRunning("i-1", "203.0.113.7")}
	g := New(fake, "eu-west-1")

	var probed []string
	g.Probe = func(host string, port uint16, user string, signer ssh.Signer) error {
		probed = append(probed, fmt.Sprintf("%s@%s:%d", user, host, port))
		return nil
	}

	addr, err := g.AwaitReady(t.Context(), Bundle{InstanceID: "i-1"}, nil, 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", addr)
	require.Equal(t, []string{"ubuntu@203.0.113.7:22"}, probed)
}

func TestAwaitReadyNoPublicAddress(t *testing.T) {
	fake := &fakeEC2{describeInstances: describeRunning("i-1", "")}
	g := New(fake, "eu-west-1")

	_, err := g.AwaitReady(t.Context(), Bundle{InstanceID: "i-1"}, nil, 30*time.Second)
	require.ErrorIs(t, err, ErrNotReadyTimeout)
	require.ErrorIs(t, err, ErrNoPublicAddress)
}

func TestAwaitReadyProbeNeverSucceeds(t *testing.T) {
	fake := &fakeEC2{describeInstances: describeRunning("i-1", "203.0.113.7")}
	g := New(fake, "eu-west-1")
	g.Probe = func(host string, port uint16, user string, signer ssh.Signer) error {
		return fmt.Errorf("connection refused")
	}

	// A timeout barely long enough for one probe round.
	_, err := g.AwaitReady(t.Context(), Bundle{InstanceID: "i-1"}, nil, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNotReadyTimeout)
}

func TestInstanceState(t *testing.T) {
	t.Run("reported", func(t *testing.T) {
		fake := &fakeEC2{describeInstances: describeRunning("i-1", "203.0.113.7")}
		g := New(fake, "eu-west-1")
		state, err := g.InstanceState(t.Context(), "i-1")
		require.NoError(t, err)
		require.Equal(t, "running", state)
	})

	t.Run("not-found-reads-as-terminated", func(t *testing.T) {
		fake := &fakeEC2{
			describeInstances: func(params *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
				return nil, apiErr("InvalidInstanceID.NotFound")
			},
		}
		g := New(fake, "eu-west-1")
		state, err := g.InstanceState(t.Context(), "i-1")
		require.NoError(t, err)
		require.Equal(t, "terminated", state)
	})
}
