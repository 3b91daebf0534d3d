package region

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("aliases-case-insensitive", func(t *testing.T) {
		require.Equal(t, "eu-west-1", Resolve("eu"))
		require.Equal(t, "eu-west-1", Resolve("EU"))
		require.Equal(t, "eu-west-1", Resolve("Eu"))
		require.Equal(t, "us-east-1", Resolve("US"))
		require.Equal(t, "ap-southeast-1", Resolve("asia"))
		require.Equal(t, "ap-southeast-1", Resolve("APAC"))
	})
	t.Run("passthrough", func(t *testing.T) {
		require.Equal(t, "us-west-2", Resolve("us-west-2"))
		require.Equal(t, "eu-central-1", Resolve(" eu-central-1 "))
	})
}

type zoneListerFake struct {
	zones int
	err   error
	calls int
}

func (f *zoneListerFake) DescribeAvailabilityZones(
	ctx context.Context,
	params *ec2.DescribeAvailabilityZonesInput,
	optFns ...func(*ec2.Options),
) (*ec2.DescribeAvailabilityZonesOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := &ec2.DescribeAvailabilityZonesOutput{}
	for i := 0; i < f.zones; i++ {
		out.AvailabilityZones = append(out.AvailabilityZones, types.AvailabilityZone{
			ZoneName: aws.String(fmt.Sprintf("zone-%d", i)),
		})
	}
	return out, nil
}

func TestValidate(t *testing.T) {
	t.Run("live-region", func(t *testing.T) {
		fake := &zoneListerFake{zones: 3}
		require.NoError(t, Validate(t.Context(), fake, "EU", "eu-west-1"))
		require.Equal(t, 1, fake.calls)
	})
	t.Run("api-error-names-input-and-code", func(t *testing.T) {
		fake := &zoneListerFake{err: fmt.Errorf("AuthFailure")}
		err := Validate(t.Context(), fake, "EU", "eu-west-1")
		require.ErrorIs(t, err, ErrInvalidRegion)
		require.Contains(t, err.Error(), `"EU"`)
		require.Contains(t, err.Error(), `"eu-west-1"`)
	})
	t.Run("no-zones-is-invalid", func(t *testing.T) {
		fake := &zoneListerFake{zones: 0}
		err := Validate(t.Context(), fake, "nope", "nope")
		require.ErrorIs(t, err, ErrInvalidRegion)
	})
}
