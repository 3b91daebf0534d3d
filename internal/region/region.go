// Package region maps human-friendly region aliases to AWS region codes and
// validates the result against the live API.
//
// The alias table is static so new AWS regions keep working without a code
// change: anything the table doesn't know passes through verbatim and is only
// checked by the live validation step.
package region

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
)

var ErrInvalidRegion = fmt.Errorf("region is not a usable AWS region")

// aliases maps the short names operators actually type to region codes.
var aliases = map[string]string{
	"eu":   "eu-west-1",
	"us":   "us-east-1",
	"asia": "ap-southeast-1",
	"apac": "ap-southeast-1",
}

// Resolve maps 'input' to an AWS region code. Alias matching is
// case-insensitive; unmatched input is returned unchanged as a literal
// region code.
func Resolve(input string) string {
	if code, ok := aliases[strings.ToLower(strings.TrimSpace(input))]; ok {
		return code
	}
	return strings.TrimSpace(input)
}

// ZoneLister is the narrow slice of the EC2 API needed to confirm a region
// is live. '*ec2.Client' satisfies it.
type ZoneLister interface {
	DescribeAvailabilityZones(
		ctx context.Context,
		params *ec2.DescribeAvailabilityZonesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeAvailabilityZonesOutput, error)
}

// Validate confirms 'code' is a region the provider will actually serve, by
// listing its availability zones. The returned error names both the
// operator's original input and the mapped code, since they may differ.
func Validate(ctx context.Context, client ZoneLister, input, code string) error {
	log := clog.FromContext(ctx).With("region", code)
	log.Debug("validating region via availability zone listing")
	result, err := client.DescribeAvailabilityZones(
		ctx,
		&ec2.DescribeAvailabilityZonesInput{},
	)
	if err != nil {
		return fmt.Errorf("%w: %q (resolved to %q): %w", ErrInvalidRegion, input, code, err)
	}
	if len(result.AvailabilityZones) == 0 {
		return fmt.Errorf("%w: %q (resolved to %q): no availability zones", ErrInvalidRegion, input, code)
	}
	log.Debug("region is live", "zones", len(result.AvailabilityZones))
	return nil
}
