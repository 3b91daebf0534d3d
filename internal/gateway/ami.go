package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

const (
	// Canonical's AWS account, the publisher of official Ubuntu AMIs.
	amiOwnerCanonical = "099720109477"

	// AMI ids are region-specific, so the image is resolved by name
	// pattern instead of a pinned id.
	amiNamePattern = "ubuntu/images/hvm-ssd-gp3/ubuntu-noble-24.04-amd64-server-*"
)

var (
	ErrAMILookup = fmt.Errorf("failed to query machine images")
	ErrNoAMI     = fmt.Errorf("no machine image matches the name pattern")
)

// amiResolve returns the newest available Ubuntu base image in the
// gateway's region.
func amiResolve(ctx context.Context, client API) (string, error) {
	log := clog.FromContext(ctx)

	result, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{amiOwnerCanonical},
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{amiNamePattern}},
			{Name: aws.String("state"), Values: []string{"available"}},
			{Name: aws.String("architecture"), Values: []string{"x86_64"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAMILookup, err)
	}
	if len(result.Images) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoAMI, amiNamePattern)
	}

	images := result.Images
	// CreationDate is RFC3339, so lexicographic order is chronological.
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})

	id := aws.ToString(images[0].ImageId)
	log.Info("resolved base image", "ami", id, "name", aws.ToString(images[0].Name))
	return id, nil
}
