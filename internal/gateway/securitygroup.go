package gateway

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

var (
	ErrSecurityGroupLookup  = fmt.Errorf("failed to look up security group")
	ErrSecurityGroupCreate  = fmt.Errorf("failed to create security group")
	ErrSecurityGroupIngress = fmt.Errorf("failed to authorize SSH ingress")
	ErrSecurityGroupDelete  = fmt.Errorf("failed to delete security group")
)

// securityGroupEnsure looks a group up by name and reuses it, or creates it
// with a single inbound rule admitting the SSH port from anywhere. The
// gateway has to be reachable from wherever the operator roams, so the rule
// is deliberately 0.0.0.0/0; authentication is the key pair's job.
func securityGroupEnsure(
	ctx context.Context,
	client API,
	name string, sshPort int32, sessionID string,
) (string, error) {
	log := clog.FromContext(ctx)

	existing, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{{
			Name:   aws.String("group-name"),
			Values: []string{name},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecurityGroupLookup, err)
	}
	if len(existing.SecurityGroups) > 0 && existing.SecurityGroups[0].GroupId != nil {
		id := *existing.SecurityGroups[0].GroupId
		log.Info("reusing existing security group", "id", id, "name", name)
		return id, nil
	}

	created, err := client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         aws.String(name),
		Description:       aws.String("vpn-tunnel disposable gateway"),
		TagSpecifications: tagSpecification(types.ResourceTypeSecurityGroup, name, sessionID),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecurityGroupCreate, err)
	}
	if created.GroupId == nil {
		return "", fmt.Errorf("%w: no group id returned", ErrSecurityGroupCreate)
	}
	id := *created.GroupId
	log.Info("created security group", "id", id, "name", name)

	_, err = client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:    aws.String(id),
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(sshPort),
		ToPort:     aws.Int32(sshPort),
		CidrIp:     aws.String("0.0.0.0/0"),
	})
	if err != nil {
		return id, fmt.Errorf("%w: %w", ErrSecurityGroupIngress, err)
	}
	log.Info("authorized SSH ingress", "port", sshPort)

	return id, nil
}

// securityGroupDelete removes a group by id, tolerating its absence.
func securityGroupDelete(ctx context.Context, client API, id string) error {
	_, err := client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %w", ErrSecurityGroupDelete, err)
	}
	return nil
}
