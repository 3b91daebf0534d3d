package gateway

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	// TagKeyOwned marks a resource as created by this tool. The orphan
	// sweep trusts this tag exclusively: tagged means ours, untagged means
	// hands off, no matter how a resource is named.
	TagKeyOwned   = "vpn-tunnel:owned"
	TagValueOwned = "true"

	// TagKeySession carries the per-session id so leftovers can be
	// attributed to a particular run during manual recovery.
	TagKeySession = "vpn-tunnel:session"

	tagKeyName = "Name"
)

// resourceTags produces the tag set attached to every provisioned resource.
func resourceTags(name, sessionID string) []types.Tag {
	return []types.Tag{
		{Key: aws.String(TagKeyOwned), Value: aws.String(TagValueOwned)},
		{Key: aws.String(TagKeySession), Value: aws.String(sessionID)},
		{Key: aws.String(tagKeyName), Value: aws.String(name)},
	}
}

// tagSpecification wraps 'resourceTags' for a given EC2 resource type.
func tagSpecification(rt types.ResourceType, name, sessionID string) []types.TagSpecification {
	return []types.TagSpecification{
		{
			ResourceType: rt,
			Tags:         resourceTags(name, sessionID),
		},
	}
}

// ownedFilter matches resources carrying the ownership tag, and nothing
// else.
func ownedFilter() []types.Filter {
	return []types.Filter{
		{
			Name:   aws.String("tag:" + TagKeyOwned),
			Values: []string{TagValueOwned},
		},
	}
}
