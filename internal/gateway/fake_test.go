package gateway

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
)

// fakeEC2 is a scriptable API implementation. Unset methods return empty
// results; 'calls' records every operation name in order so tests can
// assert which provider mutations happened.
type fakeEC2 struct {
	calls []string

	describeSecurityGroups func(*ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error)
	createSecurityGroup    func(*ec2.CreateSecurityGroupInput) (*ec2.CreateSecurityGroupOutput, error)
	authorizeIngress       func(*ec2.AuthorizeSecurityGroupIngressInput) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
	deleteSecurityGroup    func(*ec2.DeleteSecurityGroupInput) (*ec2.DeleteSecurityGroupOutput, error)

	describeKeyPairs func(*ec2.DescribeKeyPairsInput) (*ec2.DescribeKeyPairsOutput, error)
	importKeyPair    func(*ec2.ImportKeyPairInput) (*ec2.ImportKeyPairOutput, error)
	deleteKeyPair    func(*ec2.DeleteKeyPairInput) (*ec2.DeleteKeyPairOutput, error)

	describeImages     func(*ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error)
	runInstances       func(*ec2.RunInstancesInput) (*ec2.RunInstancesOutput, error)
	terminateInstances func(*ec2.TerminateInstancesInput) (*ec2.TerminateInstancesOutput, error)
	describeInstances  func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
}

var _ API = (*fakeEC2)(nil)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func (f *fakeEC2) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.calls = append(f.calls, "DescribeSecurityGroups")
	if f.describeSecurityGroups != nil {
		return f.describeSecurityGroups(params)
	}
	return &ec2.DescribeSecurityGroupsOutput{}, nil
}

func (f *fakeEC2) CreateSecurityGroup(ctx context.Context, params *ec2.CreateSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.calls = append(f.calls, "CreateSecurityGroup")
	if f.createSecurityGroup != nil {
		return f.createSecurityGroup(params)
	}
	return &ec2.CreateSecurityGroupOutput{}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error) {
	f.calls = append(f.calls, "AuthorizeSecurityGroupIngress")
	if f.authorizeIngress != nil {
		return f.authorizeIngress(params)
	}
	return &ec2.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeEC2) DeleteSecurityGroup(ctx context.Context, params *ec2.DeleteSecurityGroupInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.calls = append(f.calls, "DeleteSecurityGroup")
	if f.deleteSecurityGroup != nil {
		return f.deleteSecurityGroup(params)
	}
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func (f *fakeEC2) DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	f.calls = append(f.calls, "DescribeKeyPairs")
	if f.describeKeyPairs != nil {
		return f.describeKeyPairs(params)
	}
	return &ec2.DescribeKeyPairsOutput{}, nil
}

func (f *fakeEC2) ImportKeyPair(ctx context.Context, params *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	f.calls = append(f.calls, "ImportKeyPair")
	if f.importKeyPair != nil {
		return f.importKeyPair(params)
	}
	return &ec2.ImportKeyPairOutput{}, nil
}

func (f *fakeEC2) DeleteKeyPair(ctx context.Context, params *ec2.DeleteKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.DeleteKeyPairOutput, error) {
	f.calls = append(f.calls, "DeleteKeyPair")
	if f.deleteKeyPair != nil {
		return f.deleteKeyPair(params)
	}
	return &ec2.DeleteKeyPairOutput{}, nil
}

func (f *fakeEC2) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.calls = append(f.calls, "DescribeImages")
	if f.describeImages != nil {
		return f.describeImages(params)
	}
	return &ec2.DescribeImagesOutput{}, nil
}

func (f *fakeEC2) RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.calls = append(f.calls, "RunInstances")
	if f.runInstances != nil {
		return f.runInstances(params)
	}
	return &ec2.RunInstancesOutput{}, nil
}

func (f *fakeEC2) TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.calls = append(f.calls, "TerminateInstances")
	if f.terminateInstances != nil {
		return f.terminateInstances(params)
	}
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.calls = append(f.calls, "DescribeInstances")
	if f.describeInstances != nil {
		return f.describeInstances(params)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

// mutations filters the recorded calls down to state-changing operations.
func (f *fakeEC2) mutations() []string {
	var out []string
	for _, call := range f.calls {
		switch call {
		case "CreateSecurityGroup", "AuthorizeSecurityGroupIngress", "DeleteSecurityGroup",
			"ImportKeyPair", "DeleteKeyPair", "RunInstances", "TerminateInstances":
			out = append(out, call)
		}
	}
	return out
}
