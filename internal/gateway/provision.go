package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/apophenist/vpn-tunnel/internal/bootscript"
)

const (
	DefaultInstanceClass      = "t3.nano"
	DefaultIdleTimeoutMinutes = 30

	portSSH = int32(22)
)

// Bundle is the unit of provisioning and teardown: every identifier needed
// to find or destroy one gateway session's resources.
type Bundle struct {
	SessionID         string
	Region            string
	InstanceID        string
	SecurityGroupID   string
	SecurityGroupName string
	KeyName           string
	KeyPath           string
	CreatedAt         time.Time
}

// ProvisionInput configures one provisioning run.
type ProvisionInput struct {
	// InstanceClass is the EC2 instance type, default t3.nano.
	InstanceClass string

	// IdleTimeoutMinutes parameterizes the instance's self-termination
	// safety script, default 30.
	IdleTimeoutMinutes int

	// KeyPath is where the private key material is persisted, owner-only.
	KeyPath func(keyName string) string
}

// Provision creates the bundle: security group, fresh key pair, spot
// instance with the self-termination boot script. Steps are sequential;
// each depends on the previous resource's identifier. On any failure every
// resource created so far is unwound before the error is returned, so the
// caller never has to guess what leaked.
func (g *Gateway) Provision(ctx context.Context, in ProvisionInput) (Bundle, error) {
	if in.InstanceClass == "" {
		in.InstanceClass = DefaultInstanceClass
	}
	if in.IdleTimeoutMinutes <= 0 {
		in.IdleTimeoutMinutes = DefaultIdleTimeoutMinutes
	}

	now := time.Now()
	bundle := Bundle{
		SessionID: uuid.New().String()[:8],
		Region:    g.region,
		CreatedAt: now,
		// Timestamp suffixes keep names unique across overlapping sessions
		// in the same region.
		SecurityGroupName: fmt.Sprintf("vpn-tunnel-%d", now.Unix()),
		KeyName:           fmt.Sprintf("vpn-tunnel-key-%d", now.Unix()),
	}
	bundle.KeyPath = in.KeyPath(bundle.KeyName)

	log := clog.FromContext(ctx).With("region", g.region, "session", bundle.SessionID)
	ctx = clog.WithLogger(ctx, log)

	var unwind stack
	fail := func(err error) (Bundle, error) {
		log.Error("provisioning failed, unwinding partial bundle", "error", err)
		if unwindErr := unwind.Destroy(ctx); unwindErr != nil {
			log.Warn("partial bundle unwind incomplete, the orphan sweep will catch the rest", "error", unwindErr)
		}
		return Bundle{}, fmt.Errorf("%w: %w", ErrProvision, err)
	}

	// The group id comes back even when the ingress rule fails after the
	// create, so the destructor is pushed before the error check: a group
	// that exists must be unwound no matter how far the step got.
	sgID, err := securityGroupEnsure(ctx, g.client, bundle.SecurityGroupName, portSSH, bundle.SessionID)
	if sgID != "" {
		unwind.Push(func(ctx context.Context) error {
			return securityGroupDelete(ctx, g.client, sgID)
		})
	}
	if err != nil {
		return fail(err)
	}
	bundle.SecurityGroupID = sgID

	if err := keyPairCreate(ctx, g.client, bundle.KeyName, bundle.KeyPath, bundle.SessionID); err != nil {
		return fail(err)
	}
	unwind.Push(func(ctx context.Context) error {
		return keyPairDelete(ctx, g.client, bundle.KeyName, bundle.KeyPath)
	})

	ami, err := amiResolve(ctx, g.client)
	if err != nil {
		return fail(err)
	}

	script, err := bootscript.Render(bootscript.Params{
		HardTimeoutMinutes: bootscript.HardTimeout(in.IdleTimeoutMinutes),
	})
	if err != nil {
		return fail(err)
	}

	instanceID, err := instanceLaunchSpot(ctx, g.client, launchSpec{
		ami:             ami,
		instanceType:    types.InstanceType(in.InstanceClass),
		keyName:         bundle.KeyName,
		securityGroupID: sgID,
		userData:        script,
		name:            bundle.SecurityGroupName,
		sessionID:       bundle.SessionID,
	})
	if err != nil {
		return fail(err)
	}
	bundle.InstanceID = instanceID

	log.Info("bundle provisioned",
		"instance_id", bundle.InstanceID,
		"security_group", bundle.SecurityGroupID,
		"key_name", bundle.KeyName,
	)
	return bundle, nil
}
