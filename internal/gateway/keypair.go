package gateway

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"

	"github.com/apophenist/vpn-tunnel/internal/sshkeys"
)

var (
	ErrKeyPairImport = fmt.Errorf("failed to import key pair")
	ErrKeyPairWrite  = fmt.Errorf("failed to persist private key material")
	ErrKeyPairDelete = fmt.Errorf("failed to delete key pair")
)

// keyPairCreate generates a fresh ed25519 keypair, imports the public half
// under 'name', and persists the private half to 'path' owner-only. A key
// is never reused across sessions: any stale AWS-side key of the same name
// is deleted first.
func keyPairCreate(
	ctx context.Context,
	client API,
	name, path, sessionID string,
) error {
	log := clog.FromContext(ctx)

	if err := keyPairDelete(ctx, client, name, ""); err != nil {
		return err
	}

	keys, err := sshkeys.NewKeyPair()
	if err != nil {
		return err
	}
	pubKey, err := keys.MarshalPublicOpenSSH()
	if err != nil {
		return err
	}
	// Marshal the private half before touching the provider, so the only
	// failure possible after the import is the disk write.
	pemData, err := keys.MarshalPrivateOpenSSH(name)
	if err != nil {
		return err
	}

	result, err := client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: pubKey,
		TagSpecifications: tagSpecification(types.ResourceTypeKeyPair, name, sessionID),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyPairImport, err)
	}
	log.Info("imported key pair", "id", aws.ToString(result.KeyPairId), "name", name)

	if err := os.WriteFile(path, pemData, 0o600); err != nil {
		// A key whose private half was never persisted is unusable; take
		// the imported half back down rather than leak it.
		if delErr := keyPairDelete(ctx, client, name, ""); delErr != nil {
			log.Warn("failed to remove imported key pair after write failure", "error", delErr)
		}
		return fmt.Errorf("%w: %w", ErrKeyPairWrite, err)
	}
	log.Info("saved private key", "path", path)

	return nil
}

// keyPairDelete removes the AWS-side key and, when 'path' is non-empty, the
// on-disk private key material. Both sides tolerate absence.
func keyPairDelete(ctx context.Context, client API, name, path string) error {
	_, err := client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %w", ErrKeyPairDelete, err)
	}
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %w", ErrKeyPairDelete, err)
		}
	}
	return nil
}
