// Package sshkeys is a small facade over 'crypto/ed25519' and 'x/crypto/ssh'
// for the key handling a throwaway gateway needs: generate a fresh keypair,
// marshal the public half to the OpenSSH 'authorized_keys' format for import
// into AWS, persist the private half as a PEM file, and read it back as an
// 'ssh.Signer' for connection probes.
package sshkeys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

var (
	ErrKeyGen         = fmt.Errorf("failed to generate an ed25519 keypair")
	ErrPubKeyConv     = fmt.Errorf("failed to convert the ed25519 public key to 'ssh.PublicKey'")
	ErrPubKeyMarshal  = fmt.Errorf("failed to marshal the public key to OpenSSH format")
	ErrPrivKeyConv    = fmt.Errorf("failed to convert the ed25519 private key to an 'ssh.Signer'")
	ErrPrivKeyMarshal = fmt.Errorf("failed to marshal the private key to OpenSSH format")
	ErrPEMEncode      = fmt.Errorf("failed to PEM-encode the private key")
	ErrKeyParse       = fmt.Errorf("failed to parse the PEM-encoded private key")
)

type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewKeyPair generates a fresh ed25519 keypair.
func NewKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %w", ErrKeyGen, err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// MarshalPublicOpenSSH renders the public key in the OpenSSH
// 'authorized_keys' format AWS expects for key pair import.
func (kp KeyPair) MarshalPublicOpenSSH() ([]byte, error) {
	pub, err := ssh.NewPublicKey(kp.Public)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPubKeyConv, err)
	}
	marshaled := ssh.MarshalAuthorizedKey(pub)
	if marshaled == nil {
		return nil, ErrPubKeyMarshal
	}
	return marshaled, nil
}

// MarshalPrivateOpenSSH renders the private key as a PEM block in the
// OpenSSH private key format.
func (kp KeyPair) MarshalPrivateOpenSSH(comment string) ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(kp.Private, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyMarshal, err)
	}
	encoded := pem.EncodeToMemory(block)
	if encoded == nil {
		return nil, ErrPEMEncode
	}
	return encoded, nil
}

// Signer converts the private key to an 'ssh.Signer' for client auth.
func (kp KeyPair) Signer() (ssh.Signer, error) {
	signer, err := ssh.NewSignerFromKey(kp.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrivKeyConv, err)
	}
	return signer, nil
}

// LoadSigner reads a PEM-encoded OpenSSH private key from 'path' and returns
// it as an 'ssh.Signer'.
func LoadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyParse, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyParse, err)
	}
	return signer, nil
}
