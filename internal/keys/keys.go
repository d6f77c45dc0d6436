// Package keys owns the issuer signing key pair. The pair is created once at
// process start and kept for the process lifetime; only the public half ever
// leaves the process, through the discovery endpoint.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	// SigningAlgorithm is fixed. Verifiers must refuse anything else.
	SigningAlgorithm = "RS256"

	keyBits = 2048

	privatePEMType = "PRIVATE KEY"
	publicPEMType  = "PUBLIC KEY"
)

// PublicKeyInfo is the payload of the discovery endpoint.
type PublicKeyInfo struct {
	PublicKeyPEM string
	Algorithm    string
	KeyID        string
}

type Manager struct {
	private *rsa.PrivateKey
	keyID   string
}

// Generate creates a fresh RSA-2048 pair. Failure here is fatal for the
// issuer process: it cannot sign anything without a key.
func Generate() (*Manager, error) {
	private, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("error while generating signing key pair. Err: %w", err)
	}

	return &Manager{
		private: private,
		keyID:   uuid.NewString(),
	}, nil
}

// Load builds a manager around an already provisioned private key
// (e.g. generated with cmd/genkey). The key id is still fresh per process:
// only one key is ever active, verifiers learn the id through discovery.
func Load(privatePEM []byte) (*Manager, error) {
	private, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}

	return &Manager{
		private: private,
		keyID:   uuid.NewString(),
	}, nil
}

// Signer returns the private key. For the token manager only.
func (m *Manager) Signer() *rsa.PrivateKey {
	return m.private
}

func (m *Manager) KeyID() string {
	return m.keyID
}

func (m *Manager) PublicKeyInfo() (PublicKeyInfo, error) {
	pemBytes, err := EncodePublicKey(&m.private.PublicKey)
	if err != nil {
		return PublicKeyInfo{}, err
	}

	return PublicKeyInfo{
		PublicKeyPEM: string(pemBytes),
		Algorithm:    SigningAlgorithm,
		KeyID:        m.keyID,
	}, nil
}

func EncodePrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("error while encoding private key. Err: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: der}), nil
}

func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found in private key material")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error while parsing private key. Err: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want *rsa.PrivateKey", parsed)
	}

	return key, nil
}

func EncodePublicKey(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("error while encoding public key. Err: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: der}), nil
}

func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found in public key material")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error while parsing public key. Err: %w", err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want *rsa.PublicKey", parsed)
	}

	return key, nil
}
