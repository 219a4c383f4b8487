package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// SignatureVerifier checks a detached RSA-SHA256 signature over a payload.
type SignatureVerifier interface {
	Verify(payload, signature []byte) error
}

type rsaVerifier struct {
	pub *rsa.PublicKey
}

func NewRSAVerifier(pub *rsa.PublicKey) (SignatureVerifier, error) {
	if pub == nil {
		return nil, errors.New("rsa public key required")
	}
	return &rsaVerifier{pub: pub}, nil
}

// NewRSAVerifierFromPEM parses a PKIX public key.
func NewRSAVerifierFromPEM(pemText string) (SignatureVerifier, error) {
	pub, err := ParseRSAPublicKeyPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("parse rsa pub pem: %w", err)
	}
	return NewRSAVerifier(pub)
}

func (v *rsaVerifier) Verify(payload, signature []byte) error {
	sum := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(v.pub, crypto.SHA256, sum[:], signature); err != nil {
		return fmt.Errorf("rsa verify: %w", err)
	}
	return nil
}

// Sign produces the signature the processor attaches to webhook deliveries.
func Sign(priv *rsa.PrivateKey, payload []byte) ([]byte, error) {
	sum := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, sum[:])
	if err != nil {
		return nil, fmt.Errorf("rsa sign: %w", err)
	}
	return sig, nil
}

func ParseRSAPublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not rsa public key")
	}
	return pub, nil
}

func ParseRSAPrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block in RSA private key")
	}

	// try PKCS#8 first
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("not an RSA private key in PKCS#8")
	}

	// fallback to PKCS#1
	rsaKey, err2 := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, fmt.Errorf("parse RSA private key failed (PKCS#8: %v, PKCS#1: %v)", err, err2)
	}
	return rsaKey, nil
}
