package crypto

import (
	stdcrypto "crypto"
	stded25519 "crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/cometbft/cometbft/crypto/ed25519"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrUnsupportedKey = errors.New("unsupported public key")
	ErrMalformedKey   = errors.New("malformed public key")
)

type KeyType string

const (
	KeyRSA       KeyType = "rsa"
	KeyEd25519   KeyType = "ed25519"
	KeySecp256k1 KeyType = "secp256k1"
)

// RSAVerifier checks RSA-PSS/SHA-256 signatures, base64 encoded, against PEM
// keys in PKIX or PKCS#1 form.
type RSAVerifier struct{}

func parseRSA(publicKeyPem string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPem))
	if block == nil {
		return nil, ErrMalformedKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
		}
		return pub, nil
	}
	return nil, fmt.Errorf("%w: pem type %s", ErrUnsupportedKey, block.Type)
}

func (RSAVerifier) ValidatePublicKey(publicKeyPem string) error {
	_, err := parseRSA(publicKeyPem)
	return err
}

func (RSAVerifier) Verify(message, signature, publicKeyPem string) bool {
	pub, err := parseRSA(publicKeyPem)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return rsa.VerifyPSS(pub, stdcrypto.SHA256, digest[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto}) == nil
}

// Ed25519Verifier checks base64 signatures against PKIX PEM keys, the form
// `elect pubkey` prints.
type Ed25519Verifier struct{}

func parseEd25519(publicKeyPem string) (ed25519.PubKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPem))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, ErrMalformedKey
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(stded25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	return ed25519.PubKey(pub), nil
}

func (Ed25519Verifier) ValidatePublicKey(publicKeyPem string) error {
	_, err := parseEd25519(publicKeyPem)
	return err
}

func (Ed25519Verifier) Verify(message, signature, publicKeyPem string) bool {
	pub, err := parseEd25519(publicKeyPem)
	if err != nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return pub.VerifySignature([]byte(message), sig)
}

// Secp256k1Verifier checks hex [R || S || V] signatures over the Keccak256
// digest of the message. Keys are hex, compressed or not.
type Secp256k1Verifier struct{}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

func parseSecp256k1(publicKey string) ([]byte, error) {
	raw, err := decodeHex(publicKey)
	if err != nil {
		return nil, ErrMalformedKey
	}
	switch len(raw) {
	case 33:
		if _, err = ethcrypto.DecompressPubkey(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
	case 65:
		if _, err = ethcrypto.UnmarshalPubkey(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedKey, len(raw))
	}
	return raw, nil
}

func (Secp256k1Verifier) ValidatePublicKey(publicKey string) error {
	_, err := parseSecp256k1(publicKey)
	return err
}

func (Secp256k1Verifier) Verify(message, signature, publicKey string) bool {
	pub, err := parseSecp256k1(publicKey)
	if err != nil {
		return false
	}
	sig, err := decodeHex(signature)
	if err != nil || len(sig) < 64 {
		return false
	}
	return ethcrypto.VerifySignature(pub, ethcrypto.Keccak256([]byte(message)), sig[:64])
}

// DetectKeyType tells the scheme of a registered key.
func DetectKeyType(publicKey string) (KeyType, error) {
	block, _ := pem.Decode([]byte(publicKey))
	if block == nil {
		if _, err := parseSecp256k1(publicKey); err != nil {
			return "", err
		}
		return KeySecp256k1, nil
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return KeyRSA, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		switch key.(type) {
		case *rsa.PublicKey:
			return KeyRSA, nil
		case stded25519.PublicKey:
			return KeyEd25519, nil
		}
		return "", fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	return "", fmt.Errorf("%w: pem type %s", ErrUnsupportedKey, block.Type)
}

type verifier interface {
	Verify(message, signature, publicKey string) bool
	ValidatePublicKey(publicKey string) error
}

// MultiVerifier dispatches on the key type. Schemes left out of Enabled are
// rejected at registration.
type MultiVerifier struct {
	schemes map[KeyType]verifier
}

func NewMultiVerifier(enabled ...KeyType) *MultiVerifier {
	all := map[KeyType]verifier{
		KeyRSA:       RSAVerifier{},
		KeyEd25519:   Ed25519Verifier{},
		KeySecp256k1: Secp256k1Verifier{},
	}
	if len(enabled) == 0 {
		return &MultiVerifier{schemes: all}
	}
	m := &MultiVerifier{schemes: map[KeyType]verifier{}}
	for _, k := range enabled {
		if v, ok := all[k]; ok {
			m.schemes[k] = v
		}
	}
	return m
}

func (m *MultiVerifier) scheme(publicKey string) (verifier, error) {
	kt, err := DetectKeyType(publicKey)
	if err != nil {
		return nil, err
	}
	v, ok := m.schemes[kt]
	if !ok {
		return nil, fmt.Errorf("%w: %s keys are disabled", ErrUnsupportedKey, kt)
	}
	return v, nil
}

func (m *MultiVerifier) ValidatePublicKey(publicKey string) error {
	v, err := m.scheme(publicKey)
	if err != nil {
		return err
	}
	return v.ValidatePublicKey(publicKey)
}

func (m *MultiVerifier) Verify(message, signature, publicKey string) bool {
	v, err := m.scheme(publicKey)
	if err != nil {
		return false
	}
	return v.Verify(message, signature, publicKey)
}

func ParseKeyTypes(names []string) ([]KeyType, error) {
	out := make([]KeyType, 0, len(names))
	for _, n := range names {
		switch kt := KeyType(strings.ToLower(strings.TrimSpace(n))); kt {
		case KeyRSA, KeyEd25519, KeySecp256k1:
			out = append(out, kt)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedKey, n)
		}
	}
	return out, nil
}
