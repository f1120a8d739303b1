package crypto

import (
	stded25519 "crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/cometbft/cometbft/privval"
)

// PV is a voter's local ed25519 key, stored in the privval key file format.
type PV struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("error reading voter key from %v: %w", keyFilePath, err)
	}
	return &PV{
		privateKey: pvKey.PrivKey,
		publicKey:  pvKey.PubKey,
	}, nil
}

// LoadOrGenFilePV loads the key at keyFilePath, creating it first when it
// does not exist.
func LoadOrGenFilePV(keyFilePath, stateFilePath string) (*PV, error) {
	if !cmtos.FileExists(keyFilePath) {
		privval.GenFilePV(keyFilePath, stateFilePath).Save()
	}
	return LoadFilePV(keyFilePath)
}

func (k *PV) PublicKey() []byte {
	return k.publicKey.Bytes()
}

func (k *PV) Address() string {
	return k.publicKey.Address().String()
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}

// SignBallot signs a ballot message, base64 encoded as Ed25519Verifier
// expects.
func (k *PV) SignBallot(message string) (string, error) {
	sig, err := k.Sign([]byte(message))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// PublicKeyPem renders the public key as PKIX PEM for voter registration.
func (k *PV) PublicKeyPem() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(stded25519.PublicKey(k.publicKey.Bytes()))
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}
