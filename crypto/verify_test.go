package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsaKey(t *testing.T) (*rsa.PrivateKey, string, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pkix := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)}))
	return priv, pkix, pkcs1
}

func TestRSAVerifier(t *testing.T) {
	priv, pkix, pkcs1 := rsaKey(t)
	digest := sha256.Sum256([]byte("Green"))
	raw, err := rsa.SignPSS(rand.Reader, priv, stdcrypto.SHA256, digest[:], nil)
	require.NoError(t, err)
	sig := base64.StdEncoding.EncodeToString(raw)

	v := RSAVerifier{}
	require.NoError(t, v.ValidatePublicKey(pkix))
	require.NoError(t, v.ValidatePublicKey(pkcs1))
	assert.True(t, v.Verify("Green", sig, pkix))
	assert.True(t, v.Verify("Green", sig, pkcs1))
	assert.False(t, v.Verify("Blue", sig, pkix))
	assert.False(t, v.Verify("Green", "not base64!", pkix))
	assert.Error(t, v.ValidatePublicKey("garbage"))
}

func TestEd25519Verifier(t *testing.T) {
	dir := t.TempDir()
	pv, err := LoadOrGenFilePV(filepath.Join(dir, "voter_key.json"), filepath.Join(dir, "voter_state.json"))
	require.NoError(t, err)
	again, err := LoadOrGenFilePV(filepath.Join(dir, "voter_key.json"), filepath.Join(dir, "voter_state.json"))
	require.NoError(t, err)
	assert.Equal(t, pv.PublicKey(), again.PublicKey())

	key, err := pv.PublicKeyPem()
	require.NoError(t, err)
	sig, err := pv.SignBallot("Green")
	require.NoError(t, err)

	v := Ed25519Verifier{}
	require.NoError(t, v.ValidatePublicKey(key))
	assert.True(t, v.Verify("Green", sig, key))
	assert.False(t, v.Verify("Blue", sig, key))

	kt, err := DetectKeyType(key)
	require.NoError(t, err)
	assert.Equal(t, KeyEd25519, kt)
}

func TestSecp256k1Verifier(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	raw, err := ethcrypto.Sign(ethcrypto.Keccak256([]byte("Green")), priv)
	require.NoError(t, err)
	sig := "0x" + hex.EncodeToString(raw)
	full := hex.EncodeToString(ethcrypto.FromECDSAPub(&priv.PublicKey))
	compressed := hex.EncodeToString(ethcrypto.CompressPubkey(&priv.PublicKey))

	v := Secp256k1Verifier{}
	assert.True(t, v.Verify("Green", sig, full))
	assert.True(t, v.Verify("Green", sig, compressed))
	assert.False(t, v.Verify("Blue", sig, full))
	assert.Error(t, v.ValidatePublicKey("abcd"))
}

func TestMultiVerifier(t *testing.T) {
	priv, pkix, _ := rsaKey(t)
	digest := sha256.Sum256([]byte("Green"))
	raw, err := rsa.SignPSS(rand.Reader, priv, stdcrypto.SHA256, digest[:], nil)
	require.NoError(t, err)
	sig := base64.StdEncoding.EncodeToString(raw)

	all := NewMultiVerifier()
	require.NoError(t, all.ValidatePublicKey(pkix))
	assert.True(t, all.Verify("Green", sig, pkix))

	edOnly := NewMultiVerifier(KeyEd25519)
	require.ErrorIs(t, edOnly.ValidatePublicKey(pkix), ErrUnsupportedKey)
	assert.False(t, edOnly.Verify("Green", sig, pkix))

	kts, err := ParseKeyTypes([]string{"RSA", " ed25519"})
	require.NoError(t, err)
	assert.Equal(t, []KeyType{KeyRSA, KeyEd25519}, kts)
	_, err = ParseKeyTypes([]string{"dsa"})
	require.ErrorIs(t, err, ErrUnsupportedKey)
}
