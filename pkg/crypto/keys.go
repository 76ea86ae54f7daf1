package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/lockbook/lbcore/pkg/lberr"
)

// PrivateKey is an account's secp256k1 signing/key-agreement key.
type PrivateKey struct {
	inner *secp256k1.PrivateKey
}

// PublicKey is the compressed-form public half of a PrivateKey, also used
// as an Owner (see pkg/model).
type PublicKey struct {
	inner *secp256k1.PublicKey
}

// GeneratePrivateKey creates a fresh random key pair.
func GeneratePrivateKey() (PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return PrivateKey{}, lberr.UnexpectedErr("generate key: %v", err)
	}
	return PrivateKey{inner: k}, nil
}

// PrivateKeyFromBytes parses a 32-byte scalar into a PrivateKey.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	if len(b) != 32 {
		return PrivateKey{}, lberr.New(lberr.KeyPhraseInvalid, "private key must be 32 bytes")
	}
	return PrivateKey{inner: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Bytes returns the 32-byte scalar encoding of the private key.
func (k PrivateKey) Bytes() []byte {
	b := k.inner.Serialize()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Public derives the matching public key.
func (k PrivateKey) Public() PublicKey {
	return PublicKey{inner: k.inner.PubKey()}
}

// PublicKeyFromBytes parses a compressed (33-byte) public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, lberr.New(lberr.CryptoDeserialize, err.Error())
	}
	return PublicKey{inner: pk}, nil
}

// Bytes returns the compressed (33-byte) encoding of the public key.
func (k PublicKey) Bytes() []byte {
	return k.inner.SerializeCompressed()
}

// Equal reports whether two public keys are the same point.
func (k PublicKey) Equal(other PublicKey) bool {
	if k.inner == nil || other.inner == nil {
		return k.inner == other.inner
	}
	return k.inner.IsEqual(other.inner)
}
