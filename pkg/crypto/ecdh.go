package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/lockbook/lbcore/pkg/lberr"
)

// WrappedKey is a file key wrapped either asymmetrically (to a public key,
// via ECDH) or symmetrically (under another file's key).
type WrappedKey struct {
	// EphemeralPublicKey is set only for an asymmetric wrap: the one-time
	// public key the recipient uses to recompute the shared secret.
	EphemeralPublicKey []byte
	Ciphertext          []byte
}

// sharedSecret runs ECDH between priv and pub, returning a 32-byte AES key
// derived from the shared point's x-coordinate via SHA-256.
func sharedSecret(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) FileKey {
	var point, result secp256k1.JacobianPoint
	pub.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()

	x := result.X.Bytes()
	return sha256.Sum256(x[:])
}

// WrapAsymmetric wraps fileKey to recipientPub using one-time ECDH: a fresh
// ephemeral key pair agrees a shared secret with recipientPub, which AEAD-
// encrypts fileKey. Used for root and shared-file entries in
// user_access_keys.
func WrapAsymmetric(fileKey FileKey, recipientPub PublicKey) (WrappedKey, error) {
	ephemeral, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return WrappedKey{}, lberr.UnexpectedErr("generate ephemeral key: %v", err)
	}

	secret := sharedSecret(ephemeral, recipientPub.inner)
	ciphertext, err := Encrypt(secret, fileKey[:])
	if err != nil {
		return WrappedKey{}, err
	}

	return WrappedKey{
		EphemeralPublicKey: ephemeral.PubKey().SerializeCompressed(),
		Ciphertext:          ciphertext,
	}, nil
}

// UnwrapAsymmetric recovers the file key wrapped by WrapAsymmetric, given
// the recipient's private key.
func UnwrapAsymmetric(wrapped WrappedKey, recipientPriv PrivateKey) (FileKey, error) {
	ephemeralPub, err := secp256k1.ParsePubKey(wrapped.EphemeralPublicKey)
	if err != nil {
		return FileKey{}, lberr.New(lberr.CryptoDeserialize, "bad ephemeral public key")
	}

	secret := sharedSecret(recipientPriv.inner, ephemeralPub)
	plaintext, err := Decrypt(secret, wrapped.Ciphertext)
	if err != nil {
		return FileKey{}, err
	}
	if len(plaintext) != 32 {
		return FileKey{}, lberr.New(lberr.DecryptFailed, "unwrapped key has wrong length")
	}

	var key FileKey
	copy(key[:], plaintext)
	return key, nil
}

// WrapSymmetric wraps a child file's key under its parent's file key. Used
// for folder_access_key on nested files.
func WrapSymmetric(fileKey FileKey, parentKey FileKey) (WrappedKey, error) {
	ciphertext, err := Encrypt(parentKey, fileKey[:])
	if err != nil {
		return WrappedKey{}, err
	}
	return WrappedKey{Ciphertext: ciphertext}, nil
}

// UnwrapSymmetric recovers a file key wrapped by WrapSymmetric.
func UnwrapSymmetric(wrapped WrappedKey, parentKey FileKey) (FileKey, error) {
	plaintext, err := Decrypt(parentKey, wrapped.Ciphertext)
	if err != nil {
		return FileKey{}, err
	}
	if len(plaintext) != 32 {
		return FileKey{}, lberr.New(lberr.DecryptFailed, "unwrapped key has wrong length")
	}
	var key FileKey
	copy(key[:], plaintext)
	return key, nil
}
