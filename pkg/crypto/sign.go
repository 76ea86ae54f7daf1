package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/lockbook/lbcore/pkg/lberr"
)

// Signature is a detached ECDSA signature bundled with the signer's
// compressed public key, so Verify can return the signer's identity without
// a separate lookup.
type Signature struct {
	PublicKey []byte
	Sig       []byte // DER-encoded
}

// Sign produces a detached signature over the SHA-256 digest of data.
func Sign(priv PrivateKey, data []byte) Signature {
	digest := sha256.Sum256(data)
	sig := ecdsa.Sign(priv.inner, digest[:])
	return Signature{
		PublicKey: priv.Public().Bytes(),
		Sig:       sig.Serialize(),
	}
}

// Verify checks sig against data, returning the embedded signer's public
// key on success.
func Verify(sig Signature, data []byte) (PublicKey, error) {
	pub, err := PublicKeyFromBytes(sig.PublicKey)
	if err != nil {
		return PublicKey{}, err
	}

	parsed, err := ecdsa.ParseDERSignature(sig.Sig)
	if err != nil {
		return PublicKey{}, lberr.New(lberr.SignatureMismatch, "malformed signature")
	}

	digest := sha256.Sum256(data)
	if !parsed.Verify(digest[:], pub.inner) {
		return PublicKey{}, lberr.Of(lberr.SignatureMismatch)
	}
	return pub, nil
}
