package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// DocumentHmac computes the keyed HMAC-SHA-256 of ciphertext under the file
// key, recorded in metadata so divergence can be detected without
// decrypting the document.
func DocumentHmac(key FileKey, ciphertext []byte) [32]byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(ciphertext)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// VerifyDocumentHmac reports whether ciphertext matches the recorded HMAC.
func VerifyDocumentHmac(key FileKey, ciphertext []byte, want [32]byte) bool {
	got := DocumentHmac(key, ciphertext)
	return hmac.Equal(got[:], want[:])
}
