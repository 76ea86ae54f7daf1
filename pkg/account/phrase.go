package account

import (
	"crypto/sha256"
	"strings"

	"github.com/lockbook/lbcore/pkg/crypto"
	"github.com/lockbook/lbcore/pkg/lberr"
)

// Recovery phrase layout, ported from the original core's
// get_phrase/phrase_to_private_key: the 256 key bits are followed by a
// 4-bit checksum (the top 4 bits of SHA-256(key)), then padded with 4 zero
// bits to reach 264 bits = 24 words x 11 bits.
const (
	keyBits       = 256
	checksumBits  = 4
	wordBits      = 11
	phraseWords   = 24
	totalBits     = phraseWords * wordBits // 264
)

// ToPhrase encodes priv as 24 words from the fixed dictionary.
func ToPhrase(priv crypto.PrivateKey) []string {
	keyBytes := priv.Bytes()
	bits := bytesToBits(keyBytes)

	checksum := sha256.Sum256(keyBytes)
	checksumBitsSlice := bytesToBits(checksum[:])[:checksumBits]
	bits = append(bits, checksumBitsSlice...)

	for len(bits) < totalBits {
		bits = append(bits, false)
	}

	words := make([]string, 0, phraseWords)
	for i := 0; i < phraseWords; i++ {
		chunk := bits[i*wordBits : (i+1)*wordBits]
		words = append(words, wordlist[bitsToInt(chunk)])
	}
	return words
}

// FromPhrase reverses ToPhrase, validating the embedded checksum.
func FromPhrase(words []string) (crypto.PrivateKey, error) {
	if len(words) != phraseWords {
		return crypto.PrivateKey{}, lberr.Of(lberr.KeyPhraseInvalid)
	}

	bits := make([]bool, 0, totalBits)
	for _, w := range words {
		idx, ok := wordIndex[strings.ToLower(strings.TrimSpace(w))]
		if !ok {
			return crypto.PrivateKey{}, lberr.Of(lberr.KeyPhraseInvalid)
		}
		bits = append(bits, intToBits(idx, wordBits)...)
	}

	keyBitsSlice := bits[:keyBits]
	checksumBitsSlice := bits[keyBits : keyBits+checksumBits]

	keyBytes := bitsToBytes(keyBitsSlice)
	checksum := sha256.Sum256(keyBytes)
	wantChecksum := bytesToBits(checksum[:])[:checksumBits]

	for i := range checksumBitsSlice {
		if checksumBitsSlice[i] != wantChecksum[i] {
			return crypto.PrivateKey{}, lberr.Of(lberr.KeyPhraseInvalid)
		}
	}

	return crypto.PrivateKeyFromBytes(keyBytes)
}

func bytesToBits(b []byte) []bool {
	bits := make([]bool, 0, len(b)*8)
	for _, byt := range b {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (byt>>uint(i))&1 == 1)
		}
	}
	return bits
}

func bitsToBytes(bits []bool) []byte {
	out := make([]byte, len(bits)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func bitsToInt(bits []bool) int {
	n := 0
	for _, bit := range bits {
		n <<= 1
		if bit {
			n |= 1
		}
	}
	return n
}

func intToBits(n, width int) []bool {
	bits := make([]bool, width)
	for i := width - 1; i >= 0; i-- {
		bits[i] = n&1 == 1
		n >>= 1
	}
	return bits
}
