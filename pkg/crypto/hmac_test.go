package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentHmacDeterministic(t *testing.T) {
	key := NewFileKey()
	data := []byte("file contents")

	a := DocumentHmac(key, data)
	b := DocumentHmac(key, data)
	assert.Equal(t, a, b)
}

func TestVerifyDocumentHmac(t *testing.T) {
	key := NewFileKey()
	data := []byte("file contents")
	h := DocumentHmac(key, data)

	assert.True(t, VerifyDocumentHmac(key, data, h))
	assert.False(t, VerifyDocumentHmac(key, []byte("tampered"), h))

	other := NewFileKey()
	assert.False(t, VerifyDocumentHmac(other, data, h))
}
