package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/go-faster/errors"
)

// AesCTR128Encrypt is one direction of the obfuscated-transport stream.
// CTR is symmetric, so Encrypt serves both ways; the instance is
// stateful and must only be used for a single ordered byte stream.
type AesCTR128Encrypt struct {
	stream cipher.Stream
}

func NewAesCTR128Encrypt(key, iv []byte) (*AesCTR128Encrypt, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes-ctr")
	}
	return &AesCTR128Encrypt{stream: cipher.NewCTR(block, iv)}, nil
}

func (e *AesCTR128Encrypt) Encrypt(b []byte) []byte {
	out := make([]byte, len(b))
	e.stream.XORKeyStream(out, b)
	return out
}
