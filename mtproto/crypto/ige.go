package crypto

import (
	"crypto/aes"

	"github.com/go-faster/errors"
	"github.com/gotd/ige"
)

// AES256IGECryptor wraps AES-256 in the IGE mode used by MTProto for
// both the handshake temp encryption and the message envelope.
type AES256IGECryptor struct {
	key []byte
	iv  []byte
}

func NewAES256IGECryptor(key, iv []byte) *AES256IGECryptor {
	return &AES256IGECryptor{key: key, iv: iv}
}

func (c *AES256IGECryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, errors.New("AES256IGECryptor: plaintext is not block-aligned")
	}
	b, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "aes")
	}
	out := make([]byte, len(plaintext))
	ige.EncryptBlocks(b, c.iv, out, plaintext)
	return out, nil
}

func (c *AES256IGECryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("AES256IGECryptor: ciphertext is not block-aligned")
	}
	b, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "aes")
	}
	out := make([]byte, len(ciphertext))
	ige.DecryptBlocks(b, c.iv, out, ciphertext)
	return out, nil
}

// DeriveTempAESKeyIV computes the temporary AES key and IV that protect
// server_DH_inner_data and client_DH_inner_data:
//
//	tmp_aes_key = SHA1(new_nonce + server_nonce) + SHA1(server_nonce + new_nonce)[0:12]
//	tmp_aes_iv  = SHA1(server_nonce + new_nonce)[12:20] + SHA1(new_nonce + new_nonce) + new_nonce[0:4]
func DeriveTempAESKeyIV(newNonce, serverNonce []byte) (key, iv []byte) {
	sha1A := Sha1Digest(append(append([]byte{}, newNonce...), serverNonce...))
	sha1B := Sha1Digest(append(append([]byte{}, serverNonce...), newNonce...))
	sha1C := Sha1Digest(append(append([]byte{}, newNonce...), newNonce...))
	key = make([]byte, 0, 32)
	key = append(key, sha1A...)
	key = append(key, sha1B[:12]...)
	iv = make([]byte, 0, 32)
	iv = append(iv, sha1B[12:20]...)
	iv = append(iv, sha1C...)
	iv = append(iv, newNonce[:4]...)
	return key, iv
}
