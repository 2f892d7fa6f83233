package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/go-faster/errors"
)

// Direction names the sender of an encrypted message; the MTProto 2.0
// KDF offsets differ by 8 between the two.
type Direction int

const (
	DirectionClientToServer Direction = 0
	DirectionServerToClient Direction = 8
)

// AuthKey is the long-lived 2048-bit shared secret plus its 64-bit id
// (the low 64 bits of the key's SHA-1). Immutable once created.
type AuthKey struct {
	id  int64
	key []byte
}

func NewAuthKey(id int64, key []byte) *AuthKey {
	k := make([]byte, len(key))
	copy(k, key)
	return &AuthKey{id: id, key: k}
}

// NewAuthKeyFromBytes derives the id from the key material.
func NewAuthKeyFromBytes(key []byte) *AuthKey {
	return NewAuthKey(DeriveAuthKeyId(key), key)
}

// DeriveAuthKeyId returns low_64(SHA-1(key)), little-endian.
func DeriveAuthKeyId(key []byte) int64 {
	h := Sha1Digest(key)
	return int64(binary.LittleEndian.Uint64(h[12:20]))
}

func (k *AuthKey) AuthKeyId() int64 {
	return k.id
}

func (k *AuthKey) AuthKey() []byte {
	return k.key
}

// messageKey computes msg_key_large per MTProto 2.0 and returns its
// middle 128 bits.
func (k *AuthKey) messageKey(padded []byte, dir Direction) []byte {
	x := int(dir)
	h := sha256.New()
	h.Write(k.key[88+x : 88+x+32])
	h.Write(padded)
	large := h.Sum(nil)
	return large[8:24]
}

func (k *AuthKey) aesKeyIV(msgKey []byte, dir Direction) (key, iv []byte) {
	x := int(dir)
	a := sha256.New()
	a.Write(msgKey)
	a.Write(k.key[x : x+36])
	sha256A := a.Sum(nil)
	b := sha256.New()
	b.Write(k.key[40+x : 40+x+36])
	b.Write(msgKey)
	sha256B := b.Sum(nil)
	key = make([]byte, 0, 32)
	key = append(key, sha256A[:8]...)
	key = append(key, sha256B[8:24]...)
	key = append(key, sha256A[24:32]...)
	iv = make([]byte, 0, 32)
	iv = append(iv, sha256B[:8]...)
	iv = append(iv, sha256A[8:24]...)
	iv = append(iv, sha256B[24:32]...)
	return key, iv
}

// AesIgeEncrypt pads the plaintext with 12..1024 random bytes to a
// 16-byte boundary, derives msg_key and the AES parameters, and returns
// (msg_key, ciphertext).
func (k *AuthKey) AesIgeEncrypt(plaintext []byte, dir Direction) (msgKey, ciphertext []byte, err error) {
	padding := 16 + (16-len(plaintext)%16)&15
	padded := make([]byte, len(plaintext)+padding)
	n := copy(padded, plaintext)
	if _, err = rand.Read(padded[n:]); err != nil {
		return nil, nil, errors.Wrap(err, "padding")
	}
	msgKey = k.messageKey(padded, dir)
	aesKey, aesIV := k.aesKeyIV(msgKey, dir)
	ciphertext, err = NewAES256IGECryptor(aesKey, aesIV).Encrypt(padded)
	if err != nil {
		return nil, nil, err
	}
	return msgKey, ciphertext, nil
}

// AesIgeDecrypt reverses AesIgeEncrypt and verifies the received
// msg_key against the decrypted payload. A mismatch means the envelope
// was tampered with or the wrong key was used; the caller must treat it
// as fatal for the connection.
func (k *AuthKey) AesIgeDecrypt(msgKey, ciphertext []byte, dir Direction) ([]byte, error) {
	if len(msgKey) != 16 {
		return nil, errors.New("AesIgeDecrypt: bad msg_key size")
	}
	aesKey, aesIV := k.aesKeyIV(msgKey, dir)
	padded, err := NewAES256IGECryptor(aesKey, aesIV).Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(msgKey, k.messageKey(padded, dir)) {
		return nil, errors.New("AesIgeDecrypt: msg_key mismatch")
	}
	return padded, nil
}

// CalcNewNonceHash computes new_nonce_hashN for dh_gen answers: the low
// 128 bits of SHA1(new_nonce + N + auth_key_aux_hash), where
// auth_key_aux_hash is the first 8 bytes of SHA1(auth_key).
func CalcNewNonceHash(newNonce, authKey []byte, n byte) []byte {
	buf := make([]byte, 0, len(newNonce)+1+8)
	buf = append(buf, newNonce...)
	buf = append(buf, n)
	buf = append(buf, Sha1Digest(authKey)[:8]...)
	h := Sha1Digest(buf)
	return h[len(h)-16:]
}
