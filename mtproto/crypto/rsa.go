package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"math/big"
	"os"

	"github.com/go-faster/errors"
)

// RSAKey is a server-side MTProto RSA key. The handshake uses raw
// (textbook) RSA over a single 255/256-byte block, not OAEP or PKCS#1
// padding, so both directions are plain modular exponentiation.
type RSAKey struct {
	priv        *rsa.PrivateKey
	fingerprint int64
}

func NewRSAKey(priv *rsa.PrivateKey) *RSAKey {
	return &RSAKey{
		priv:        priv,
		fingerprint: PublicKeyFingerprint(priv.N, priv.E),
	}
}

// LoadRSAKey reads a PKCS#1 or PKCS#8 PEM private key.
func LoadRSAKey(path string) (*RSAKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "rsa key")
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("rsa key: no PEM block")
	}
	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return NewRSAKey(priv), nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "rsa key")
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("rsa key: not an RSA key")
	}
	return NewRSAKey(priv), nil
}

func (k *RSAKey) Fingerprint() int64 {
	return k.fingerprint
}

func (k *RSAKey) Public() *rsa.PublicKey {
	return &k.priv.PublicKey
}

// Decrypt recovers the client's encrypted_data block: c^d mod n,
// left-padded to 256 bytes.
func (k *RSAKey) Decrypt(block []byte) []byte {
	c := new(big.Int).SetBytes(block)
	m := new(big.Int).Exp(c, k.priv.D, k.priv.N)
	out := make([]byte, 256)
	b := m.Bytes()
	copy(out[256-len(b):], b)
	return out
}

// RSAEncryptBlock is the client half: m^e mod n over one block of at
// most 255 bytes.
func RSAEncryptBlock(block []byte, pub *rsa.PublicKey) []byte {
	m := new(big.Int).SetBytes(block)
	c := new(big.Int).Exp(m, big.NewInt(int64(pub.E)), pub.N)
	out := make([]byte, 256)
	b := c.Bytes()
	copy(out[256-len(b):], b)
	return out
}

// PublicKeyFingerprint is low_64(SHA1(rsa_public_key n:string e:string))
// with n and e as TL byte strings of their big-endian representations.
func PublicKeyFingerprint(n *big.Int, e int) int64 {
	buf := appendTLBytes(nil, n.Bytes())
	buf = appendTLBytes(buf, big.NewInt(int64(e)).Bytes())
	h := Sha1Digest(buf)
	return int64(binary.LittleEndian.Uint64(h[12:20]))
}

func appendTLBytes(buf, v []byte) []byte {
	var rem int
	if len(v) < 254 {
		buf = append(buf, byte(len(v)))
		buf = append(buf, v...)
		rem = (len(v) + 1) % 4
	} else {
		buf = append(buf, 254, byte(len(v)), byte(len(v)>>8), byte(len(v)>>16))
		buf = append(buf, v...)
		rem = len(v) % 4
	}
	if rem != 0 {
		buf = append(buf, make([]byte, 4-rem)...)
	}
	return buf
}
