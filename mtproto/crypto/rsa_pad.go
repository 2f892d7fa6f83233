package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"github.com/go-faster/errors"
)

// The handshake wraps p_q_inner_data with the RSA_PAD scheme: the
// 192-byte payload travels reversed inside an AES-IGE layer keyed by a
// throwaway key that is itself XOR-masked with the ciphertext hash, and
// the whole 256-byte block goes through raw RSA.

const rsaPadDataSize = 192

var zeroIV32 = make([]byte, 32)

// RSAPadEncrypt is the client half. data must fit in 192 bytes.
func RSAPadEncrypt(data []byte, pub *rsa.PublicKey) ([]byte, error) {
	if len(data) > rsaPadDataSize {
		return nil, errors.Errorf("rsa_pad: data too long: %d", len(data))
	}
	dataWithPadding := make([]byte, rsaPadDataSize)
	copy(dataWithPadding, data)
	if _, err := rand.Read(dataWithPadding[len(data):]); err != nil {
		return nil, errors.Wrap(err, "rsa_pad")
	}
	dataPadReversed := make([]byte, rsaPadDataSize)
	for i := range dataPadReversed {
		dataPadReversed[i] = dataWithPadding[rsaPadDataSize-1-i]
	}
	for {
		tempKey := GenerateNonce(32)
		hashInput := append(append([]byte{}, tempKey...), dataWithPadding...)
		dataWithHash := append(append([]byte{}, dataPadReversed...), Sha256Digest(hashInput)...)
		aesEncrypted, err := NewAES256IGECryptor(tempKey, zeroIV32).Encrypt(dataWithHash)
		if err != nil {
			return nil, err
		}
		tempKeyXor := make([]byte, 32)
		mask := Sha256Digest(aesEncrypted)
		for i := range tempKeyXor {
			tempKeyXor[i] = tempKey[i] ^ mask[i]
		}
		block := append(tempKeyXor, aesEncrypted...)
		// The block must be numerically below the modulus for raw RSA.
		if new(big.Int).SetBytes(block).Cmp(pub.N) >= 0 {
			continue
		}
		return RSAEncryptBlock(block, pub), nil
	}
}

// RSAPadDecrypt is the server half, returning the 192-byte
// data_with_padding (TL payload first).
func (k *RSAKey) RSAPadDecrypt(encrypted []byte) ([]byte, error) {
	block := k.Decrypt(encrypted)
	if len(block) != 256 {
		return nil, errors.New("rsa_pad: bad block size")
	}
	tempKey := make([]byte, 32)
	mask := Sha256Digest(block[32:])
	for i := range tempKey {
		tempKey[i] = block[i] ^ mask[i]
	}
	dataWithHash, err := NewAES256IGECryptor(tempKey, zeroIV32).Decrypt(block[32:])
	if err != nil {
		return nil, err
	}
	dataPadReversed := dataWithHash[:rsaPadDataSize]
	dataWithPadding := make([]byte, rsaPadDataSize)
	for i := range dataWithPadding {
		dataWithPadding[i] = dataPadReversed[rsaPadDataSize-1-i]
	}
	hashInput := append(append([]byte{}, tempKey...), dataWithPadding...)
	if !bytes.Equal(Sha256Digest(hashInput), dataWithHash[rsaPadDataSize:]) {
		return nil, errors.New("rsa_pad: hash mismatch")
	}
	return dataWithPadding, nil
}
