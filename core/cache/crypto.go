package cache

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// cipherBox holds the process-random AES-256-CBC key and IV generated
// once at startup. §4.5: "Encryption is informational-only; it does
// not provide cross-process confidentiality" — the point is to keep
// values unreadable by a casual heap/core-dump inspection, not to
// protect against a determined attacker with process access.
type cipherBox struct {
	block cipher.Block
	iv    [aes.BlockSize]byte
}

func newCipherBox() (*cipherBox, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cache: generating encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cache: initializing cipher: %w", err)
	}

	cb := &cipherBox{block: block}
	if _, err := rand.Read(cb.iv[:]); err != nil {
		return nil, fmt.Errorf("cache: generating IV: %w", err)
	}
	return cb, nil
}

// encrypt PKCS#7-pads plaintext to the cipher's block size and encrypts
// it under CBC mode with the process IV.
func (cb *cipherBox) encrypt(plaintext []byte) []byte {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(cb.block, cb.iv[:]).CryptBlocks(out, padded)
	return out
}

// decrypt reverses encrypt. Callers control both sides of this layer
// boundary (serialize -> encrypt -> store, and its inverse), so a
// malformed ciphertext here indicates store corruption, not untrusted
// input (§9: "retain as a layer boundary ... so the transform can be
// replaced with identity for testing").
func (cb *cipherBox) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cache: ciphertext is not block-aligned")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(cb.block, cb.iv[:]).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > len(data) {
		return nil, fmt.Errorf("cache: invalid padding")
	}
	return data[:len(data)-padLen], nil
}
