package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

const (
	keySize = 32 // AES-256
	ivSize  = aes.BlockSize
)

// CryptoError wraps any encryption or decryption failure. Callers must
// not swallow it: a decrypt failure on a credential aborts the operation
// using that credential.
type CryptoError struct {
	Op  string // "encrypt" or "decrypt"
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("vault %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Vault performs symmetric encryption of secret strings with a fixed
// process-wide key and IV loaded at startup.
type Vault struct {
	block cipher.Block
	iv    []byte
}

// New creates a vault from raw key and IV bytes. The key must be exactly
// 256 bits and the IV exactly 128 bits; malformed material fails fast.
func New(key, iv []byte) (*Vault, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keySize, len(key))
	}
	if len(iv) != ivSize {
		return nil, fmt.Errorf("vault iv must be %d bytes, got %d", ivSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	return &Vault{block: block, iv: iv}, nil
}

// Encrypt encrypts plaintext with AES-256-CBC and returns base64 ciphertext
func (v *Vault) Encrypt(plaintext string) (string, error) {
	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))

	enc := cipher.NewCBCEncrypter(v.block, v.iv)
	enc.CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed input surfaces as a CryptoError.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: err}
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", &CryptoError{Op: "decrypt", Err: fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(raw))}
	}

	out := make([]byte, len(raw))
	dec := cipher.NewCBCDecrypter(v.block, v.iv)
	dec.CryptBlocks(out, raw)

	plain, err := unpad(out)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: err}
	}
	return string(plain), nil
}

// pad applies PKCS#7 padding to a full block boundary
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding, rejecting malformed trailers
func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
