package event

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Request headers carrying the push signature.
const (
	HeaderTimestamp = "X-Lark-Request-Timestamp"
	HeaderNonce     = "X-Lark-Request-Nonce"
	HeaderSignature = "X-Lark-Signature"
)

var (
	ErrMissingEncryptKey = errors.New("payload is encrypted but no encrypt key is configured")
	ErrInvalidSignature  = errors.New("invalid signature in event")
	ErrInvalidToken      = errors.New("invalid verification token")
)

// Decrypt opens an "encrypt" field. The cipher is AES-256-CBC keyed by
// SHA-256(key); the IV is the first block of the base64-decoded payload.
func Decrypt(encrypted, key string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted payload: %w", err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("encrypted payload has invalid length %d", len(raw))
	}

	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return unpad(plain)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}

// Signature computes hex(sha256(timestamp + nonce + key + body)).
func Signature(timestamp, nonce, key string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(timestamp + nonce + key))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature compares signature against the expected value in constant time.
func VerifySignature(signature, timestamp, nonce, key string, body []byte) error {
	want := Signature(timestamp, nonce, key, body)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(want)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
