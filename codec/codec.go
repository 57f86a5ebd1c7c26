// Package codec implements the 3DES-24 payload encryption Xpresspay requires
// for card and account requests.
//
// The gateway expects every sensitive payload encrypted with Triple DES in
// ECB mode using PKCS7 padding, keyed by 24 bytes derived from the merchant
// secret key via MD5. ECB is a protocol constraint, not a choice: the
// gateway has no side channel to exchange a per-call IV. The secret key
// never leaves the caller's server; only ciphertext goes on the wire.
package codec

import (
	"crypto/des"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
)

// SecretKeyPrefix is the literal prefix every Xpresspay secret key carries.
const SecretKeyPrefix = "XPSECK-"

const blockSize = 8 // DES block size

// DeriveKey derives the 24-byte 3DES key from the Xpresspay secret key.
//
// Algorithm (as documented by Xpresspay, reproduced bit-for-bit):
//  1. Strip the "XPSECK-" prefix and take the first 12 characters.
//  2. MD5-hash the full (un-stripped) secret key and take the last 12 hex chars.
//  3. Concatenate both parts -> 24 ASCII bytes.
func DeriveKey(secretKey string) ([]byte, error) {
	if secretKey == "" {
		return nil, xperrors.NewEncryptionError("secret key must not be empty", nil)
	}

	stripped := strings.ReplaceAll(secretKey, SecretKeyPrefix, "")
	if len(stripped) < 12 {
		return nil, xperrors.NewEncryptionError(
			"secret key is too short to derive an encryption key; use the full key from your Xpresspay dashboard", nil)
	}

	partA := stripped[:12]

	sum := md5.Sum([]byte(secretKey))
	md5Hex := hex.EncodeToString(sum[:])
	partB := md5Hex[len(md5Hex)-12:]

	return []byte(partA + partB), nil
}

// Encrypt serializes the payload to compact JSON, encrypts it with 3DES-ECB
// under the key derived from secretKey, and returns the base64 ciphertext to
// be sent as the "request" field.
//
// All failures happen locally, before any network call.
func Encrypt(payload map[string]any, secretKey string) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", xperrors.NewEncryptionError(fmt.Sprintf("failed to serialize payload to JSON: %v", err), err)
	}

	key, err := DeriveKey(secretKey)
	if err != nil {
		return "", err
	}

	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return "", xperrors.NewEncryptionError(fmt.Sprintf("encryption failed: %v", err), err)
	}

	padded := pad(plaintext)
	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += blockSize {
		block.Encrypt(ciphertext[i:i+blockSize], padded[i:i+blockSize])
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt: base64 decode, 3DES-ECB decrypt, strip PKCS7
// padding, parse JSON. Only needed when the gateway echoes encrypted fields
// back, but it also pins the codec contract in round-trip tests.
func Decrypt(ciphertext, secretKey string) (map[string]any, error) {
	key, err := DeriveKey(secretKey)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, xperrors.NewEncryptionError(fmt.Sprintf("ciphertext is not valid base64: %v", err), err)
	}
	if len(raw) == 0 || len(raw)%blockSize != 0 {
		return nil, xperrors.NewEncryptionError("ciphertext length is not a multiple of the cipher block size", nil)
	}

	block, err := des.NewTripleDESCipher(key)
	if err != nil {
		return nil, xperrors.NewEncryptionError(fmt.Sprintf("decryption failed: %v", err), err)
	}

	plaintext := make([]byte, len(raw))
	for i := 0; i < len(raw); i += blockSize {
		block.Decrypt(plaintext[i:i+blockSize], raw[i:i+blockSize])
	}

	plaintext, err = unpad(plaintext)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, xperrors.NewEncryptionError(fmt.Sprintf("decrypted payload is not valid JSON: %v", err), err)
	}
	return payload, nil
}

// pad appends PKCS7 padding to a multiple of the DES block size.
// The plaintext always gains at least one padding byte.
func pad(data []byte) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data), len(data)+padLen)
	copy(padded, data)
	for i := 0; i < padLen; i++ {
		padded = append(padded, byte(padLen))
	}
	return padded
}

func unpad(data []byte) ([]byte, error) {
	padLen := int(data[len(data)-1])
	if padLen < 1 || padLen > blockSize || padLen > len(data) {
		return nil, xperrors.NewEncryptionError("invalid PKCS7 padding", nil)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, xperrors.NewEncryptionError("invalid PKCS7 padding", nil)
		}
	}
	return data[:len(data)-padLen], nil
}
