package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// LegacyCipher reads credentials written by the previous server: AES-256-CBC
// with key SHA-256(pepper), an all-zero IV and PKCS#7 padding, base64
// encoded. Only used to migrate rows into Cipher.
type LegacyCipher struct {
	block cipher.Block
}

// NewLegacyCipher builds the legacy format for pepper.
func NewLegacyCipher(pepper string) (*LegacyCipher, error) {
	if pepper == "" {
		return nil, ErrEmptyPepper
	}
	key := sha256.Sum256([]byte(pepper))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &LegacyCipher{block: block}, nil
}

// Encrypt produces the legacy format. Kept for fixtures and symmetry with
// Decrypt; new data goes through Cipher.
func (c *LegacyCipher) Encrypt(plaintext string) string {
	size := c.block.BlockSize()
	pad := size - len(plaintext)%size
	data := append([]byte(plaintext), bytes.Repeat([]byte{byte(pad)}, pad)...)

	cipher.NewCBCEncrypter(c.block, make([]byte, size)).CryptBlocks(data, data)
	return base64.StdEncoding.EncodeToString(data)
}

// Decrypt reverses the legacy format. A wrong pepper or corrupt input yields
// ErrInvalidCiphertext.
func (c *LegacyCipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	size := c.block.BlockSize()
	if len(data) == 0 || len(data)%size != 0 {
		return "", ErrInvalidCiphertext
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(c.block, make([]byte, size)).CryptBlocks(plain, data)

	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > size {
		return "", ErrInvalidCiphertext
	}
	if !bytes.Equal(plain[len(plain)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return "", ErrInvalidCiphertext
	}
	return string(plain[:len(plain)-pad]), nil
}
