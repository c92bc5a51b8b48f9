// Package sealbox provides authenticated encryption for snapshot records at
// rest.
//
// It selects the cipher from hardware capabilities: AES-256-GCM where AES
// instructions are available, ChaCha20-Poly1305 elsewhere. The nonce is
// prepended to the ciphertext, so a sealed box is self-contained.
package sealbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType identifies the sealing algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = 32

var (
	ErrBadKeySize         = errors.New("sealbox: key must be 32 bytes")
	ErrCiphertextTooShort = errors.New("sealbox: ciphertext shorter than nonce")
)

// Cipher seals and opens snapshot payloads. Additional data binds a sealed
// payload to its record identity.
type Cipher interface {
	Type() CipherType
	Encrypt(plaintext, additionalData []byte) ([]byte, error)
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)
}

// New creates a cipher for the key, picking the algorithm hardware prefers.
func New(key []byte) (Cipher, error) {
	if hardwareAES() {
		return newBox(key, CipherAESGCM)
	}
	return newBox(key, CipherChaCha20)
}

// NewWithType creates a cipher of an explicit type, for decoding records
// sealed on different hardware.
func NewWithType(key []byte, t CipherType) (Cipher, error) {
	return newBox(key, t)
}

// hardwareAES reports whether the platform runs AES in hardware. Go's
// crypto/aes uses AES-NI on amd64 and the ARM crypto extensions on arm64.
func hardwareAES() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

type box struct {
	aead cipher.AEAD
	typ  CipherType
}

func newBox(key []byte, t CipherType) (*box, error) {
	if len(key) != KeySize {
		return nil, ErrBadKeySize
	}
	var aead cipher.AEAD
	switch t {
	case CipherAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
	case CipherChaCha20:
		var err error
		aead, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("sealbox: unknown cipher type " + string(t))
	}
	return &box{aead: aead, typ: t}, nil
}

func (b *box) Type() CipherType { return b.typ }

func (b *box) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return b.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (b *box) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	n := b.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, ErrCiphertextTooShort
	}
	return b.aead.Open(nil, ciphertext[:n], ciphertext[n:], additionalData)
}
