package sealbox

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for passphrase-derived keys.
const (
	kdfTime    = 3
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

// keySalt is a fixed application salt. Keys derived here protect local
// records with an operator-held passphrase; per-record salts live in the
// nonce already prepended by the cipher.
var keySalt = []byte("cfsm-snapshot-sealbox-v1")

var ErrPassphraseTooShort = errors.New("sealbox: passphrase must be at least 8 characters")

// KeyFromPassphrase derives a sealing key from an operator passphrase using
// Argon2id.
func KeyFromPassphrase(passphrase string) ([]byte, error) {
	if len(passphrase) < 8 {
		return nil, ErrPassphraseTooShort
	}
	return argon2.IDKey([]byte(passphrase), keySalt, kdfTime, kdfMemory, kdfThreads, KeySize), nil
}

// ParseKey accepts either a 64-character hex key or a raw passphrase and
// returns a sealing key.
func ParseKey(s string) ([]byte, error) {
	if len(s) == KeySize*2 {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	return KeyFromPassphrase(s)
}
