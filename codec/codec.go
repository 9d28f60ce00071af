// Package codec seals message payloads with AES-256-GCM before they reach
// the store. This guards data at rest in a single-tenant deployment; it is
// not a substitute for per-conversation keys.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters. The iteration count follows the usual
// password-based KDF floor; the key is derived once per process, so the
// cost is paid at startup, not per message.
const (
	DefaultIterations = 100_000
	keyLength         = 32
)

// envelope is the storage shape of one sealed payload: two integer arrays
// so the JSON survives any transport that mangles raw bytes.
type envelope struct {
	IV   []int `json:"iv"`
	Data []int `json:"data"`
}

type Codec struct {
	aead cipher.AEAD
}

// New derives the process key from passphrase and salt and prepares the
// AEAD. Derivation is deliberately slow; call once and share the Codec.
func New(passphrase, salt string, iterations int) (*Codec, error) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(salt), iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Encode seals plaintext under a fresh random nonce and returns the JSON
// envelope string.
func (c *Codec) Encode(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	raw, err := json.Marshal(envelope{IV: toInts(nonce), Data: toInts(sealed)})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode opens an envelope produced by Encode. Anything else, including
// corrupt ciphertext, foreign JSON or plain text, comes back unchanged:
// a conversation render must never fail on one bad entry.
func (c *Codec) Decode(stored string) string {
	var env envelope
	if err := json.Unmarshal([]byte(stored), &env); err != nil {
		return stored
	}
	if len(env.IV) != c.aead.NonceSize() || len(env.Data) == 0 {
		return stored
	}

	nonce, ok := toBytes(env.IV)
	if !ok {
		return stored
	}
	sealed, ok := toBytes(env.Data)
	if !ok {
		return stored
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return stored
	}
	return string(plaintext)
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func toBytes(ints []int) ([]byte, bool) {
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, false
		}
		out[i] = byte(v)
	}
	return out, true
}
