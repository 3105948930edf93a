package keycrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2-SHA256 with 120000 iterations, matching the derivation the
	// web client shipped with. Existing envelopes are only recoverable
	// with these exact parameters.
	kdfIterations = 120000
	keyLen        = 32
	nonceLen      = 12
	pinSaltLen    = 16
)

// Context salt prefixes. The vault tag carries a v1 version literal: a
// future derivation change must introduce a new tag and migrate, never
// alter these in place.
const (
	PinSaltPrefix   = "caveau-pin-"
	VaultSaltPrefix = "caveau-vaults-v1-"
)

// ErrDecryption is returned when an envelope cannot be opened: wrong key,
// truncated blob, or a failed authentication tag. Callers treat all three
// the same, this is the only wrong-PIN feedback mechanism.
var ErrDecryption = errors.New("fail to decrypt envelope")

// DeriveKey stretches a secret into a 32-byte AES key scoped by the
// context salt. The same secret yields different keys for different
// purposes (PIN wrapping vs vault wrapping).
func DeriveKey(secret, contextSalt string) []byte {
	return pbkdf2.Key([]byte(secret), []byte(contextSalt), kdfIterations, keyLen, sha256.New)
}

// RandomPinSalt returns a fresh per-installation PIN salt as a hex string.
func RandomPinSalt() (string, error) {
	salt := make([]byte, pinSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("fail to generate pin salt, err: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// envelope is the wire shape of a sealed value: {"iv":[...],"d":[...]}.
// Both fields serialize as JSON arrays of integers so blobs written by
// the original web client round-trip unchanged.
type envelope struct {
	IV byteArray `json:"iv"`
	D  byteArray `json:"d"`
}

type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *byteArray) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value out of range: %d", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Seal serializes value to JSON and encrypts it with AES-256-GCM under a
// fresh random nonce, returning the envelope as a JSON string.
func Seal(key []byte, value any) (string, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("fail to marshal value, err: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("fail to create cipher, err: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("fail to create gcm, err: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("fail to generate nonce, err: %w", err)
	}

	env := envelope{
		IV: nonce,
		D:  gcm.Seal(nil, nonce, plaintext, nil),
	}
	buf, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("fail to marshal envelope, err: %w", err)
	}
	return string(buf), nil
}

// Open decrypts an envelope produced by Seal and unmarshals the plaintext
// into out. A wrong key or a tampered envelope fails closed with
// ErrDecryption; Open never yields garbage plaintext.
func Open(key []byte, blob string, out any) error {
	var env envelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil {
		return ErrDecryption
	}
	if len(env.IV) != nonceLen {
		return ErrDecryption
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("fail to create cipher, err: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("fail to create gcm, err: %w", err)
	}

	plaintext, err := gcm.Open(nil, env.IV, env.D, nil)
	if err != nil {
		return ErrDecryption
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("fail to unmarshal plaintext, err: %w", err)
	}
	return nil
}
