package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// SyntheticTxHash returns a random 32-byte hash in 0x-hex form, used to
// tag deposits that carry no real on-chain transaction.
func SyntheticTxHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("fail to generate hash, err: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}
