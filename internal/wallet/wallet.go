package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

const mnemonicWords = 12

// ErrInvalidMnemonic is returned when a recovery phrase cannot be parsed
// into a valid account. Retryable, the user mistyped a word.
var ErrInvalidMnemonic = errors.New("invalid recovery phrase")

// NewMnemonic generates a fresh 12-word BIP39 recovery phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128) // 128 bits = 12 words
	if err != nil {
		return "", fmt.Errorf("fail to generate entropy, err: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("fail to generate mnemonic, err: %w", err)
	}
	return mnemonic, nil
}

// NormalizeWords joins user-supplied words into a canonical phrase.
// Returns ErrInvalidMnemonic unless exactly 12 non-empty words remain.
func NormalizeWords(words []string) (string, error) {
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			cleaned = append(cleaned, w)
		}
	}
	if len(cleaned) != mnemonicWords {
		return "", ErrInvalidMnemonic
	}
	return strings.Join(cleaned, " "), nil
}

// AddressFromMnemonic derives the account identifier from a recovery
// phrase: BIP39 seed, BIP44 path m/44'/60'/0'/0/0, EIP-55 address of the
// resulting key. Identical phrase always yields the identical address,
// which is how a recovered phrase is checked against the stored account.
func AddressFromMnemonic(mnemonic string) (string, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return "", fmt.Errorf("fail to create master key, err: %w", err)
	}

	// m/44'/60'/0'/0/0
	path := []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 60,
		bip32.FirstHardenedChild,
		0,
		0,
	}
	key := masterKey
	for _, idx := range path {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return "", fmt.Errorf("fail to derive child key, err: %w", err)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return "", fmt.Errorf("fail to build private key, err: %w", err)
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey).Hex(), nil
}

// ShortAddress renders an address as 0x1234…abcd for display on the lock
// screen.
func ShortAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
