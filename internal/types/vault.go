package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks request payloads rejected before touching any
// state. Callers can branch on it with errors.Is.
var ErrValidation = errors.New("invalid request")

// UnlockMode is the policy governing when a vault's funds become
// releasable.
type UnlockMode string

const (
	UnlockByDate   UnlockMode = "BY_DATE"
	UnlockByAmount UnlockMode = "BY_AMOUNT"
	UnlockEither   UnlockMode = "EITHER"
	UnlockBoth     UnlockMode = "BOTH"
)

// NeedsDate reports whether the mode requires an unlock date.
func (m UnlockMode) NeedsDate() bool {
	return m == UnlockByDate || m == UnlockEither || m == UnlockBoth
}

// NeedsTarget reports whether the mode requires a target amount.
func (m UnlockMode) NeedsTarget() bool {
	return m == UnlockByAmount || m == UnlockEither || m == UnlockBoth
}

// Transaction is a single deposit into a vault. Immutable once appended.
type Transaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	TxHash      string    `json:"txHash"`
	OnChain     bool      `json:"onChain,omitempty"`
	CrossChain  bool      `json:"crossChain,omitempty"`
	SwappedFrom string    `json:"swappedFrom,omitempty"`
}

// Vault is a named savings goal with an append-only transaction ledger.
// Icon and color are display-only.
type Vault struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Icon           string        `json:"icon"`
	Color          string        `json:"color"`
	Target         *float64      `json:"target,omitempty"`
	Currency       string        `json:"currency"`
	UnlockDate     *time.Time    `json:"unlockDate,omitempty"`
	UnlockMode     UnlockMode    `json:"unlockMode"`
	Transactions   []Transaction `json:"transactions"`
	CreatedAt      time.Time     `json:"createdAt"`
	OnChainVaultID string        `json:"onChainVaultId,omitempty"`
}

// Clone returns a deep copy of the vault, detached from the ledger's
// backing slices and pointers.
func (v Vault) Clone() Vault {
	out := v
	if v.Target != nil {
		target := *v.Target
		out.Target = &target
	}
	if v.UnlockDate != nil {
		date := *v.UnlockDate
		out.UnlockDate = &date
	}
	out.Transactions = make([]Transaction, len(v.Transactions))
	copy(out.Transactions, v.Transactions)
	return out
}

// VaultCreateRequest is the payload to create a new vault.
type VaultCreateRequest struct {
	Name       string     `json:"name"`
	Icon       string     `json:"icon"`
	Color      string     `json:"color"`
	Target     *float64   `json:"target,omitempty"`
	Currency   string     `json:"currency"`
	UnlockDate *time.Time `json:"unlockDate,omitempty"`
	UnlockMode UnlockMode `json:"unlockMode"`
}

// IsValid checks the request against the per-mode field requirements:
// date for BY_DATE/EITHER/BOTH, target for BY_AMOUNT/EITHER/BOTH, and an
// unlock date that is still in the future at creation time.
func (r *VaultCreateRequest) IsValid(now time.Time) error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if r.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	switch r.UnlockMode {
	case UnlockByDate, UnlockByAmount, UnlockEither, UnlockBoth:
	default:
		return fmt.Errorf("%w: invalid unlock mode: %s", ErrValidation, r.UnlockMode)
	}
	if r.UnlockMode.NeedsDate() {
		if r.UnlockDate == nil {
			return fmt.Errorf("%w: unlock mode %s requires an unlock date", ErrValidation, r.UnlockMode)
		}
		if !r.UnlockDate.After(now) {
			return fmt.Errorf("%w: unlock date must be in the future", ErrValidation)
		}
	}
	if r.UnlockMode.NeedsTarget() {
		if r.Target == nil {
			return fmt.Errorf("%w: unlock mode %s requires a target amount", ErrValidation, r.UnlockMode)
		}
		if *r.Target <= 0 {
			return fmt.Errorf("%w: target amount must be greater than zero", ErrValidation)
		}
	}
	return nil
}

// DepositRequest is the payload to append a deposit to a vault. TxHash is
// optional; a synthetic hash is assigned when the deposit carries no
// on-chain transaction.
type DepositRequest struct {
	Amount      float64 `json:"amount"`
	TxHash      string  `json:"txHash,omitempty"`
	OnChain     bool    `json:"onChain,omitempty"`
	CrossChain  bool    `json:"crossChain,omitempty"`
	SwappedFrom string  `json:"swappedFrom,omitempty"`
}

func (r *DepositRequest) IsValid() error {
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	return nil
}
