package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/caveau-digitale/caveaud/common"
	"github.com/caveau-digitale/caveaud/internal/ledger"
	"github.com/caveau-digitale/caveaud/internal/types"
)

// CreateVault validates and appends a new vault record, then persists
// the ledger before returning. Only available while unlocked.
func (s *Session) CreateVault(ctx context.Context, req types.VaultCreateRequest) (*types.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	now := time.Now().UTC()
	if err := req.IsValid(now); err != nil {
		return nil, err
	}

	vault := types.Vault{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Icon:         req.Icon,
		Color:        req.Color,
		Target:       req.Target,
		Currency:     req.Currency,
		UnlockDate:   req.UnlockDate,
		UnlockMode:   req.UnlockMode,
		Transactions: []types.Transaction{},
		CreatedAt:    now,
	}
	s.ledger.AddVault(vault)
	if err := s.ledger.Save(ctx, s.vaultKey); err != nil {
		return nil, err
	}
	clone := vault.Clone()
	return &clone, nil
}

// Deposit appends a transaction to a vault and persists the ledger. When
// the deposit carries no on-chain hash a synthetic one is assigned.
func (s *Session) Deposit(ctx context.Context, vaultID string, req types.DepositRequest) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	if err := req.IsValid(); err != nil {
		return nil, err
	}

	txHash := req.TxHash
	if txHash == "" {
		var err error
		txHash, err = common.SyntheticTxHash()
		if err != nil {
			return nil, err
		}
	}

	tx := types.Transaction{
		ID:          uuid.New().String(),
		Date:        time.Now().UTC(),
		Amount:      req.Amount,
		TxHash:      txHash,
		OnChain:     req.OnChain,
		CrossChain:  req.CrossChain,
		SwappedFrom: req.SwappedFrom,
	}
	if err := s.ledger.AppendTransaction(vaultID, tx); err != nil {
		return nil, err
	}
	if err := s.ledger.Save(ctx, s.vaultKey); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Vaults returns a copy of the session's vault records. Copies keep the
// ledger's backing slices inside the lock; callers marshal after it is
// released.
func (s *Session) Vaults() ([]types.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	return s.ledger.Snapshot(), nil
}

// Vault returns a copy of one vault by id.
func (s *Session) Vault(id string) (*types.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	v, err := s.ledger.Get(id)
	if err != nil {
		return nil, err
	}
	clone := v.Clone()
	return &clone, nil
}

// Summary builds the dashboard header for the active session.
func (s *Session) Summary() (*ledger.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	summary := s.ledger.Summarize(time.Now().UTC())
	return &summary, nil
}

// History returns the cumulative savings series across all vaults.
func (s *Session) History() ([]ledger.HistoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	return s.ledger.History(), nil
}

// Progress returns the actual-vs-ideal series for one vault.
func (s *Session) Progress(vaultID string) (*ledger.ProgressSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	return s.ledger.Progress(vaultID, time.Now().UTC())
}
