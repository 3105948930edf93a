package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caveau-digitale/caveaud/internal/keycrypt"
	"github.com/caveau-digitale/caveaud/internal/types"
	"github.com/caveau-digitale/caveaud/storage"
)

// ErrVaultNotFound is returned when a vault id does not exist in the
// ledger.
var ErrVaultNotFound = errors.New("vault not found")

// LoadResult tells callers which path Load took: a successful decrypt of
// the stored envelope, or the deliberate fallback to an empty ledger when
// the envelope is absent or does not open. The fallback keeps the
// dashboard usable instead of blocking unlock on bad vault data.
type LoadResult string

const (
	LoadRecovered     LoadResult = "recovered"
	LoadEmptyFallback LoadResult = "empty_fallback"
)

// Ledger holds the decrypted vault records for the current unlocked
// session. Mutations are in-memory only; durability is the caller's
// responsibility through Save, so tests can assert pre-persistence state.
type Ledger struct {
	store  *storage.CredentialStore
	logger *logrus.Logger
	vaults []types.Vault
}

func New(store *storage.CredentialStore) *Ledger {
	return &Ledger{
		store:  store,
		logger: logrus.WithField("module", "ledger").Logger,
		vaults: []types.Vault{},
	}
}

// TotalDeposited is the sum of all deposit amounts in the vault.
func TotalDeposited(v *types.Vault) float64 {
	var total float64
	for _, tx := range v.Transactions {
		total += tx.Amount
	}
	return total
}

// IsUnlocked evaluates the vault's release condition at the given time.
// The date condition holds iff an unlock date is present and has elapsed;
// the amount condition holds iff a target is present and total deposits
// reached it. The mode combines them; a vault whose mode has no
// applicable condition is never unlocked.
func IsUnlocked(v *types.Vault, now time.Time) bool {
	dateHolds := v.UnlockDate != nil && !now.Before(*v.UnlockDate)
	amountHolds := v.Target != nil && TotalDeposited(v) >= *v.Target

	switch v.UnlockMode {
	case types.UnlockByDate:
		return v.UnlockDate != nil && dateHolds
	case types.UnlockByAmount:
		return v.Target != nil && amountHolds
	case types.UnlockEither:
		return dateHolds || amountHolds
	case types.UnlockBoth:
		return v.UnlockDate != nil && v.Target != nil && dateHolds && amountHolds
	default:
		return false
	}
}

// Vaults returns the in-memory records.
func (l *Ledger) Vaults() []types.Vault {
	return l.vaults
}

// Snapshot returns a deep copy of the records, safe to hand to callers
// that read outside the session lock.
func (l *Ledger) Snapshot() []types.Vault {
	out := make([]types.Vault, len(l.vaults))
	for i := range l.vaults {
		out[i] = l.vaults[i].Clone()
	}
	return out
}

// Get returns the vault with the given id.
func (l *Ledger) Get(id string) (*types.Vault, error) {
	for i := range l.vaults {
		if l.vaults[i].ID == id {
			return &l.vaults[i], nil
		}
	}
	return nil, ErrVaultNotFound
}

// AddVault appends a record to the ledger. The caller persists.
func (l *Ledger) AddVault(v types.Vault) {
	l.vaults = append(l.vaults, v)
}

// AppendTransaction appends a deposit to a vault. Records are append-only;
// nothing is ever edited or deleted in place. The caller persists.
func (l *Ledger) AppendTransaction(vaultID string, tx types.Transaction) error {
	v, err := l.Get(vaultID)
	if err != nil {
		return err
	}
	v.Transactions = append(v.Transactions, tx)
	return nil
}

// Load decrypts the persisted vault envelope under the session vault key.
// A missing or unopenable envelope degrades to an empty ledger rather
// than failing; only storage itself being unavailable is an error.
func (l *Ledger) Load(ctx context.Context, vaultKey []byte) (LoadResult, error) {
	blob, err := l.store.GetSlot(ctx, storage.SlotVaultsEnc)
	if err != nil {
		if errors.Is(err, storage.ErrSlotMissing) {
			l.vaults = []types.Vault{}
			return LoadEmptyFallback, nil
		}
		return "", fmt.Errorf("fail to read vault envelope, err: %w", err)
	}

	var vaults []types.Vault
	if err := keycrypt.Open(vaultKey, blob, &vaults); err != nil {
		// wrong key, tampered blob, or a record shape this build cannot
		// decode all degrade the same way: empty ledger, unlock proceeds
		l.logger.WithError(err).Warn("vault envelope did not open, starting with empty ledger")
		l.vaults = []types.Vault{}
		return LoadEmptyFallback, nil
	}
	if vaults == nil {
		vaults = []types.Vault{}
	}
	l.vaults = vaults
	return LoadRecovered, nil
}

// Save seals the ledger under the session vault key and persists it.
func (l *Ledger) Save(ctx context.Context, vaultKey []byte) error {
	blob, err := keycrypt.Seal(vaultKey, l.vaults)
	if err != nil {
		return fmt.Errorf("fail to seal vault ledger, err: %w", err)
	}
	if err := l.store.SetSlot(ctx, storage.SlotVaultsEnc, blob); err != nil {
		return fmt.Errorf("fail to persist vault ledger, err: %w", err)
	}
	return nil
}
