package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/caveau-digitale/caveaud/contexthelper"
)

// Slot names. These match the keys the original web client used in
// localStorage, which keeps exported data recognizable.
const (
	SlotAddress   = "caveau_address"    // plaintext account identifier
	SlotSeedEnc   = "caveau_seed_enc"   // recovery phrase envelope
	SlotVaultsEnc = "caveau_vaults_enc" // vault ledger envelope
	SlotPinSalt   = "caveau_pin_salt"   // plaintext hex salt
)

// ErrSlotMissing is returned when a slot has never been written or was
// wiped.
var ErrSlotMissing = errors.New("credential slot missing")

// CredentialStore is the only durable home of the app's secrets: four
// local key/value slots in a device-local SQLite file. It never touches
// the network and never sees plaintext key material, only ciphertext
// envelopes and the public address/salt.
type CredentialStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewCredentialStore(dbPath string) (*CredentialStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("fail to open credential store, err: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("fail to set pragma %q, err: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS credential_slots (
		slot TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fail to initialize schema, err: %w", err)
	}

	return &CredentialStore{
		db:     db,
		logger: logrus.WithField("module", "credential_store").Logger,
	}, nil
}

func (s *CredentialStore) GetSlot(ctx context.Context, slot string) (string, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return "", err
	}
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM credential_slots WHERE slot = ?", slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSlotMissing
	}
	if err != nil {
		return "", fmt.Errorf("fail to read slot %s, err: %w", slot, err)
	}
	return value, nil
}

func (s *CredentialStore) SetSlot(ctx context.Context, slot, value string) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credential_slots (slot, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		slot, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("fail to write slot %s, err: %w", slot, err)
	}
	return nil
}

// SetSlots writes several slots in a single transaction, all or nothing.
// The PIN commit path depends on this: a salt persisted without its
// matching seed envelope would leave the wallet unopenable by any PIN.
func (s *CredentialStore) SetSlots(ctx context.Context, slots map[string]string) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fail to begin slot write, err: %w", err)
	}
	now := time.Now().Unix()
	for slot, value := range slots {
		if _, err := tx.Exec(
			`INSERT INTO credential_slots (slot, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			slot, value, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("fail to write slot %s, err: %w", slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fail to commit slot write, err: %w", err)
	}
	return nil
}

// IsProvisioned reports whether a wallet exists on this device: both the
// account identifier and the encrypted recovery phrase must be present.
// This gates unlock-vs-welcome on launch.
func (s *CredentialStore) IsProvisioned(ctx context.Context) (bool, error) {
	if _, err := s.GetSlot(ctx, SlotAddress); err != nil {
		if errors.Is(err, ErrSlotMissing) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.GetSlot(ctx, SlotSeedEnc); err != nil {
		if errors.Is(err, ErrSlotMissing) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Wipe removes all four slots in a single transaction. Irreversible; the
// caller must have collected explicit destructive confirmation first.
func (s *CredentialStore) Wipe(ctx context.Context) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fail to begin wipe, err: %w", err)
	}
	for _, slot := range []string{SlotAddress, SlotSeedEnc, SlotVaultsEnc, SlotPinSalt} {
		if _, err := tx.Exec("DELETE FROM credential_slots WHERE slot = ?", slot); err != nil {
			tx.Rollback()
			return fmt.Errorf("fail to wipe slot %s, err: %w", slot, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fail to commit wipe, err: %w", err)
	}
	s.logger.Info("credential store wiped")
	return nil
}

func (s *CredentialStore) Close() error {
	return s.db.Close()
}
