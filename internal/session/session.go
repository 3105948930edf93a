package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/caveau-digitale/caveaud/internal/keycrypt"
	"github.com/caveau-digitale/caveaud/internal/ledger"
	"github.com/caveau-digitale/caveaud/internal/wallet"
	"github.com/caveau-digitale/caveaud/storage"
)

// State is the current screen of the onboarding/unlock flow. Locked and
// Unlocked are steady states; there are no terminal states.
type State string

const (
	StateWelcome          State = "welcome"
	StateSeedConfirmation State = "seed_confirmation"
	StateSettingPin       State = "setting_pin"
	StateLocked           State = "locked"
	StateUnlocked         State = "unlocked"
)

// PinStage tracks the two-step PIN entry protocol.
type PinStage string

const (
	PinStageFirst   PinStage = "first"
	PinStageConfirm PinStage = "confirm"
)

var (
	// ErrInvalidPin rejects anything that is not exactly 6 digits.
	ErrInvalidPin = errors.New("PIN must be 6 digits")

	// ErrPinMismatch means the confirmation entry did not match the
	// first entry. The whole PIN flow restarts from the first stage.
	ErrPinMismatch = errors.New("PINs do not match")

	// ErrWrongPin is the single user-facing unlock failure. It covers
	// both decryption failure and account mismatch; the distinction is
	// deliberately not surfaced to avoid an oracle, but the two internal
	// variants below stay distinguishable for logs and tests.
	ErrWrongPin = errors.New("wrong PIN")

	ErrSeedDecryptFailed = fmt.Errorf("seed envelope did not open: %w", ErrWrongPin)
	ErrAccountMismatch   = fmt.Errorf("recovered account does not match stored account: %w", ErrWrongPin)

	// ErrInvalidState rejects an operation issued outside its screen.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrNotConfirmed rejects a wipe without explicit destructive intent.
	ErrNotConfirmed = errors.New("wipe requires explicit confirmation")
)

var pinPattern = regexp.MustCompile(`^\d{6}$`)

// Session is the single in-memory session on this device: the state
// machine plus the transient key material it owns. All key material lives
// only here and is zeroed on lock and wipe. One PIN-entry buffer is the
// serialization point, guarded by the mutex.
type Session struct {
	mu     sync.Mutex
	logger *logrus.Logger
	store  *storage.CredentialStore

	state    State
	pinStage PinStage
	pinFirst string

	// tempMnemonic holds the recovery phrase only between wallet
	// creation/restore and PIN commit, never longer.
	tempMnemonic string
	afterRestore bool

	address  string
	vaultKey []byte
	ledger   *ledger.Ledger
	lastLoad ledger.LoadResult
}

func New(store *storage.CredentialStore) *Session {
	return &Session{
		logger:   logrus.WithField("service", "session").Logger,
		store:    store,
		state:    StateWelcome,
		pinStage: PinStageFirst,
	}
}

// Start decides the launch screen: Locked when a wallet is provisioned on
// this device, Welcome otherwise.
func (s *Session) Start(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	provisioned, err := s.store.IsProvisioned(ctx)
	if err != nil {
		return "", fmt.Errorf("fail to check provisioning, err: %w", err)
	}
	if provisioned {
		s.state = StateLocked
	} else {
		s.state = StateWelcome
	}
	return s.state, nil
}

// CreateWallet generates a fresh recovery phrase and its account address.
// Nothing is persisted: the phrase is held transiently until the user
// confirms custody and commits a PIN.
func (s *Session) CreateWallet(ctx context.Context) (address string, words []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWelcome {
		return "", nil, ErrInvalidState
	}
	mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		return "", nil, err
	}
	addr, err := wallet.AddressFromMnemonic(mnemonic)
	if err != nil {
		return "", nil, err
	}

	s.tempMnemonic = mnemonic
	s.address = addr
	s.afterRestore = false
	s.state = StateSeedConfirmation
	s.logger.WithField("address", addr).Info("wallet created, awaiting seed confirmation")
	return addr, strings.Fields(mnemonic), nil
}

// ConfirmSeed records that the user affirmed they wrote down the phrase
// and moves on to PIN entry. Still nothing persisted.
func (s *Session) ConfirmSeed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSeedConfirmation {
		return ErrInvalidState
	}
	s.resetPinEntry()
	s.state = StateSettingPin
	return nil
}

// Restore accepts a 12-word phrase for wallet restore or PIN reset. When
// the recovered address matches the locally stored one this is a
// recovery: the existing vault ledger is reloaded, unless reset is set,
// which discards it and starts over. A non-matching phrase establishes a
// fresh local record with an empty ledger. Either way the flow proceeds
// to PIN entry, which overwrites the stored PIN salt and seed envelope
// on commit.
func (s *Session) Restore(ctx context.Context, words []string, reset bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWelcome && s.state != StateLocked {
		return ErrInvalidState
	}
	mnemonic, err := wallet.NormalizeWords(words)
	if err != nil {
		return err
	}
	addr, err := wallet.AddressFromMnemonic(mnemonic)
	if err != nil {
		return err
	}

	s.tempMnemonic = mnemonic
	s.address = addr
	s.afterRestore = true

	stored, err := s.store.GetSlot(ctx, storage.SlotAddress)
	if err == nil && strings.EqualFold(stored, addr) && !reset {
		vaultKey := keycrypt.DeriveKey(mnemonic, keycrypt.VaultSaltPrefix+addr)
		l := ledger.New(s.store)
		result, err := l.Load(ctx, vaultKey)
		if err != nil {
			return err
		}
		s.vaultKey = vaultKey
		s.ledger = l
		s.lastLoad = result
		s.logger.WithField("address", addr).Info("restore matched stored account, ledger recovered")
	} else if err != nil && !errors.Is(err, storage.ErrSlotMissing) {
		return err
	}

	s.resetPinEntry()
	s.state = StateSettingPin
	return nil
}

// SubmitPin drives the two-step PIN protocol. The first entry is
// buffered and the stage moves to confirm. A mismatched confirmation
// discards both buffers, resets to the first stage and returns
// ErrPinMismatch without touching persisted state. A matched
// confirmation commits: fresh PIN salt, sealed phrase, stored address,
// derived vault key, discarded plaintext, persisted ledger, Unlocked.
func (s *Session) SubmitPin(ctx context.Context, pin string) (PinStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSettingPin {
		return "", ErrInvalidState
	}
	if !pinPattern.MatchString(pin) {
		return s.pinStage, ErrInvalidPin
	}

	if s.pinStage == PinStageFirst {
		s.pinFirst = pin
		s.pinStage = PinStageConfirm
		return s.pinStage, nil
	}

	if pin != s.pinFirst {
		s.resetPinEntry()
		return s.pinStage, ErrPinMismatch
	}

	if err := s.commitPin(ctx, pin); err != nil {
		return s.pinStage, err
	}
	return s.pinStage, nil
}

// commitPin performs the persistence sequence after a confirmed PIN.
// Caller holds the lock.
func (s *Session) commitPin(ctx context.Context, pin string) error {
	pinSalt, err := keycrypt.RandomPinSalt()
	if err != nil {
		return err
	}
	pinKey := keycrypt.DeriveKey(pin, keycrypt.PinSaltPrefix+pinSalt)
	sealed, err := keycrypt.Seal(pinKey, s.tempMnemonic)
	if err != nil {
		return err
	}

	// salt, envelope and address land together or not at all. A salt
	// stored without its envelope would orphan the previous envelope on a
	// PIN reset.
	if err := s.store.SetSlots(ctx, map[string]string{
		storage.SlotPinSalt: pinSalt,
		storage.SlotSeedEnc: sealed,
		storage.SlotAddress: s.address,
	}); err != nil {
		return err
	}

	s.vaultKey = keycrypt.DeriveKey(s.tempMnemonic, keycrypt.VaultSaltPrefix+s.address)
	s.tempMnemonic = ""
	s.resetPinEntry()

	if s.ledger == nil {
		s.ledger = ledger.New(s.store)
	}
	if err := s.ledger.Save(ctx, s.vaultKey); err != nil {
		return err
	}

	s.state = StateUnlocked
	s.logger.WithFields(logrus.Fields{
		"address":       s.address,
		"after_restore": s.afterRestore,
	}).Info("PIN committed, session unlocked")
	return nil
}

// Unlock opens the session for a returning user. Decryption failure and
// recovered-address mismatch both come back as ErrWrongPin; neither path
// mutates any persisted slot.
func (s *Session) Unlock(ctx context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLocked {
		return ErrInvalidState
	}
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPin
	}

	mnemonic, err := s.openSeed(ctx, pin)
	if err != nil {
		return err
	}

	stored, err := s.store.GetSlot(ctx, storage.SlotAddress)
	if err != nil {
		return fmt.Errorf("fail to read stored address, err: %w", err)
	}
	addr, err := wallet.AddressFromMnemonic(mnemonic)
	if err != nil {
		// the envelope opened but its content is not a valid phrase;
		// treated identically to a bad key
		s.logger.Warn("unlock recovered an unparseable phrase")
		return ErrSeedDecryptFailed
	}
	if !strings.EqualFold(addr, stored) {
		s.logger.Warn("unlock recovered a different account than stored")
		return ErrAccountMismatch
	}

	s.address = stored
	s.vaultKey = keycrypt.DeriveKey(mnemonic, keycrypt.VaultSaltPrefix+stored)

	l := ledger.New(s.store)
	result, err := l.Load(ctx, s.vaultKey)
	if err != nil {
		return err
	}
	s.ledger = l
	s.lastLoad = result
	s.state = StateUnlocked
	s.logger.WithFields(logrus.Fields{
		"address":     wallet.ShortAddress(stored),
		"load_result": result,
	}).Info("session unlocked")
	return nil
}

// openSeed derives the PIN key from the stored salt and opens the stored
// seed envelope. Caller holds the lock.
func (s *Session) openSeed(ctx context.Context, pin string) (string, error) {
	pinSalt, err := s.store.GetSlot(ctx, storage.SlotPinSalt)
	if err != nil {
		return "", fmt.Errorf("fail to read pin salt, err: %w", err)
	}
	blob, err := s.store.GetSlot(ctx, storage.SlotSeedEnc)
	if err != nil {
		return "", fmt.Errorf("fail to read seed envelope, err: %w", err)
	}

	pinKey := keycrypt.DeriveKey(pin, keycrypt.PinSaltPrefix+pinSalt)
	var mnemonic string
	if err := keycrypt.Open(pinKey, blob, &mnemonic); err != nil {
		if errors.Is(err, keycrypt.ErrDecryption) {
			return "", ErrSeedDecryptFailed
		}
		return "", err
	}
	return mnemonic, nil
}

// RevealPhrase returns the recovery phrase after re-checking the PIN.
// The phrase is higher-sensitivity than the vault ledger, so it is
// re-gated on every reveal even though the session already holds the
// vault key.
func (s *Session) RevealPhrase(ctx context.Context, pin string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked {
		return nil, ErrInvalidState
	}
	if !pinPattern.MatchString(pin) {
		return nil, ErrInvalidPin
	}
	mnemonic, err := s.openSeed(ctx, pin)
	if err != nil {
		return nil, err
	}
	return strings.Fields(mnemonic), nil
}

// Lock drops the session's key material and returns to the lock screen.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
	s.state = StateLocked
}

// Wipe deletes everything on this device. Requires explicit confirmation;
// only this operation ever removes persisted data.
func (s *Session) Wipe(ctx context.Context, confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !confirm {
		return ErrNotConfirmed
	}
	if err := s.store.Wipe(ctx); err != nil {
		return err
	}
	s.teardown()
	s.address = ""
	s.state = StateWelcome
	s.logger.Info("wallet wiped, back to welcome")
	return nil
}

// teardown zeroes key material references. Caller holds the lock.
func (s *Session) teardown() {
	for i := range s.vaultKey {
		s.vaultKey[i] = 0
	}
	s.vaultKey = nil
	s.tempMnemonic = ""
	s.ledger = nil
	s.lastLoad = ""
	s.resetPinEntry()
}

func (s *Session) resetPinEntry() {
	s.pinFirst = ""
	s.pinStage = PinStageFirst
}

// Provisioned reports whether committed credentials exist in the store,
// independent of where the flow currently sits.
func (s *Session) Provisioned(ctx context.Context) (bool, error) {
	return s.store.IsProvisioned(ctx)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PinStage returns the current stage of the PIN entry protocol.
func (s *Session) PinStage() PinStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinStage
}

// Address returns the public account identifier of the active session.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// LastLoad reports which path the most recent ledger load took.
func (s *Session) LastLoad() ledger.LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoad
}
