package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/cryptox"
	"github.com/inkwellapp/inkwell/internal/logging"
	"github.com/inkwellapp/inkwell/internal/models"
	"github.com/inkwellapp/inkwell/internal/repositories/settings"
	"github.com/inkwellapp/inkwell/internal/webauthn"
)

// State is the lock state of the application session.
type State string

const (
	StateLoading       State = "loading"
	StateRequiresSetup State = "requires_setup"
	StateLocked        State = "locked"
	StateUnlocked      State = "unlocked"
)

const (
	maxFailedAttempts = 5
	lockoutCooldown   = 30 * time.Second
)

// Status is the session snapshot consumed by the lock-screen UI.
type Status struct {
	IsLoading       bool
	IsLocked        bool
	RequiresSetup   bool
	HasBiometric    bool
	CanUseBiometric bool
}

// UnlockMethod is the sealed set of ways to resolve the master key. Both
// variants converge on the same key bytes through resolveMasterKey, so new
// unlock methods can be added without touching the entry store.
type UnlockMethod interface{ isUnlockMethod() }

// PINMethod unlocks by deriving a wrapping key from the PIN.
type PINMethod struct{ PIN string }

// BiometricMethod unlocks by reading the key from the authenticator's
// large-blob storage.
type BiometricMethod struct{}

func (PINMethod) isUnlockMethod()       {}
func (BiometricMethod) isUnlockMethod() {}

// SessionService owns the locked/unlocked lifecycle: it verifies unlock
// attempts, keeps the master key resident in the shared key session while
// unlocked, enforces the retry lockout and the inactivity auto-lock, and
// triggers one-time migration of legacy plaintext entries.
type SessionService struct {
	settingsRepo settings.Repository
	entries      *EntryService
	adapter      *webauthn.Adapter
	session      *cryptox.Session
	log          logging.Logger

	mu        sync.Mutex
	state     State
	settings  *models.Settings
	unlocking bool

	failedAttempts int
	lockoutUntil   time.Time

	autoLockTimer *time.Timer
	lastActivity  time.Time

	now func() time.Time
}

// NewSessionService wires the state machine to its collaborators. The
// cryptox session handle must be the same one given to the entry service.
func NewSessionService(settingsRepo settings.Repository, entriesSvc *EntryService,
	adapter *webauthn.Adapter, session *cryptox.Session, log logging.Logger) *SessionService {
	return &SessionService{
		settingsRepo: settingsRepo,
		entries:      entriesSvc,
		adapter:      adapter,
		session:      session,
		log:          log,
		state:        StateLoading,
		now:          time.Now,
	}
}

// Initialize loads the settings record and resolves the initial state:
// Locked when a PIN verifier exists, RequiresSetup when locking is enabled
// without one, otherwise Unlocked with encryption disabled.
func (s *SessionService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.settingsRepo.Load(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("load settings: %w", err)
		}
		cfg = models.DefaultSettings()
		if err := s.settingsRepo.Save(ctx, cfg); err != nil {
			return fmt.Errorf("save default settings: %w", err)
		}
	}
	s.settings = cfg
	s.entries.SetEncrypted(cfg.LockEnabled)

	switch {
	case cfg.LockEnabled && cfg.HasPINVerifier():
		s.state = StateLocked
	case cfg.LockEnabled:
		s.state = StateRequiresSetup
	default:
		s.state = StateUnlocked
	}

	s.log.Info(ctx, "session initialized", "state", string(s.state))
	return nil
}

// State returns the current lock state.
func (s *SessionService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the snapshot consumed by the lock-screen UI.
func (s *SessionService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasBio := s.settings != nil && s.settings.HasBiometric()
	return Status{
		IsLoading:       s.state == StateLoading,
		IsLocked:        s.state == StateLocked,
		RequiresSetup:   s.state == StateRequiresSetup,
		HasBiometric:    hasBio,
		CanUseBiometric: hasBio && s.adapter.Available(),
	}
}

// Unlock verifies the PIN and makes the master key resident. A wrong PIN
// returns (false, nil) without any state change until the fifth consecutive
// failure, which starts a cooldown; further calls during the cooldown are
// rejected with common.ErrLockedOut without consuming an attempt. On
// success it imports the key, restarts the activity clock, and runs the
// one-time migration of legacy plaintext entries.
func (s *SessionService) Unlock(ctx context.Context, pin string) (bool, error) {
	if _, err := s.beginUnlock(); err != nil {
		return false, err
	}
	defer s.endUnlock()

	key, err := s.resolveMasterKey(ctx, PINMethod{PIN: pin})
	if err != nil {
		if errors.Is(err, common.ErrInvalidPIN) {
			return false, s.registerFailedAttempt()
		}
		return false, err
	}

	s.completeUnlock(ctx, key)
	s.runMigration(ctx)
	return true, nil
}

// UnlockWithBiometric resolves the master key through the authenticator's
// large-blob storage. No migration runs here: migration only needs to run
// once and is covered by the PIN path and initial setup.
func (s *SessionService) UnlockWithBiometric(ctx context.Context) (bool, error) {
	cfg, err := s.beginUnlock()
	if err != nil {
		return false, err
	}
	defer s.endUnlock()

	if !cfg.HasBiometric() {
		return false, common.ErrBiometricUnavailable
	}

	key, err := s.resolveMasterKey(ctx, BiometricMethod{})
	if err != nil {
		return false, err
	}

	s.completeUnlock(ctx, key)
	return true, nil
}

// SetupPIN generates a fresh salt and verifier, wraps the master key under
// the new PIN key, and unlocks. The master key is reused when already
// resident (biometric re-setup, PIN change) and generated exactly once
// otherwise; regenerating would orphan all previously encrypted content.
func (s *SessionService) SetupPIN(ctx context.Context, pin string) error {
	s.mu.Lock()
	if s.unlocking {
		s.mu.Unlock()
		return common.ErrUnlockInProgress
	}
	if s.state == StateLocked {
		// A wrapped key already exists; replacing the verifier now would
		// orphan it. The session must be unlocked first.
		s.mu.Unlock()
		return common.ErrNoMasterKey
	}
	s.unlocking = true
	s.mu.Unlock()
	defer s.endUnlock()

	salt := cryptox.GenerateSalt()
	params := cryptox.CurrentParams()
	derived := cryptox.DeriveKey(pin, salt, params)
	defer common.WipeByteArray(derived)

	// Copy the resident key: Import wipes the previous buffer, which would
	// otherwise be this same slice.
	var masterKey []byte
	if resident, err := s.session.Key(); err == nil {
		masterKey = append([]byte(nil), resident...)
	} else {
		masterKey = cryptox.GenerateMasterKey()
	}

	wrapped, err := cryptox.EncryptMasterKey(masterKey, derived)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cfg := s.settings
	cfg.LockEnabled = true
	cfg.Salt = salt
	cfg.PINHash = cryptox.VerifierFromKey(derived)
	cfg.KDFVersion = params.Version
	cfg.EncryptedMasterKey.ByPIN = wrapped
	s.mu.Unlock()

	if err := s.settingsRepo.Save(ctx, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.entries.SetEncrypted(true)
	s.completeUnlock(ctx, masterKey)
	s.runMigration(ctx)
	s.log.Info(ctx, "pin configured")
	return nil
}

// SetupBiometric registers a platform credential and writes the resident
// master key into its large-blob storage. Requires an unlocked session.
func (s *SessionService) SetupBiometric(ctx context.Context) (bool, error) {
	if s.State() != StateUnlocked {
		return false, common.ErrNoMasterKey
	}
	if !s.adapter.Available() {
		return false, common.ErrBiometricUnavailable
	}

	key, err := s.session.Key()
	if err != nil {
		return false, err
	}

	credID, err := s.adapter.Register(ctx, "inkwell", "Inkwell Journal")
	if err != nil {
		return false, err
	}
	if err := s.adapter.WriteLargeBlob(ctx, credID, key); err != nil {
		return false, err
	}

	s.mu.Lock()
	cfg := s.settings
	cfg.BiometricCredentialID = credID
	cfg.BiometricStorageMode = models.BiometricStorageLargeBlob
	s.mu.Unlock()

	if err := s.settingsRepo.Save(ctx, cfg); err != nil {
		return false, fmt.Errorf("save settings: %w", err)
	}
	s.log.Info(ctx, "biometric unlock configured")
	return true, nil
}

// DisableEncryption verifies the PIN, then erases all key material from the
// settings record, clears the active session key, and turns locking off.
// Previously encrypted entries become permanently unreadable; the UI must
// confirm this out-of-band before calling. The PIN check shares the retry
// counter and cooldown with Unlock, so this path cannot be used to probe
// PINs faster than the lock screen allows.
func (s *SessionService) DisableEncryption(ctx context.Context, pin string) (bool, error) {
	s.mu.Lock()
	cfg := s.settings
	if cfg == nil || !cfg.HasPINVerifier() {
		s.mu.Unlock()
		return false, common.ErrSetupRequired
	}
	if !s.lockoutUntil.IsZero() {
		if s.now().Before(s.lockoutUntil) {
			s.mu.Unlock()
			return false, common.ErrLockedOut
		}
		s.failedAttempts = 0
		s.lockoutUntil = time.Time{}
	}
	s.mu.Unlock()

	params, err := cryptox.ParamsForVersion(cfg.KDFVersion)
	if err != nil {
		return false, err
	}
	if !cryptox.VerifyPIN(pin, cfg.Salt, params, cfg.PINHash) {
		if err := s.registerFailedAttempt(); err != nil {
			return false, err
		}
		return false, nil
	}

	s.adapter.Remove(ctx, cfg.BiometricCredentialID)

	s.mu.Lock()
	cfg.LockEnabled = false
	cfg.PINHash = nil
	cfg.Salt = nil
	cfg.KDFVersion = 0
	cfg.EncryptedMasterKey = models.WrappedKeys{}
	cfg.BiometricCredentialID = nil
	cfg.BiometricStorageMode = models.BiometricStorageNone
	s.stopAutoLockLocked()
	s.state = StateUnlocked
	s.failedAttempts = 0
	s.lockoutUntil = time.Time{}
	s.mu.Unlock()

	if err := s.settingsRepo.Save(ctx, cfg); err != nil {
		return false, fmt.Errorf("save settings: %w", err)
	}

	s.session.Clear()
	s.entries.SetEncrypted(false)
	s.entries.InvalidateCache()
	s.log.Info(ctx, "encryption disabled")
	return true, nil
}

// Lock clears the in-memory master key from every component holding the
// shared handle and invalidates the decrypted cache.
func (s *SessionService) Lock() {
	s.mu.Lock()
	if s.state != StateUnlocked || s.settings == nil || !s.settings.LockEnabled {
		s.mu.Unlock()
		return
	}
	s.state = StateLocked
	s.stopAutoLockLocked()
	s.mu.Unlock()

	s.session.Clear()
	s.entries.InvalidateCache()
	s.log.Info(context.Background(), "session locked")
}

// Touch records user activity and reschedules the auto-lock timer. Called
// by the UI on designated interaction events.
func (s *SessionService) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked || s.settings == nil ||
		!s.settings.LockEnabled || !s.settings.AutoLockEnabled {
		return
	}

	s.lastActivity = s.now()
	timeout := time.Duration(s.settings.AutoLockTimeoutMinutes) * time.Minute

	// One recurring timer, rescheduled on every activity event rather than
	// stacking overlapping timers.
	if s.autoLockTimer != nil {
		s.autoLockTimer.Reset(timeout)
		return
	}
	s.autoLockTimer = time.AfterFunc(timeout, s.autoLockFired)
}

func (s *SessionService) autoLockFired() {
	s.mu.Lock()
	if s.state != StateUnlocked || s.settings == nil || !s.settings.AutoLockEnabled {
		s.mu.Unlock()
		return
	}
	timeout := time.Duration(s.settings.AutoLockTimeoutMinutes) * time.Minute
	idle := s.now().Sub(s.lastActivity)
	if idle < timeout {
		// Activity arrived between firing and acquiring the lock.
		s.autoLockTimer.Reset(timeout - idle)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.Lock()
}

// resolveMasterKey is the single funnel both unlock paths go through; they
// must arrive at the same master key bytes.
func (s *SessionService) resolveMasterKey(ctx context.Context, method UnlockMethod) ([]byte, error) {
	s.mu.Lock()
	cfg := s.settings
	s.mu.Unlock()

	switch m := method.(type) {
	case PINMethod:
		params, err := cryptox.ParamsForVersion(cfg.KDFVersion)
		if err != nil {
			return nil, err
		}
		derived := cryptox.DeriveKey(m.PIN, cfg.Salt, params)
		defer common.WipeByteArray(derived)

		verifier := cryptox.VerifierFromKey(derived)
		if subtle.ConstantTimeCompare(verifier, cfg.PINHash) == 0 {
			return nil, common.ErrInvalidPIN
		}

		if cfg.EncryptedMasterKey.ByPIN == nil {
			// Settings predating master-key wrapping: mint the key now and
			// persist its wrapped form.
			key := cryptox.GenerateMasterKey()
			wrapped, err := cryptox.EncryptMasterKey(key, derived)
			if err != nil {
				return nil, err
			}
			s.mu.Lock()
			cfg.EncryptedMasterKey.ByPIN = wrapped
			s.mu.Unlock()
			if err := s.settingsRepo.Save(ctx, cfg); err != nil {
				return nil, fmt.Errorf("save settings: %w", err)
			}
			return key, nil
		}
		return cryptox.DecryptMasterKey(cfg.EncryptedMasterKey.ByPIN, derived)

	case BiometricMethod:
		blob, err := s.adapter.ReadLargeBlob(ctx, cfg.BiometricCredentialID)
		if err != nil {
			return nil, err
		}
		if len(blob) != cryptox.MasterKeySize {
			common.WipeByteArray(blob)
			return nil, common.ErrBiometricCeremonyFailed
		}
		return blob, nil

	default:
		return nil, fmt.Errorf("unknown unlock method %T", method)
	}
}

// beginUnlock enforces mutual exclusion between overlapping unlock attempts
// and the retry lockout. It returns a settings snapshot for the attempt.
func (s *SessionService) beginUnlock() (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unlocking {
		return nil, common.ErrUnlockInProgress
	}
	switch s.state {
	case StateUnlocked:
		return nil, common.ErrAlreadyUnlocked
	case StateRequiresSetup, StateLoading:
		return nil, common.ErrSetupRequired
	}

	if !s.lockoutUntil.IsZero() {
		if s.now().Before(s.lockoutUntil) {
			return nil, common.ErrLockedOut
		}
		// Cooldown expired; the counter starts over.
		s.failedAttempts = 0
		s.lockoutUntil = time.Time{}
	}

	s.unlocking = true
	return s.settings, nil
}

func (s *SessionService) endUnlock() {
	s.mu.Lock()
	s.unlocking = false
	s.mu.Unlock()
}

// registerFailedAttempt counts a wrong PIN and starts the cooldown on the
// fifth consecutive failure.
func (s *SessionService) registerFailedAttempt() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failedAttempts++
	if s.failedAttempts >= maxFailedAttempts {
		s.lockoutUntil = s.now().Add(lockoutCooldown)
		return common.ErrLockedOut
	}
	return nil
}

// completeUnlock imports the key into the shared session and transitions to
// Unlocked. The entry store holds the same session handle, so the key is
// immediately usable there.
func (s *SessionService) completeUnlock(ctx context.Context, key []byte) {
	s.session.Import(key)

	s.mu.Lock()
	s.state = StateUnlocked
	s.failedAttempts = 0
	s.lockoutUntil = time.Time{}
	s.lastActivity = s.now()
	s.mu.Unlock()

	s.Touch()
	s.log.Info(ctx, "session unlocked")
}

func (s *SessionService) runMigration(ctx context.Context) {
	count, err := s.entries.MigratePlainEntries(ctx)
	if err != nil {
		s.log.Error(ctx, "plaintext migration failed", "err", err)
		return
	}
	if count > 0 {
		s.log.Info(ctx, "migrated plaintext entries", "count", count)
	}
}

func (s *SessionService) stopAutoLockLocked() {
	if s.autoLockTimer != nil {
		s.autoLockTimer.Stop()
		s.autoLockTimer = nil
	}
}
