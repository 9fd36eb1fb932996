package services

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/cryptox"
	"github.com/inkwellapp/inkwell/internal/logging"
	"github.com/inkwellapp/inkwell/internal/repositories/entries"
	"github.com/inkwellapp/inkwell/internal/repositories/photos"
	"github.com/inkwellapp/inkwell/internal/repositories/settings"
	"github.com/inkwellapp/inkwell/internal/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE settings (key TEXT PRIMARY KEY, value BLOB NOT NULL);
CREATE TABLE entries (
  id TEXT PRIMARY KEY,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  content BLOB,
  nonce_content BLOB,
  alg TEXT NOT NULL DEFAULT '',
  plain_content TEXT NOT NULL DEFAULT '',
  mood TEXT NOT NULL DEFAULT '',
  word_count INTEGER NOT NULL DEFAULT 0,
  has_photo INTEGER NOT NULL DEFAULT 0,
  archived INTEGER NOT NULL DEFAULT 0,
  deleted INTEGER NOT NULL DEFAULT 0,
  deleted_at TIMESTAMP
);
CREATE TABLE photos (
  id TEXT PRIMARY KEY,
  entry_id TEXT NOT NULL UNIQUE,
  blob BLOB NOT NULL,
  nonce_blob BLOB NOT NULL,
  alg TEXT NOT NULL DEFAULT '',
  mime_type TEXT NOT NULL DEFAULT '',
  caption TEXT NOT NULL DEFAULT ''
);
`)
	require.NoError(t, err)

	return db
}

type fixture struct {
	db      *sql.DB
	session *cryptox.Session
	entries *EntryService
	sess    *SessionService
	authn   *webauthn.FakeAuthenticator
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)
	log := logging.NewNopLogger()

	keySession := cryptox.NewSession()
	es := NewEntryService(entries.NewSQLiteRepository(db), photos.NewSQLiteRepository(db), keySession, log)

	authn := webauthn.NewFakeAuthenticator()
	adapter := webauthn.NewAdapter(context.Background(), authn, log)

	ss := NewSessionService(settings.NewSQLiteRepository(db), es, adapter, keySession, log)
	require.NoError(t, ss.Initialize(context.Background()))

	return &fixture{db: db, session: keySession, entries: es, sess: ss, authn: authn}
}

func TestInitialize_FreshDatabaseIsUnlockedWithoutEncryption(t *testing.T) {
	f := setupFixture(t)

	assert.Equal(t, StateUnlocked, f.sess.State())
	st := f.sess.Status()
	assert.False(t, st.IsLocked)
	assert.False(t, st.RequiresSetup)
}

func TestSetupPIN_ThenLockUnlockRoundTrip(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	assert.Equal(t, StateUnlocked, f.sess.State())

	list, err := f.entries.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, list.Entries)

	_, err = f.entries.Create(ctx, EntryInput{Content: "hello"})
	require.NoError(t, err)

	f.sess.Lock()
	assert.Equal(t, StateLocked, f.sess.State())

	list, err = f.entries.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "", list.Entries[0].Content, "no plaintext is rendered pre-unlock")

	ok, err := f.sess.Unlock(ctx, "482910")
	require.NoError(t, err)
	require.True(t, ok)

	list, err = f.entries.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "hello", list.Entries[0].Content)
}

func TestUnlock_WrongPINLeavesStateUntouched(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Lock()

	before := loadRawSettings(t, f.db)

	ok, err := f.sess.Unlock(ctx, "000000")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateLocked, f.sess.State())
	assert.False(t, f.session.Active(), "no key imported on failed unlock")
	assert.Equal(t, before, loadRawSettings(t, f.db), "settings must not be mutated")
}

func TestUnlock_LockoutAfterFiveFailures(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Lock()

	for i := 0; i < 4; i++ {
		ok, err := f.sess.Unlock(ctx, "999999")
		require.NoError(t, err)
		require.False(t, ok)
	}

	ok, err := f.sess.Unlock(ctx, "999999")
	require.ErrorIs(t, err, common.ErrLockedOut, "fifth failure starts the cooldown")
	require.False(t, ok)

	// A sixth call during the cooldown is rejected without consuming an
	// attempt, even with the correct PIN.
	attempts := f.sess.failedAttempts
	_, err = f.sess.Unlock(ctx, "482910")
	require.ErrorIs(t, err, common.ErrLockedOut)
	assert.Equal(t, attempts, f.sess.failedAttempts)

	// After the cooldown the correct PIN unlocks again.
	f.sess.now = func() time.Time { return time.Now().Add(lockoutCooldown + time.Second) }
	ok, err = f.sess.Unlock(ctx, "482910")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_NoStaleKeySurvives(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	e, err := f.entries.Create(ctx, EntryInput{Content: "private"})
	require.NoError(t, err)

	shared, err := f.session.Key()
	require.NoError(t, err)

	f.sess.Lock()

	for _, b := range shared {
		if b != 0 {
			t.Fatal("stale master key copy survived Lock")
		}
	}

	// A previously-cached entry must not come back as plaintext.
	_, err = f.entries.Get(ctx, e.ID)
	require.ErrorIs(t, err, common.ErrNoMasterKey)
}

func TestBiometric_RoundTripYieldsSameMasterKey(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))

	key, err := f.session.Key()
	require.NoError(t, err)
	original := append([]byte(nil), key...)

	ok, err := f.sess.SetupBiometric(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	st := f.sess.Status()
	assert.True(t, st.HasBiometric)
	assert.True(t, st.CanUseBiometric)

	f.sess.Lock()

	ok, err = f.sess.UnlockWithBiometric(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	key, err = f.session.Key()
	require.NoError(t, err)
	assert.Equal(t, original, key, "both unlock paths converge on the same key bytes")
}

func TestSetupPIN_ChangeWhileUnlockedKeepsEntriesReadable(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	e, err := f.entries.Create(ctx, EntryInput{Content: "before the change"})
	require.NoError(t, err)

	// Changing the PIN re-wraps the same master key.
	require.NoError(t, f.sess.SetupPIN(ctx, "137955"))

	f.entries.InvalidateCache()
	got, err := f.entries.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "before the change", got.Content)

	f.sess.Lock()
	ok, err := f.sess.Unlock(ctx, "137955")
	require.NoError(t, err)
	require.True(t, ok)

	got, err = f.entries.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "before the change", got.Content)
}

func TestUnlockWithBiometric_NotConfigured(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Lock()

	_, err := f.sess.UnlockWithBiometric(ctx)
	require.ErrorIs(t, err, common.ErrBiometricUnavailable)
}

func TestUnlockWithBiometric_CeremonyFailureFallsBackToPIN(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	_, err := f.sess.SetupBiometric(ctx)
	require.NoError(t, err)
	f.sess.Lock()

	f.authn.FailNextCeremony = true
	_, err = f.sess.UnlockWithBiometric(ctx)
	require.ErrorIs(t, err, common.ErrBiometricCeremonyFailed)
	assert.Equal(t, StateLocked, f.sess.State())

	ok, err := f.sess.Unlock(ctx, "482910")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlock_MigratesLegacyPlaintextEntries(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Entries written before encryption was turned on.
	_, err := f.entries.Create(ctx, EntryInput{Content: "pre-encryption"})
	require.NoError(t, err)

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))

	// The legacy row is now ciphertext.
	var plain string
	var nonce []byte
	require.NoError(t, f.db.QueryRow(`SELECT plain_content, nonce_content FROM entries`).Scan(&plain, &nonce))
	assert.Empty(t, plain)
	assert.NotEmpty(t, nonce)

	// And still readable through the store.
	list, err := f.entries.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "pre-encryption", list.Entries[0].Content)

	// Idempotent: a second run migrates nothing.
	count, err := f.entries.MigratePlainEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDisableEncryption(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	_, err := f.sess.SetupBiometric(ctx)
	require.NoError(t, err)

	ok, err := f.sess.DisableEncryption(ctx, "000000")
	require.NoError(t, err)
	assert.False(t, ok, "wrong pin refuses to disable")

	ok, err = f.sess.DisableEncryption(ctx, "482910")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, StateUnlocked, f.sess.State())
	assert.False(t, f.session.Active())

	cfg, err := settings.NewSQLiteRepository(f.db).Load(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.LockEnabled)
	assert.Empty(t, cfg.PINHash)
	assert.Empty(t, cfg.Salt)
	assert.Nil(t, cfg.EncryptedMasterKey.ByPIN)
	assert.Empty(t, cfg.BiometricCredentialID)

	// New entries are written plaintext.
	_, err = f.entries.Create(ctx, EntryInput{Content: "open"})
	require.NoError(t, err)
}

func TestDisableEncryption_WrongPINSharesLockoutWithUnlock(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Lock()

	for i := 0; i < 4; i++ {
		ok, err := f.sess.DisableEncryption(ctx, "000000")
		require.NoError(t, err)
		require.False(t, ok)
	}

	ok, err := f.sess.DisableEncryption(ctx, "000000")
	require.ErrorIs(t, err, common.ErrLockedOut, "fifth failure starts the cooldown")
	require.False(t, ok)

	// During the cooldown even the correct PIN is rejected, on both paths.
	_, err = f.sess.DisableEncryption(ctx, "482910")
	require.ErrorIs(t, err, common.ErrLockedOut)
	_, err = f.sess.Unlock(ctx, "482910")
	require.ErrorIs(t, err, common.ErrLockedOut)

	f.sess.now = func() time.Time { return time.Now().Add(lockoutCooldown + time.Second) }
	ok, err = f.sess.DisableEncryption(ctx, "482910")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDisableEncryption_FailuresCountTowardUnlockLockout(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Lock()

	// Mixed wrong-PIN attempts across both paths consume the same counter.
	for i := 0; i < 2; i++ {
		ok, err := f.sess.DisableEncryption(ctx, "000000")
		require.NoError(t, err)
		require.False(t, ok)
		ok, err = f.sess.Unlock(ctx, "000000")
		require.NoError(t, err)
		require.False(t, ok)
	}

	_, err := f.sess.DisableEncryption(ctx, "000000")
	require.ErrorIs(t, err, common.ErrLockedOut)
}

func TestRunMigration_FailureLogsCause(t *testing.T) {
	db := setupDB(t)
	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	keySession := cryptox.NewSession()
	es := NewEntryService(entries.NewSQLiteRepository(db), photos.NewSQLiteRepository(db), keySession, log)
	adapter := webauthn.NewAdapter(context.Background(), webauthn.NewFakeAuthenticator(), log)
	ss := NewSessionService(settings.NewSQLiteRepository(db), es, adapter, keySession, log)
	require.NoError(t, ss.Initialize(context.Background()))

	// Encryption on but no resident key makes the migration fail.
	es.SetEncrypted(true)
	ss.runMigration(context.Background())

	out := buf.String()
	assert.Contains(t, out, "plaintext migration failed")
	assert.Contains(t, out, common.ErrNoMasterKey.Error(), "log line carries the cause")
}

func TestSetupBiometric_RequiresUnlockedSession(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Lock()

	_, err := f.sess.SetupBiometric(ctx)
	require.ErrorIs(t, err, common.ErrNoMasterKey)
}

func TestUnlock_RejectedWhileAnotherUnlockRuns(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Lock()

	f.sess.mu.Lock()
	f.sess.unlocking = true
	f.sess.mu.Unlock()

	_, err := f.sess.Unlock(ctx, "482910")
	require.ErrorIs(t, err, common.ErrUnlockInProgress)

	f.sess.mu.Lock()
	f.sess.unlocking = false
	f.sess.mu.Unlock()
}

func TestAutoLock_FiresAfterIdleTimeout(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))
	f.sess.Touch()

	// Simulate the idle clock running past the configured timeout.
	f.sess.now = func() time.Time { return time.Now().Add(time.Hour) }
	f.sess.autoLockFired()

	assert.Equal(t, StateLocked, f.sess.State())
	assert.False(t, f.session.Active())
}

func TestRestartLoadsLockedState(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sess.SetupPIN(ctx, "482910"))

	// A new session service over the same database models a process restart.
	log := logging.NewNopLogger()
	keySession := cryptox.NewSession()
	es := NewEntryService(entries.NewSQLiteRepository(f.db), photos.NewSQLiteRepository(f.db), keySession, log)
	adapter := webauthn.NewAdapter(ctx, f.authn, log)
	ss := NewSessionService(settings.NewSQLiteRepository(f.db), es, adapter, keySession, log)
	require.NoError(t, ss.Initialize(ctx))

	assert.Equal(t, StateLocked, ss.State())
}

func loadRawSettings(t *testing.T, db *sql.DB) []byte {
	t.Helper()
	var value []byte
	require.NoError(t, db.QueryRow(`SELECT value FROM settings WHERE key='settings'`).Scan(&value))
	return value
}
