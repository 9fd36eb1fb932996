// Package services contains the application services of the lock subsystem:
// the session/lock state machine and the encrypted entry store. This file
// defines the entry store: it encrypts journal content and photo blobs
// before they reach the repositories and decrypts on read using the shared
// key session, keeping a short-lived decrypted cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/cryptox"
	"github.com/inkwellapp/inkwell/internal/logging"
	"github.com/inkwellapp/inkwell/internal/models"
	"github.com/inkwellapp/inkwell/internal/repositories/entries"
	"github.com/inkwellapp/inkwell/internal/repositories/photos"
)

const (
	// EagerDecryptLimit bounds how many of the newest entries List decrypts
	// up front; the rest come back as pending ids to be fetched on demand.
	EagerDecryptLimit = 10

	// decryptedCacheTTL is how long a decrypted entry stays cached.
	decryptedCacheTTL = 5 * time.Minute
)

// DecryptedEntry is a journal entry as exposed to the UI layers. While the
// session is locked, Content is always the empty string.
type DecryptedEntry struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Content   string
	Mood      string
	WordCount int
	HasPhoto  bool
	Archived  bool
	Deleted   bool
	DeletedAt *time.Time

	// Failed marks an entry whose ciphertext could not be opened
	// (corrupted record). Other entries load normally around it.
	Failed bool
}

// ListResult is the outcome of a listing: eagerly decrypted entries plus the
// ids returned metadata-only, to be decrypted on demand via Get.
type ListResult struct {
	Entries    []DecryptedEntry
	PendingIDs []string
}

// EntryInput carries the plaintext fields of a create or update.
type EntryInput struct {
	Content string
	Mood    string
	Photo   *PhotoInput
}

// PhotoInput is a photo attachment to be encrypted and stored.
type PhotoInput struct {
	Data     []byte
	MimeType string
	Caption  string
}

// DecryptedPhoto is a photo attachment after decryption.
type DecryptedPhoto struct {
	Data     []byte
	MimeType string
	Caption  string
}

type cachedEntry struct {
	entry    DecryptedEntry
	cachedAt time.Time
}

// EntryService is the encrypted entry/blob store. It holds the key session
// by the same handle as the session service, so a single Clear locks both.
type EntryService struct {
	entryRepo entries.Repository
	photoRepo photos.Repository
	session   *cryptox.Session
	log       logging.Logger

	mu        sync.Mutex
	cache     map[string]cachedEntry
	encrypted bool

	// purge, when set, deletes an entry and its photo atomically.
	purge func(ctx context.Context, id string) error

	now func() time.Time
}

// NewEntryService constructs an EntryService sharing the given key session.
func NewEntryService(entryRepo entries.Repository, photoRepo photos.Repository,
	session *cryptox.Session, log logging.Logger) *EntryService {
	return &EntryService{
		entryRepo: entryRepo,
		photoRepo: photoRepo,
		session:   session,
		log:       log,
		cache:     make(map[string]cachedEntry),
		now:       time.Now,
	}
}

// SetEncrypted tells the store whether content is stored as ciphertext.
// Flipped by the session service on setup and on disable.
func (s *EntryService) SetEncrypted(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encrypted = on
}

// locked reports whether encrypted content is currently unreadable.
func (s *EntryService) locked() bool {
	s.mu.Lock()
	enc := s.encrypted
	s.mu.Unlock()
	return enc && !s.session.Active()
}

// InvalidateCache drops every cached plaintext entry. Called in bulk on any
// lock transition, never partially.
func (s *EntryService) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedEntry)
}

// List returns all non-deleted entries, newest first. While locked, every
// entry comes back with empty content and only the plaintext metadata.
// While unlocked, the newest EagerDecryptLimit entries are decrypted
// immediately (cache first) and the remainder are listed in PendingIDs.
func (s *EntryService) List(ctx context.Context, includeArchived bool) (*ListResult, error) {
	rows, err := s.entryRepo.GetAll(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	res := &ListResult{Entries: make([]DecryptedEntry, 0, len(rows))}

	if s.locked() {
		for i := range rows {
			res.Entries = append(res.Entries, metadataOnly(&rows[i]))
		}
		return res, nil
	}

	// Decryption proceeds sequentially to bound peak memory.
	for i := range rows {
		if i < EagerDecryptLimit {
			res.Entries = append(res.Entries, s.decryptRow(ctx, &rows[i]))
			continue
		}
		res.Entries = append(res.Entries, metadataOnly(&rows[i]))
		res.PendingIDs = append(res.PendingIDs, rows[i].ID)
	}
	return res, nil
}

// Get decrypts a single entry on demand and populates the cache. A
// corrupted record yields a placeholder with Failed set, not an error.
// Returns common.ErrNoMasterKey while locked.
func (s *EntryService) Get(ctx context.Context, id string) (*DecryptedEntry, error) {
	if s.locked() {
		return nil, common.ErrNoMasterKey
	}

	row, err := s.entryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	e := s.decryptRow(ctx, row)
	return &e, nil
}

// Create encrypts and persists a new entry (and its photo, if present).
func (s *EntryService) Create(ctx context.Context, in EntryInput) (*DecryptedEntry, error) {
	if s.locked() {
		return nil, common.ErrNoMasterKey
	}

	now := s.now().UTC()
	row := &models.Entry{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.save(ctx, row, in)
}

// Update re-encrypts an entry in full; partial or delta encryption does not
// exist, and every re-encryption draws a fresh nonce.
func (s *EntryService) Update(ctx context.Context, id string, in EntryInput) (*DecryptedEntry, error) {
	if s.locked() {
		return nil, common.ErrNoMasterKey
	}

	row, err := s.entryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	row.UpdatedAt = s.now().UTC()
	return s.save(ctx, row, in)
}

func (s *EntryService) save(ctx context.Context, row *models.Entry, in EntryInput) (*DecryptedEntry, error) {
	row.Mood = in.Mood
	row.WordCount = len(strings.Fields(in.Content))

	if s.isEncrypted() {
		key, err := s.session.Key()
		if err != nil {
			return nil, err
		}
		blob, err := cryptox.Encrypt([]byte(in.Content), key)
		if err != nil {
			return nil, fmt.Errorf("encrypt content: %w", err)
		}
		row.SetContentBlob(blob)
	} else {
		row.PlainContent = in.Content
		row.Content = nil
		row.NonceContent = nil
		row.Alg = ""
	}

	if in.Photo != nil {
		if err := s.savePhoto(ctx, row.ID, in.Photo); err != nil {
			return nil, err
		}
		row.HasPhoto = true
	}

	if err := s.entryRepo.CreateOrUpdate(ctx, row); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}

	e := DecryptedEntry{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Content:   in.Content,
		Mood:      row.Mood,
		WordCount: row.WordCount,
		HasPhoto:  row.HasPhoto,
		Archived:  row.Archived,
	}
	s.cachePut(e)
	return &e, nil
}

func (s *EntryService) savePhoto(ctx context.Context, entryID string, in *PhotoInput) error {
	p := &models.Photo{
		ID:       uuid.NewString(),
		EntryID:  entryID,
		MimeType: in.MimeType,
		Caption:  in.Caption,
	}

	if s.isEncrypted() {
		key, err := s.session.Key()
		if err != nil {
			return err
		}
		blob, err := cryptox.Encrypt(in.Data, key)
		if err != nil {
			return fmt.Errorf("encrypt photo: %w", err)
		}
		p.SetBlobData(blob)
	} else {
		p.Blob = in.Data
		p.NonceBlob = []byte{}
	}

	if err := s.photoRepo.CreateOrUpdate(ctx, p); err != nil {
		return fmt.Errorf("save photo: %w", err)
	}
	return nil
}

// GetPhoto decrypts the photo attached to an entry.
func (s *EntryService) GetPhoto(ctx context.Context, entryID string) (*DecryptedPhoto, error) {
	if s.locked() {
		return nil, common.ErrNoMasterKey
	}

	p, err := s.photoRepo.GetByEntryID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	out := &DecryptedPhoto{MimeType: p.MimeType, Caption: p.Caption}
	if len(p.NonceBlob) == 0 {
		out.Data = p.Blob
		return out, nil
	}

	key, err := s.session.Key()
	if err != nil {
		return nil, err
	}
	data, err := cryptox.Decrypt(p.BlobData(), key)
	if err != nil {
		return nil, err
	}
	out.Data = data
	return out, nil
}

// Archive hides an entry from the main timeline.
func (s *EntryService) Archive(ctx context.Context, id string) error {
	s.cacheDrop(id)
	return s.entryRepo.SetArchived(ctx, id, true)
}

// Unarchive returns an archived entry to the timeline.
func (s *EntryService) Unarchive(ctx context.Context, id string) error {
	s.cacheDrop(id)
	return s.entryRepo.SetArchived(ctx, id, false)
}

// Delete moves an entry to the trash (soft delete).
func (s *EntryService) Delete(ctx context.Context, id string) error {
	s.cacheDrop(id)
	return s.entryRepo.SoftDelete(ctx, id, s.now().UTC())
}

// Restore brings an entry back from the trash.
func (s *EntryService) Restore(ctx context.Context, id string) error {
	return s.entryRepo.Restore(ctx, id)
}

// Trash lists soft-deleted entries, metadata only.
func (s *EntryService) Trash(ctx context.Context) ([]DecryptedEntry, error) {
	rows, err := s.entryRepo.GetTrash(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}
	out := make([]DecryptedEntry, 0, len(rows))
	for i := range rows {
		out = append(out, metadataOnly(&rows[i]))
	}
	return out, nil
}

// UseAtomicPurge routes permanent deletion through fn, which removes the
// entry and its photo in one transaction (see repositories.PurgeEntry).
func (s *EntryService) UseAtomicPurge(fn func(ctx context.Context, id string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge = fn
}

// PermanentlyDelete removes an entry and its photo for good.
func (s *EntryService) PermanentlyDelete(ctx context.Context, id string) error {
	s.cacheDrop(id)

	s.mu.Lock()
	purge := s.purge
	s.mu.Unlock()
	if purge != nil {
		return purge(ctx, id)
	}

	if err := s.photoRepo.DeleteByEntryID(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return s.entryRepo.DeleteByID(ctx, id)
}

// CleanupTrash purges soft-deleted entries older than daysOld days,
// returning how many were removed.
func (s *EntryService) CleanupTrash(ctx context.Context, daysOld int) (int, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -daysOld)
	ids, err := s.entryRepo.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup trash: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.photoRepo.DeleteByEntryIDs(ctx, ids); err != nil {
		return len(ids), fmt.Errorf("cleanup trash photos: %w", err)
	}
	for _, id := range ids {
		s.cacheDrop(id)
	}
	return len(ids), nil
}

// MigratePlainEntries re-saves entries still carrying a legacy plaintext
// body through the encrypt path. Idempotent; safe to call repeatedly. A
// single failed entry is logged and skipped, the rest keep migrating; the
// returned count reflects only successes. Requires a resident master key.
func (s *EntryService) MigratePlainEntries(ctx context.Context) (int, error) {
	key, err := s.session.Key()
	if err != nil {
		return 0, err
	}

	rows, err := s.entryRepo.GetAllPlain(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan plaintext entries: %w", err)
	}

	migrated := 0
	for i := range rows {
		row := rows[i]
		blob, err := cryptox.Encrypt([]byte(row.PlainContent), key)
		if err != nil {
			s.log.Error(ctx, "entry migration failed", "id", row.ID)
			continue
		}
		row.SetContentBlob(blob)
		if err := s.entryRepo.CreateOrUpdate(ctx, &row); err != nil {
			s.log.Error(ctx, "entry migration save failed", "id", row.ID)
			continue
		}
		migrated++
	}
	return migrated, nil
}

func (s *EntryService) isEncrypted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encrypted
}

// decryptRow turns a persisted row into a DecryptedEntry, consulting the
// cache first. Assumes the store is not locked.
func (s *EntryService) decryptRow(ctx context.Context, row *models.Entry) DecryptedEntry {
	if cached, ok := s.cacheGet(row.ID); ok {
		return cached
	}

	e := metadataOnly(row)

	switch {
	case !row.IsEncrypted():
		// Legacy or unencrypted-mode entry.
		e.Content = row.PlainContent
	default:
		key, err := s.session.Key()
		if err != nil {
			return e
		}
		plain, err := cryptox.Decrypt(row.ContentBlob(), key)
		if err != nil {
			s.log.Warn(ctx, "entry decryption failed", "id", row.ID)
			e.Failed = true
			return e
		}
		e.Content = string(plain)
	}

	s.cachePut(e)
	return e
}

func metadataOnly(row *models.Entry) DecryptedEntry {
	return DecryptedEntry{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Content:   "",
		Mood:      row.Mood,
		WordCount: row.WordCount,
		HasPhoto:  row.HasPhoto,
		Archived:  row.Archived,
		Deleted:   row.Deleted,
		DeletedAt: row.DeletedAt,
	}
}

func (s *EntryService) cacheGet(id string) (DecryptedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache[id]
	if !ok {
		return DecryptedEntry{}, false
	}
	if s.now().Sub(c.cachedAt) > decryptedCacheTTL {
		delete(s.cache, id)
		return DecryptedEntry{}, false
	}
	return c.entry, true
}

func (s *EntryService) cachePut(e DecryptedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[e.ID] = cachedEntry{entry: e, cachedAt: s.now()}
}

func (s *EntryService) cacheDrop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, id)
}
