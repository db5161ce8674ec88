// Package credentials is the in-memory credential store. It owns every
// CredentialRecord for the lifetime of the process and writes snapshots
// through a credrepo.Repository.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	credrepo "github.com/dmitrijs2005/gophauth/internal/server/repositories/credentials"
)

// Store maps usernames to credential records.
//
// Lookups take the read lock. Inserts take the write lock, so the
// uniqueness check and the insert are one step. Persists are serialized by
// persistMu and snapshot the map under the read lock.
type Store struct {
	repo credrepo.Repository
	log  logging.Logger
	now  func() time.Time

	mu     sync.RWMutex
	byName map[string]*models.CredentialRecord
	// names of records dropped on load; they cannot be signed up again
	reserved map[string]struct{}
	// lastID only grows, so ids are never handed out twice.
	lastID int64
	// version counts inserts; saved is the version last written.
	version int64
	saved   int64

	persistMu sync.Mutex
	// set when the loaded source was corrupt and has not been copied aside
	quarantine bool
}

func New(repo credrepo.Repository, log logging.Logger) *Store {
	return &Store{
		repo:   repo,
		log:    log.With("module", "credentials"),
		now:    time.Now,
		byName: make(map[string]*models.CredentialRecord),
	}
}

// FindByUsername returns a copy of the record for name.
func (s *Store) FindByUsername(name string) (*models.CredentialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

// Insert stores a copy of rec under a fresh id and returns that copy.
// A taken username yields common.ErrAlreadyExists and leaves the store
// unchanged.
func (s *Store) Insert(rec *models.CredentialRecord) (*models.CredentialRecord, error) {
	if rec == nil || rec.UserName == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrValidation)
	}

	stored := rec.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[stored.UserName]; ok {
		return nil, fmt.Errorf("%w: %q", common.ErrAlreadyExists, stored.UserName)
	}
	if _, ok := s.reserved[stored.UserName]; ok {
		return nil, fmt.Errorf("%w: %q", common.ErrAlreadyExists, stored.UserName)
	}

	s.lastID++
	stored.ID = s.lastID
	s.byName[stored.UserName] = stored
	s.version++

	return stored.Clone(), nil
}

// Persist writes the current records to the repository.
func (s *Store) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.persistLocked(ctx)
}

// Flush persists only when records were inserted since the last
// successful write. A store that only loaded never rewrites its source.
func (s *Store) Flush(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if !s.Dirty() {
		return nil
	}
	return s.persistLocked(ctx)
}

// Dirty reports whether there are inserts not yet written.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.saved
}

// InsertAndPersist inserts rec and writes the resulting snapshot. On a
// failed write the record stays in memory and is returned along with the
// error.
func (s *Store) InsertAndPersist(ctx context.Context, rec *models.CredentialRecord) (*models.CredentialRecord, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	stored, err := s.Insert(rec)
	if err != nil {
		return nil, err
	}
	if err := s.persistLocked(ctx); err != nil {
		return stored, err
	}
	return stored, nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.quarantineLocked(ctx); err != nil {
		s.log.Error(ctx, "set aside corrupt credential source", "error", err)
		return fmt.Errorf("persist credentials: %w", err)
	}

	snapshot, version := s.snapshot()
	if err := s.repo.Save(ctx, snapshot); err != nil {
		s.log.Error(ctx, "persist credentials", "records", len(snapshot), "error", err)
		return fmt.Errorf("persist credentials: %w", err)
	}

	s.mu.Lock()
	if version > s.saved {
		s.saved = version
	}
	s.mu.Unlock()

	s.log.Debug(ctx, "credentials persisted", "records", len(snapshot))
	return nil
}

// quarantineLocked copies a corrupt source aside before it is first
// overwritten. Until that succeeds nothing is saved.
func (s *Store) quarantineLocked(ctx context.Context) error {
	if !s.quarantine {
		return nil
	}
	if q, ok := s.repo.(credrepo.Quarantiner); ok {
		dst, err := q.Quarantine(ctx, s.now())
		if err != nil {
			return err
		}
		s.log.Warn(ctx, "corrupt credential source copied aside", "copy", dst)
	}
	s.quarantine = false
	return nil
}

// snapshot returns copies of all records ordered by id, and the version
// they reflect.
func (s *Store) snapshot() ([]*models.CredentialRecord, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CredentialRecord, 0, len(s.byName))
	for _, rec := range s.byName {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, s.version
}

// Load replaces the in-memory records with the repository's snapshot.
// Missing data gives an empty store. Corrupt data is logged and Load
// returns nil: unreadable sources give an empty store, and sources with
// some unusable records keep the rest. Either way the source is copied
// aside before the first write replaces it, and ids already used in it are
// not handed out again. Any other repository error is returned and the
// store is left as it was.
func (s *Store) Load(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	records, err := s.repo.Load(ctx)
	corrupt := false
	var maxID int64
	reserved := make(map[string]struct{})
	if err != nil {
		if !errors.Is(err, common.ErrStoreCorrupt) {
			return fmt.Errorf("load credentials: %w", err)
		}
		corrupt = true

		var de *credrepo.DecodeError
		if errors.As(err, &de) {
			s.log.Warn(ctx, "credential store has unusable records, skipping them",
				"dropped", len(de.Dropped), "error", err)
			maxID = de.MaxID
			for _, name := range de.Names {
				reserved[name] = struct{}{}
			}
		} else {
			s.log.Warn(ctx, "credential store is corrupt, starting empty", "error", err)
			records = nil
		}
	}

	byName := make(map[string]*models.CredentialRecord, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		byName[rec.UserName] = rec.Clone()
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}
	for name := range byName {
		delete(reserved, name)
	}

	s.mu.Lock()
	s.byName = byName
	s.reserved = reserved
	if maxID > s.lastID {
		s.lastID = maxID
	}
	s.saved = s.version
	s.mu.Unlock()

	s.quarantine = corrupt

	s.log.Info(ctx, "credentials loaded", "records", len(byName))
	return nil
}
