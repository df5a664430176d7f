package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tharunkd/attendbot/store"
)

// CredsKey is the reserved store key for the singleton credential record.
const CredsKey = "creds"

// Session exposes the credential record and the key-material sub-store. It
// is uninitialized until the first Load, which either restores the stored
// record or synthesizes and persists a fresh one.
type Session struct {
	store *store.RecordStore

	mu    sync.Mutex
	creds *Creds
}

// New returns a Session over the auth-state record store.
func New(rs *store.RecordStore) *Session {
	return &Session{store: rs}
}

// Load returns the live credential record. On first access with no stored
// record (or an unreadable one: fail-open) it synthesizes fresh credentials
// and persists them before returning.
func (s *Session) Load(ctx context.Context) (*Creds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds != nil {
		return s.creds, nil
	}
	var stored Creds
	if s.store.Read(ctx, CredsKey, &stored) == store.ReadHit {
		s.creds = &stored
		slog.Info("credentials restored", slog.Uint64("registration_id", uint64(stored.RegistrationID)))
		return s.creds, nil
	}
	fresh, err := NewCreds()
	if err != nil {
		return nil, fmt.Errorf("generate credentials: %w", err)
	}
	if err := s.store.Write(ctx, CredsKey, fresh); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	s.creds = fresh
	slog.Info("fresh credentials generated", slog.Uint64("registration_id", uint64(fresh.RegistrationID)))
	return s.creds, nil
}

// Save re-persists the in-memory credential record verbatim. The protocol
// layer calls this after every mutation (pairing, key rotation).
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return fmt.Errorf("session not loaded")
	}
	return s.store.Write(ctx, CredsKey, s.creds)
}

// Clear deletes the stored credential record and drops the cache. The next
// Load starts a fresh identity; a new pairing is required.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Delete(ctx, CredsKey)
	s.creds = nil
	slog.Info("credentials cleared")
}

// GetKeys fetches key-material records for a set of ids within one category.
// Ids with nothing stored are absent from the result.
func (s *Session) GetKeys(ctx context.Context, category string, ids []string) map[string]map[string]any {
	return s.store.ReadMany(ctx, category, ids)
}

// SetKeys writes a batch of key-material records, one concurrent write per
// (category, id) pair.
func (s *Session) SetKeys(ctx context.Context, batch store.Batch) error {
	return s.store.WriteMany(ctx, batch)
}
