// Package directory manages each user's saved short forms: short ids bound
// to a roll number and secret, persisted as one record per user key. Writes
// for the same user are serialized so two near-simultaneous commands cannot
// lose an entry to a stale read.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tharunkd/attendbot/crypto"
	"github.com/tharunkd/attendbot/store"
)

// Entry binds one short id to a credential pair.
type Entry struct {
	ShortID    string `json:"shortId"`
	RollNumber string `json:"rollNumber"`
	Secret     string `json:"secret"`
}

// record is the stored per-user document.
type record struct {
	Credentials []Entry `json:"credentials"`
}

// RollNumberLinkedError reports that a roll number is already bound to an
// existing short form.
type RollNumberLinkedError struct {
	ShortID string
}

func (e *RollNumberLinkedError) Error() string {
	return fmt.Sprintf("roll number already linked to short form %q", e.ShortID)
}

// CreateResult reports whether Create appended a new entry or updated an
// existing short id in place.
type CreateResult int

const (
	Created CreateResult = iota
	Updated
)

// Directory is the per-user short-form directory. A nil encryptor disables
// at-rest encryption of secrets.
type Directory struct {
	store *store.RecordStore
	enc   crypto.Encryptor

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Directory over the user record store.
func New(rs *store.RecordStore, enc crypto.Encryptor) *Directory {
	return &Directory{store: rs, enc: enc, locks: make(map[string]*sync.Mutex)}
}

// userLock returns the mutex serializing read-modify-write cycles for one
// user record.
func (d *Directory) userLock(user string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[user]
	if !ok {
		l = &sync.Mutex{}
		d.locks[user] = l
	}
	return l
}

// load reads the user's entries; any read failure is absence (fail-open).
func (d *Directory) load(ctx context.Context, user string) []Entry {
	var rec record
	if d.store.Read(ctx, user, &rec) != store.ReadHit {
		return nil
	}
	if d.enc != nil {
		for i := range rec.Credentials {
			plain, err := crypto.DecryptString(d.enc, rec.Credentials[i].Secret)
			if err != nil {
				// Row predates encryption; leave the stored value.
				continue
			}
			rec.Credentials[i].Secret = plain
		}
	}
	return rec.Credentials
}

// persist writes the full entry list back, encrypting secrets when
// configured.
func (d *Directory) persist(ctx context.Context, user string, entries []Entry) error {
	out := make([]Entry, len(entries))
	copy(out, entries)
	if d.enc != nil {
		for i := range out {
			sealed, err := crypto.EncryptString(d.enc, out[i].Secret)
			if err != nil {
				return fmt.Errorf("encrypt secret for %q: %w", out[i].ShortID, err)
			}
			out[i].Secret = sealed
		}
	}
	return d.store.Write(ctx, user, record{Credentials: out})
}

// Resolve looks up a short id for the given user.
func (d *Directory) Resolve(ctx context.Context, user, shortID string) (Entry, bool) {
	for _, e := range d.load(ctx, user) {
		if e.ShortID == shortID {
			return e, true
		}
	}
	return Entry{}, false
}

// Create saves a short form. If any entry already holds the roll number the
// call fails with RollNumberLinkedError naming that entry's short id. An
// existing short id is updated in place; otherwise the entry is appended.
// Every success path persists the full updated list.
func (d *Directory) Create(ctx context.Context, user, shortID, rollNumber, secret string) (CreateResult, error) {
	lock := d.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	entries := d.load(ctx, user)
	for _, e := range entries {
		if e.RollNumber == rollNumber {
			return 0, &RollNumberLinkedError{ShortID: e.ShortID}
		}
	}

	result := Created
	updated := false
	for i := range entries {
		if entries[i].ShortID == shortID {
			entries[i].RollNumber = rollNumber
			entries[i].Secret = secret
			result = Updated
			updated = true
			break
		}
	}
	if !updated {
		entries = append(entries, Entry{ShortID: shortID, RollNumber: rollNumber, Secret: secret})
	}
	if err := d.persist(ctx, user, entries); err != nil {
		return 0, err
	}
	slog.Debug("short form saved", slog.String("short_id", shortID), slog.Bool("updated", updated))
	return result, nil
}

// Delete removes the entry for shortID and reports whether a removal
// occurred.
func (d *Directory) Delete(ctx context.Context, user, shortID string) (bool, error) {
	lock := d.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	entries := d.load(ctx, user)
	kept := entries[:0:0]
	for _, e := range entries {
		if e.ShortID != shortID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	if err := d.persist(ctx, user, kept); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the user's entries in storage (insertion) order.
func (d *Directory) List(ctx context.Context, user string) []Entry {
	return d.load(ctx, user)
}

// First returns the user's first stored entry, if any.
func (d *Directory) First(ctx context.Context, user string) (Entry, bool) {
	entries := d.load(ctx, user)
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}
