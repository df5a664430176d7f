// Package store persists one JSON record per string key against a remote
// table, layering the byte-buffer codec on top. It also provides the
// concurrent batch forms used for protocol key material, keyed by
// "{category}-{id}".
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tharunkd/attendbot/codec"
	"github.com/tharunkd/attendbot/telemetry"
)

// KV is the raw table boundary: get, atomic full-item put, and delete by a
// single primary key.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ReadStatus distinguishes a real gap from a store outage. Callers treat
// both as absence (fail-open: state loss must never block the bot from
// reconnecting), but outages are logged and counted separately so operators
// can tell them apart.
type ReadStatus int

const (
	ReadHit ReadStatus = iota
	ReadMiss
	ReadUnavailable
)

func (s ReadStatus) String() string {
	switch s {
	case ReadHit:
		return "hit"
	case ReadMiss:
		return "miss"
	case ReadUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Batch maps category -> id -> record for a fan-out write.
type Batch map[string]map[string]any

// RecordStore reads and writes codec-encoded records through a KV table.
type RecordStore struct {
	kv KV
}

// New returns a RecordStore over the given table.
func New(kv KV) *RecordStore {
	return &RecordStore{kv: kv}
}

// Write encodes rec and replaces whatever is stored under key. The put is a
// single atomic replace of the item; there is no partial-write visibility.
func (s *RecordStore) Write(ctx context.Context, key string, rec any) error {
	data, err := codec.Marshal(rec)
	if err != nil {
		telemetry.Inc(telemetry.StoreWriteFailures)
		return fmt.Errorf("encode record %q: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, string(data)); err != nil {
		telemetry.Inc(telemetry.StoreWriteFailures)
		return fmt.Errorf("put record %q: %w", key, err)
	}
	telemetry.Inc(telemetry.StoreWrites)
	return nil
}

// Read fetches and decodes the record under key into dest. Store failures
// are reported as ReadUnavailable, never as an error; dest is only valid on
// ReadHit.
func (s *RecordStore) Read(ctx context.Context, key string, dest any) ReadStatus {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		slog.Warn("store read failed; treating as absent", slog.String("key", key), slog.Any("err", err))
		telemetry.IncStoreRead("unavailable")
		return ReadUnavailable
	}
	if !found {
		telemetry.IncStoreRead("miss")
		return ReadMiss
	}
	if err := codec.Unmarshal([]byte(raw), dest); err != nil {
		slog.Warn("store record decode failed; treating as absent", slog.String("key", key), slog.Any("err", err))
		telemetry.IncStoreRead("unavailable")
		return ReadUnavailable
	}
	telemetry.IncStoreRead("hit")
	return ReadHit
}

// Delete is best-effort: failures are logged, never returned. A leftover
// row is recovered by the next successful delete or overwrite.
func (s *RecordStore) Delete(ctx context.Context, key string) {
	if err := s.kv.Delete(ctx, key); err != nil {
		slog.Warn("store delete failed", slog.String("key", key), slog.Any("err", err))
	}
}

// MaterialKey is the composite primary key for key-material rows.
func MaterialKey(category, id string) string {
	return category + "-" + id
}

// ReadMany fetches the records for a set of ids within one category, one
// concurrent read per id with no ordering guarantee. Ids with no stored
// value are omitted from the result.
func (s *RecordStore) ReadMany(ctx context.Context, category string, ids []string) map[string]map[string]any {
	out := make(map[string]map[string]any, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			var rec map[string]any
			if s.Read(ctx, MaterialKey(category, id), &rec) == ReadHit {
				mu.Lock()
				out[id] = rec
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return out
}

// WriteMany fans out one write per (category, id) pair, all in flight
// concurrently. There is no atomicity across the batch; the protocol layer
// re-negotiates any gap left by a crash mid-batch. The first write error is
// returned after the whole batch settles.
func (s *RecordStore) WriteMany(ctx context.Context, batch Batch) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for category, recs := range batch {
		for id, rec := range recs {
			wg.Add(1)
			go func(key string, rec any) {
				defer wg.Done()
				if err := s.Write(ctx, key, rec); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}(MaterialKey(category, id), rec)
		}
	}
	wg.Wait()
	return firstErr
}
