package store

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/tharunkd/attendbot/testutil"
)

func TestWriteReadRoundTrip(t *testing.T) {
	kv := testutil.NewMemKV()
	rs := New(kv)
	ctx := context.Background()

	rec := map[string]any{
		"keyData": []byte{0x01, 0xff, 0x00},
		"keyId":   1.0,
	}
	if err := rs.Write(ctx, "pre-key-1", rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got map[string]any
	if status := rs.Read(ctx, "pre-key-1", &got); status != ReadHit {
		t.Fatalf("Read status = %v, want hit", status)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("Read = %#v, want %#v", got, rec)
	}
}

func TestWriteOverwrites(t *testing.T) {
	kv := testutil.NewMemKV()
	rs := New(kv)
	ctx := context.Background()

	if err := rs.Write(ctx, "k", map[string]any{"v": 1.0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rs.Write(ctx, "k", map[string]any{"v": 2.0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got map[string]any
	if rs.Read(ctx, "k", &got) != ReadHit {
		t.Fatal("expected hit")
	}
	if got["v"] != 2.0 {
		t.Errorf("v = %v, want 2", got["v"])
	}
	if kv.Len() != 1 {
		t.Errorf("table has %d rows, want 1", kv.Len())
	}
}

func TestReadMissAndUnavailable(t *testing.T) {
	kv := testutil.NewMemKV()
	rs := New(kv)
	ctx := context.Background()

	var dest map[string]any
	if status := rs.Read(ctx, "absent", &dest); status != ReadMiss {
		t.Errorf("status = %v, want miss", status)
	}

	// A store failure is reported as unavailable, not as an error.
	kv.GetErr = fmt.Errorf("throttled")
	if status := rs.Read(ctx, "absent", &dest); status != ReadUnavailable {
		t.Errorf("status = %v, want unavailable", status)
	}

	// Undecodable rows are also treated as absent.
	kv.GetErr = nil
	if err := kv.Put(ctx, "bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	if status := rs.Read(ctx, "bad", &dest); status != ReadUnavailable {
		t.Errorf("status = %v, want unavailable", status)
	}
}

func TestDeleteIsIdempotentAndBestEffort(t *testing.T) {
	kv := testutil.NewMemKV()
	rs := New(kv)
	ctx := context.Background()

	if err := rs.Write(ctx, "k", map[string]any{"v": 1.0}); err != nil {
		t.Fatal(err)
	}

	// Deleting a key that does not exist never raises and leaves the
	// table unchanged.
	rs.Delete(ctx, "nope")
	if kv.Len() != 1 {
		t.Errorf("table has %d rows, want 1", kv.Len())
	}

	// A failing delete is swallowed too.
	kv.DeleteErr = fmt.Errorf("network down")
	rs.Delete(ctx, "k")
	kv.DeleteErr = nil
	if kv.Len() != 1 {
		t.Errorf("table has %d rows after failed delete, want 1", kv.Len())
	}

	rs.Delete(ctx, "k")
	if kv.Len() != 0 {
		t.Errorf("table has %d rows, want 0", kv.Len())
	}
}

func TestReadManyOmitsAbsentIDs(t *testing.T) {
	kv := testutil.NewMemKV()
	rs := New(kv)
	ctx := context.Background()

	for _, id := range []string{"1", "3"} {
		if err := rs.Write(ctx, MaterialKey("pre-key", id), map[string]any{"id": id}); err != nil {
			t.Fatal(err)
		}
	}
	// A row in another category must not leak in.
	if err := rs.Write(ctx, MaterialKey("session", "2"), map[string]any{"id": "2"}); err != nil {
		t.Fatal(err)
	}

	got := rs.ReadMany(ctx, "pre-key", []string{"1", "2", "3"})
	if len(got) != 2 {
		t.Fatalf("ReadMany returned %d entries, want 2: %#v", len(got), got)
	}
	if got["1"]["id"] != "1" || got["3"]["id"] != "3" {
		t.Errorf("ReadMany = %#v", got)
	}
	if _, ok := got["2"]; ok {
		t.Error("ReadMany returned an absent id")
	}
}

func TestWriteManyFansOutPerPair(t *testing.T) {
	kv := testutil.NewMemKV()
	rs := New(kv)
	ctx := context.Background()

	batch := Batch{
		"pre-key": {
			"1": map[string]any{"n": 1.0},
			"2": map[string]any{"n": 2.0},
		},
		"session": {
			"a": map[string]any{"n": 3.0},
		},
	}
	if err := rs.WriteMany(ctx, batch); err != nil {
		t.Fatalf("WriteMany: %v", err)
	}

	want := map[string]bool{"pre-key-1": true, "pre-key-2": true, "session-a": true}
	keys := kv.Keys()
	if len(keys) != len(want) {
		t.Fatalf("stored keys = %v, want %v", keys, want)
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestWriteManyReportsFirstError(t *testing.T) {
	kv := testutil.NewMemKV()
	kv.PutErr = fmt.Errorf("table gone")
	rs := New(kv)

	err := rs.WriteMany(context.Background(), Batch{"pre-key": {"1": map[string]any{}}})
	if err == nil {
		t.Fatal("WriteMany returned nil for a failing table")
	}
}
