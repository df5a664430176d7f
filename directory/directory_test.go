package directory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tharunkd/attendbot/crypto"
	"github.com/tharunkd/attendbot/store"
	"github.com/tharunkd/attendbot/testutil"
)

const user = "9190000000001"

func newDirectory(t *testing.T) (*Directory, *testutil.MemKV) {
	t.Helper()
	kv := testutil.NewMemKV()
	return New(store.New(kv), nil), kv
}

func TestCreateAndResolve(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	res, err := d.Create(ctx, user, "596", "22L31A0596", "pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res != Created {
		t.Errorf("result = %v, want Created", res)
	}

	entry, ok := d.Resolve(ctx, user, "596")
	if !ok {
		t.Fatal("Resolve missed a saved short form")
	}
	if entry.RollNumber != "22L31A0596" || entry.Secret != "pw" {
		t.Errorf("Resolve = %+v", entry)
	}

	if _, ok := d.Resolve(ctx, user, "999"); ok {
		t.Error("Resolve matched a nonexistent short form")
	}
	if _, ok := d.Resolve(ctx, "other-user", "596"); ok {
		t.Error("Resolve leaked across users")
	}
}

func TestCreateRejectsLinkedRollNumber(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, user, "s1", "R1", "p"); err != nil {
		t.Fatal(err)
	}
	_, err := d.Create(ctx, user, "s2", "R1", "p")
	var linked *RollNumberLinkedError
	if !errors.As(err, &linked) {
		t.Fatalf("Create returned %v, want RollNumberLinkedError", err)
	}
	if linked.ShortID != "s1" {
		t.Errorf("conflict names %q, want s1", linked.ShortID)
	}

	// The directory still contains exactly one entry for R1.
	count := 0
	for _, e := range d.List(ctx, user) {
		if e.RollNumber == "R1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("entries for R1 = %d, want 1", count)
	}
}

func TestCreateOverwritesExistingShortID(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, user, "s", "R1", "p1"); err != nil {
		t.Fatal(err)
	}
	res, err := d.Create(ctx, user, "s", "R2", "p2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res != Updated {
		t.Errorf("result = %v, want Updated", res)
	}

	entry, ok := d.Resolve(ctx, user, "s")
	if !ok {
		t.Fatal("Resolve missed the updated entry")
	}
	if entry.RollNumber != "R2" || entry.Secret != "p2" {
		t.Errorf("Resolve = %+v, want R2/p2", entry)
	}
	if n := len(d.List(ctx, user)); n != 1 {
		t.Errorf("list has %d entries, want 1", n)
	}
}

func TestDeleteSemantics(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, user, "a", "R1", "p"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Create(ctx, user, "b", "R2", "p"); err != nil {
		t.Fatal(err)
	}

	removed, err := d.Delete(ctx, user, "a")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Error("Delete reported not found for an existing entry")
	}
	list := d.List(ctx, user)
	if len(list) != 1 || list[0].ShortID != "b" {
		t.Errorf("list after delete = %+v", list)
	}

	removed, err = d.Delete(ctx, user, "a")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed {
		t.Error("Delete reported a removal for a nonexistent id")
	}
	if len(d.List(ctx, user)) != 1 {
		t.Error("list length changed on a no-op delete")
	}
}

func TestListKeepsInsertionOrder(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	ids := []string{"z", "a", "m"}
	for i, id := range ids {
		if _, err := d.Create(ctx, user, id, "R"+id, "p"); err != nil {
			t.Fatal(err)
		}
		if first, ok := d.First(ctx, user); !ok || first.ShortID != "z" {
			t.Errorf("First after %d inserts = %+v", i+1, first)
		}
	}
	list := d.List(ctx, user)
	for i, id := range ids {
		if list[i].ShortID != id {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ShortID, id)
		}
	}
}

func TestConcurrentCreatesDoNotLoseEntries(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := d.Create(ctx, user, id, "R"+id, "p"); err != nil {
				t.Errorf("Create %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()
	if n := len(d.List(ctx, user)); n != 5 {
		t.Errorf("list has %d entries after concurrent creates, want 5", n)
	}
}

func TestSecretsEncryptedAtRest(t *testing.T) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	enc, err := crypto.NewAESEncryptor(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatal(err)
	}
	kv := testutil.NewMemKV()
	d := New(store.New(kv), enc)
	ctx := context.Background()

	if _, err := d.Create(ctx, user, "s", "R1", "topsecret"); err != nil {
		t.Fatal(err)
	}

	raw, found, err := kv.Get(ctx, user)
	if err != nil || !found {
		t.Fatalf("stored record missing: %v", err)
	}
	if strings.Contains(raw, "topsecret") {
		t.Error("stored record contains the plaintext secret")
	}

	entry, ok := d.Resolve(ctx, user, "s")
	if !ok || entry.Secret != "topsecret" {
		t.Errorf("Resolve = %+v, want decrypted secret", entry)
	}
}
