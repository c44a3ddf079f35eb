package kvstore

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pinmark/pinmark/dbopen"
)

func stores(t *testing.T) map[string]KV {
	t.Helper()
	sq, err := NewSQLite(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	return map[string]KV{
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func TestKV_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("missing key: ok=%v err=%v", ok, err)
			}

			if err := kv.Set(ctx, "k", []byte("v1")); err != nil {
				t.Fatal(err)
			}
			v, ok, err := kv.Get(ctx, "k")
			if err != nil || !ok || string(v) != "v1" {
				t.Fatalf("get: %q ok=%v err=%v", v, ok, err)
			}

			// Overwrite.
			if err := kv.Set(ctx, "k", []byte("v2")); err != nil {
				t.Fatal(err)
			}
			v, _, _ = kv.Get(ctx, "k")
			if string(v) != "v2" {
				t.Fatalf("overwrite: got %q", v)
			}

			// Delete, then delete again (no error).
			if err := kv.Delete(ctx, "k"); err != nil {
				t.Fatal(err)
			}
			if _, ok, _ := kv.Get(ctx, "k"); ok {
				t.Fatal("key survived delete")
			}
			if err := kv.Delete(ctx, "k"); err != nil {
				t.Fatalf("double delete: %v", err)
			}
		})
	}
}

func TestNewSQLite_NilDB(t *testing.T) {
	if _, err := NewSQLite(nil); err == nil {
		t.Fatal("expected error for nil DB")
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Set(ctx, "k", []byte("abc"))

	v, _, _ := m.Get(ctx, "k")
	v[0] = 'x'

	v2, _, _ := m.Get(ctx, "k")
	if string(v2) != "abc" {
		t.Fatalf("stored value mutated through returned slice: %q", v2)
	}
}
