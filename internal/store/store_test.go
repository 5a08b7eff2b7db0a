package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	data := []byte(`{"code":"func double(n int) int { return n * 2 }"}`)
	version, err := s.Save(ctx, "function", "double", data)
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if version == "" {
		t.Fatal("Save returned empty version id")
	}

	got, err := s.Load(ctx, "function", "double", "")
	if err != nil {
		t.Fatalf("Failed to load latest: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Loaded %q, want %q", got, data)
	}

	got, err = s.Load(ctx, "function", "double", version)
	if err != nil {
		t.Fatalf("Failed to load by version: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Loaded %q by version, want %q", got, data)
	}
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "function", "never-saved", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *PersistenceError, got %T", err)
	}
	if perr.Op != "load" || perr.Name != "never-saved" {
		t.Errorf("Unexpected error fields: %+v", perr)
	}

	// A real name with a bogus version also misses
	if _, err := s.Save(ctx, "function", "real", []byte("x")); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if _, err := s.Load(ctx, "function", "real", "no-such-version"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for bogus version, got %v", err)
	}
}

func TestSQLiteStore_VersionsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var saved []string
	for _, data := range []string{"v1 code", "v2 code", "v3 code"} {
		version, err := s.Save(ctx, "function", "evolving", []byte(data))
		if err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		saved = append(saved, version)
	}

	versions, err := s.ListVersions(ctx, "function", "evolving")
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("Expected 3 versions, got %d", len(versions))
	}
	if versions[0].ID != saved[2] {
		t.Errorf("Newest version = %s, want %s", versions[0].ID, saved[2])
	}
	if versions[2].ID != saved[0] {
		t.Errorf("Oldest version = %s, want %s", versions[2].ID, saved[0])
	}

	// Old versions stay intact after new saves
	got, err := s.Load(ctx, "function", "evolving", saved[0])
	if err != nil {
		t.Fatalf("Failed to load first version: %v", err)
	}
	if string(got) != "v1 code" {
		t.Errorf("First version = %q, want v1 code", got)
	}

	// Latest load returns the newest
	got, err = s.Load(ctx, "function", "evolving", "")
	if err != nil {
		t.Fatalf("Failed to load latest: %v", err)
	}
	if string(got) != "v3 code" {
		t.Errorf("Latest = %q, want v3 code", got)
	}
}

func TestSQLiteStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "alpha", "mid"} {
		if _, err := s.Save(ctx, "function", name, []byte("x")); err != nil {
			t.Fatalf("Failed to save %s: %v", name, err)
		}
	}
	if _, err := s.Save(ctx, "other-kind", "hidden", []byte("x")); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	names, err := s.List(ctx, "function")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d names, got %d: %v", len(want), len(names), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("names[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestSQLiteStore_UniqueVersionIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		version, err := s.Save(ctx, "function", "same", []byte("data"))
		if err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		if seen[version] {
			t.Fatalf("Duplicate version id %s", version)
		}
		seen[version] = true
	}
}

func TestSQLiteStore_PruneKeepsNewest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var versions []string
	for i := 0; i < 5; i++ {
		v, err := s.Save(ctx, "function", "double", []byte{byte('a' + i)})
		if err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		versions = append(versions, v)
	}
	if _, err := s.Save(ctx, "function", "other", []byte("untouched")); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	deleted, err := s.Prune(ctx, "function", "double", 2)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}

	remaining, err := s.ListVersions(ctx, "function", "double")
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("Expected 2 remaining versions, got %d", len(remaining))
	}
	if remaining[0].ID != versions[4] || remaining[1].ID != versions[3] {
		t.Errorf("Wrong versions kept: got %s, %s", remaining[0].ID, remaining[1].ID)
	}

	// Newest data still loads, pruned versions are gone.
	data, err := s.Load(ctx, "function", "double", "")
	if err != nil {
		t.Fatalf("Failed to load after prune: %v", err)
	}
	if string(data) != "e" {
		t.Errorf("Latest data = %q, want %q", data, "e")
	}
	if _, err := s.Load(ctx, "function", "double", versions[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Pruned version should be gone, got err=%v", err)
	}

	// Other names are untouched.
	if vs, _ := s.ListVersions(ctx, "function", "other"); len(vs) != 1 {
		t.Errorf("Prune touched another name: %d versions", len(vs))
	}
}

func TestSQLiteStore_PruneNoExcess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Save(ctx, "function", "double", []byte("only")); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	deleted, err := s.Prune(ctx, "function", "double", 3)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deleted, got %d", deleted)
	}

	if _, err := s.Prune(ctx, "function", "double", 0); err == nil {
		t.Error("Prune with keep=0 should fail")
	}
}
