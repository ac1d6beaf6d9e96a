package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"orsi/internal/settings"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "orsi.db")
	s, err := Open(context.Background(), "sqlite", dsn, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, found, err := s.Get(ctx, "p", "k"); err != nil || found {
		t.Fatalf("expected missing key, found=%v err=%v", found, err)
	}
	if err := s.Set(ctx, "p", "k", "v1"); err != nil {
		t.Fatalf("set v1: %v", err)
	}
	if err := s.Set(ctx, "p", "k", "v2"); err != nil {
		t.Fatalf("set v2: %v", err)
	}
	got, found, err := s.Get(ctx, "p", "k")
	if err != nil || !found || got != "v2" {
		t.Fatalf("expected v2, got %q found=%v err=%v", got, found, err)
	}

	parts, err := s.ListPartitions(ctx)
	if err != nil {
		t.Fatalf("list partitions: %v", err)
	}
	if len(parts) != 1 || parts[0] != "p" {
		t.Fatalf("unexpected partitions %#v", parts)
	}

	if err := s.DeleteValue(ctx, "p", "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteValue(ctx, "p", "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSettingsRoundTripThroughSQL(t *testing.T) {
	ctx := context.Background()
	store := settings.NewStore(openTestStore(t))

	want := settings.Defaults()
	want.VoiceResponse = false
	want.Volume = 10
	want.NewsAPIKey = "abc"
	if err := store.Save(ctx, "browser-1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "browser-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", want, got)
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, err := Open(context.Background(), "sqlite", "", true); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
