package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"orsi/internal/settings"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestUpdateDeduplicatorMarkFirst(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := NewUpdateDeduplicator(rdb, time.Minute)

	first, err := d.MarkFirst(context.Background(), 42)
	if err != nil {
		t.Fatalf("mark#1: %v", err)
	}
	if !first {
		t.Fatalf("expected first delivery")
	}

	first, err = d.MarkFirst(context.Background(), 42)
	if err != nil {
		t.Fatalf("mark#2: %v", err)
	}
	if first {
		t.Fatalf("expected duplicate delivery to be rejected")
	}

	mr.FastForward(2 * time.Minute)
	first, err = d.MarkFirst(context.Background(), 42)
	if err != nil {
		t.Fatalf("mark#3: %v", err)
	}
	if !first {
		t.Fatalf("expected update id to be accepted after ttl")
	}
}

func TestKVSettingsRoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	store := settings.NewStore(NewKV(rdb))

	want := settings.Defaults()
	want.DarkMode = false
	want.WeatherAPIKey = "key"
	if err := store.Save(ctx, "chat:1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "chat:1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", want, got)
	}

	if _, found, err := NewKV(rdb).Get(ctx, "chat:2", settings.StorageKey); err != nil || found {
		t.Fatalf("expected missing key, found=%v err=%v", found, err)
	}
}
