package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

func newTestRedis(t *testing.T) (*RedisKVStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisKVStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisKVStore_GetMissingKey(t *testing.T) {
	store, _ := newTestRedis(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("Get() error = %v, want ErrKeyNotFound", err)
	}
}

func TestRedisKVStore_SetGetDelete(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	if err := store.Set(ctx, "prices:lookup", []byte(`{"price":42}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, "prices:lookup")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"price":42}` {
		t.Errorf("Get() = %s", got)
	}
	if ttl := mr.TTL("prices:lookup"); ttl != time.Minute {
		t.Errorf("TTL = %v, want %v", ttl, time.Minute)
	}

	ok, err := store.Exists(ctx, "prices:lookup")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v, want true", ok, err)
	}

	if err := store.Delete(ctx, "prices:lookup"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists("prices:lookup") {
		t.Error("key still present after Delete()")
	}
}

func TestRedisKVStore_Expiry(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "k"); !errors.Is(err, core.ErrKeyNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrKeyNotFound", err)
	}
}

func TestRedisKVStore_ListOps(t *testing.T) {
	store, _ := newTestRedis(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b"} {
		if err := store.ListPush(ctx, "q", []byte(v)); err != nil {
			t.Fatalf("ListPush() error = %v", err)
		}
	}
	if n, err := store.ListLength(ctx, "q"); err != nil || n != 2 {
		t.Errorf("ListLength() = %d, %v, want 2", n, err)
	}
	first, err := store.ListPop(ctx, "q")
	if err != nil || string(first) != "a" {
		t.Errorf("ListPop() = %q, %v, want a", first, err)
	}
	store.ListPop(ctx, "q")
	empty, err := store.ListPop(ctx, "q")
	if err != nil || empty != nil {
		t.Errorf("ListPop() on empty list = %q, %v, want nil, nil", empty, err)
	}
}

func TestRedisKVStore_Closed(t *testing.T) {
	store, _ := newTestRedis(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close() should fail")
	}
}

func TestCreate_UnknownType(t *testing.T) {
	if _, err := Create(KVStoreConfig{Type: "memcached"}); err == nil {
		t.Error("Create() with unknown type should fail")
	}
	if _, err := Create(KVStoreConfig{}); err == nil {
		t.Error("Create() without type should fail")
	}
}

func TestRegisteredTypes(t *testing.T) {
	types := GetRegisteredTypes()
	if len(types) != 2 || types[0] != "dynamodb" || types[1] != "redis" {
		t.Errorf("GetRegisteredTypes() = %v, want [dynamodb redis]", types)
	}
	if !IsTypeRegistered("redis") {
		t.Error("redis should be registered")
	}
}

func TestCreate_RedisFromMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Create(KVStoreConfig{
		Type:         "redis",
		Endpoints:    []string{mr.Addr()},
		PoolSize:     2,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
