package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeKV struct {
	data   map[string]string
	ttl    map[string]time.Duration
	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	kv := newFakeKV()
	c := newRedisCache(kv, quietLogger())
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Put(ctx, "06J115403Q", []float64{42, 44}, "img.jpg"); err != nil {
		t.Fatal(err)
	}
	if kv.ttl[DefaultKeyPrefix+"06J115403Q"] != TTL {
		t.Fatalf("expected TTL %v, got %v", TTL, kv.ttl[DefaultKeyPrefix+"06J115403Q"])
	}
	snap, ok := c.Get(ctx, "06J115403Q")
	if !ok || !reflect.DeepEqual(snap.Prices, []float64{42, 44}) || snap.Image != "img.jpg" {
		t.Fatalf("unexpected %+v %v", snap, ok)
	}

	c.now = func() time.Time { return now.Add(TTL + time.Minute) }
	if _, ok := c.Get(ctx, "06J115403Q"); ok {
		t.Fatal("stale entry should miss even if Redis still holds it")
	}
}

func TestRedisCacheMisses(t *testing.T) {
	kv := newFakeKV()
	c := newRedisCache(kv, quietLogger())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "NOPE"); ok {
		t.Fatal("absent key should miss")
	}
	kv.data[DefaultKeyPrefix+"BAD"] = "not json"
	if _, ok := c.Get(ctx, "BAD"); ok {
		t.Fatal("corrupt entry should miss")
	}
	kv.getErr = errors.New("connection refused")
	if _, ok := c.Get(ctx, "ANY"); ok {
		t.Fatal("redis error should miss")
	}
}

func TestRedisCachePutErrors(t *testing.T) {
	kv := newFakeKV()
	c := newRedisCache(kv, quietLogger())
	if err := c.Put(context.Background(), "", []float64{1}, ""); err != nil || len(kv.data) != 0 {
		t.Fatal("empty OEM should be a no-op")
	}
	kv.setErr = errors.New("READONLY")
	if err := c.Put(context.Background(), "X", []float64{1}, ""); err == nil {
		t.Fatal("expected set error")
	}
}
