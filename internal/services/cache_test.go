package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCacheKeyDeterministicAndNormalized(t *testing.T) {
	kv := newFakeKV()
	cache := NewCacheService(testLogger(t), kv)

	k1 := cache.Key(CacheNamespaceQA, "acme/api", "How does auth work?")
	k2 := cache.Key(CacheNamespaceQA, "acme/api", "  how does AUTH work?  ")
	if k1 != k2 {
		t.Errorf("normalized inputs should share a key: %s vs %s", k1, k2)
	}
	if len(k1) != 24 {
		t.Errorf("key length = %d, want 24", len(k1))
	}

	if cache.Key(CacheNamespaceEmbeddingQuery, "acme/api", "How does auth work?") == k1 {
		t.Error("different namespaces must not collide")
	}
	if cache.Key(CacheNamespaceQA, "other/repo", "How does auth work?") == k1 {
		t.Error("different repos must not collide")
	}
}

func TestThroughMissComputesAndStoresAsync(t *testing.T) {
	kv := newFakeKV()
	cache := NewCacheService(testLogger(t), kv)

	computes := 0
	got, err := Through(context.Background(), cache, CacheNamespaceQA, "acme/api", "question", time.Minute,
		func(ctx context.Context) (string, error) {
			computes++
			return "answer", nil
		})
	if err != nil {
		t.Fatalf("Through: %v", err)
	}
	if got != "answer" || computes != 1 {
		t.Fatalf("got %q after %d computes", got, computes)
	}

	// The write happens after Through returns.
	if _, ok := kv.awaitSet(2 * time.Second); !ok {
		t.Fatal("cache write never happened")
	}

	// Second call hits the cache without recomputing.
	got, err = Through(context.Background(), cache, CacheNamespaceQA, "acme/api", "question", time.Minute,
		func(ctx context.Context) (string, error) {
			computes++
			return "recomputed", nil
		})
	if err != nil {
		t.Fatalf("Through (hit): %v", err)
	}
	if got != "answer" || computes != 1 {
		t.Errorf("hit should return cached value without recompute, got %q computes=%d", got, computes)
	}
}

func TestThroughSwallowsWriteFailures(t *testing.T) {
	kv := newFakeKV()
	kv.failSet = true
	cache := NewCacheService(testLogger(t), kv)

	got, err := Through(context.Background(), cache, CacheNamespaceQA, "acme/api", "q", time.Minute,
		func(ctx context.Context) (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("compute result must not depend on cache writes: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestThroughTreatsReadFailureAsMiss(t *testing.T) {
	kv := newFakeKV()
	kv.failGet = true
	cache := NewCacheService(testLogger(t), kv)

	got, err := Through(context.Background(), cache, CacheNamespaceQA, "acme/api", "q", time.Minute,
		func(ctx context.Context) (string, error) { return "fresh", nil })
	if err != nil {
		t.Fatalf("Through: %v", err)
	}
	if got != "fresh" {
		t.Errorf("got %q, want computed value on read failure", got)
	}
}

func TestGetRechecksEntryExpiry(t *testing.T) {
	kv := newFakeKV()
	cache := NewCacheService(testLogger(t), kv)

	// Store an entry, then move the clock past its expiry. The store-level
	// TTL has not fired (the fake never expires) so only the entry-carried
	// expiry can catch it.
	payload, _ := json.Marshal("stale")
	cache.Set(context.Background(), CacheNamespaceQA, "acme/api", "q", payload, time.Minute)

	cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, ok := cache.Get(context.Background(), CacheNamespaceQA, "acme/api", "q"); ok {
		t.Error("expired entry must be treated as a miss")
	}
}

func TestGetMissOnAbsentKey(t *testing.T) {
	cache := NewCacheService(testLogger(t), newFakeKV())
	if _, ok := cache.Get(context.Background(), CacheNamespaceQA, "acme/api", "never stored"); ok {
		t.Error("absent key should miss")
	}
}
