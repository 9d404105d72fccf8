package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/autodevhq/autodev-backend/internal/clients/redis"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
)

// Cache namespaces. Each cacheable concern gets its own namespace so entries
// for different features never collide even on identical input strings.
const (
	CacheNamespaceQA             = "qa"
	CacheNamespaceEmbeddingQuery = "embedding-query"
)

const defaultCacheTTL = time.Hour

// cacheEntry is the stored envelope. Expiry travels inside the value because
// store-level TTL enforcement is eventually consistent; readers re-check it.
type cacheEntry struct {
	Namespace string          `json:"namespace"`
	RepoID    string          `json:"repoId"`
	Data      json.RawMessage `json:"data"`
	Expiry    int64           `json:"ttl"`
	CreatedAt string          `json:"createdAt"`
}

// CacheService is a read-through cache over a key-value store. Cache failures
// are never surfaced to callers: a broken cache degrades to computing every
// time, not to erroring.
type CacheService struct {
	log *logger.Logger
	kv  redis.KVStore
	now func() time.Time
}

func NewCacheService(log *logger.Logger, kv redis.KVStore) *CacheService {
	return &CacheService{
		log: log.With("service", "CacheService"),
		kv:  kv,
		now: time.Now,
	}
}

// Key derives the storage key: a truncated sha256 over the namespace, repo,
// and normalized input. Lowercasing and trimming means "How does auth work?"
// and " how does auth work? " share an entry.
func (s *CacheService) Key(namespace, repoID, input string) string {
	raw := namespace + ":" + repoID + ":" + strings.ToLower(strings.TrimSpace(input))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:24]
}

// Get returns the cached payload, or (nil, false) on miss, expiry, or any
// store error.
func (s *CacheService) Get(ctx context.Context, namespace, repoID, input string) (json.RawMessage, bool) {
	key := s.Key(namespace, repoID, input)
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed", "namespace", namespace, "key", key, "error", err.Error())
		return nil, false
	}
	if !found {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.log.Warn("cache entry corrupt", "namespace", namespace, "key", key, "error", err.Error())
		return nil, false
	}
	if entry.Expiry > 0 && entry.Expiry < s.now().Unix() {
		return nil, false
	}
	return entry.Data, true
}

// Set stores a payload with a TTL. Errors are logged and swallowed.
func (s *CacheService) Set(ctx context.Context, namespace, repoID, input string, data json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	key := s.Key(namespace, repoID, input)
	entry := cacheEntry{
		Namespace: namespace,
		RepoID:    repoID,
		Data:      data,
		Expiry:    s.now().Add(ttl).Unix(),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		s.log.Error("cache entry marshal failed", "namespace", namespace, "key", key, "error", err.Error())
		return
	}
	if err := s.kv.Set(ctx, key, payload, ttl); err != nil {
		s.log.Warn("cache write failed", "namespace", namespace, "key", key, "error", err.Error())
	}
}

// Through returns the cached value for the input when present, otherwise
// computes it, returns it immediately, and persists it in the background.
// The caller never waits on the cache write and never sees it fail.
func Through[T any](ctx context.Context, s *CacheService, namespace, repoID, input string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok := s.Get(ctx, namespace, repoID, input); ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			s.log.Debug("cache hit", "namespace", namespace, "repo_id", repoID)
			return out, nil
		}
		// Undecodable hit is treated as a miss and overwritten below.
	}
	s.log.Debug("cache miss", "namespace", namespace, "repo_id", repoID)

	result, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if payload, mErr := json.Marshal(result); mErr == nil {
		go func() {
			storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.Set(storeCtx, namespace, repoID, input, payload, ttl)
		}()
	}
	return result, nil
}
