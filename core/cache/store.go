// Package cache implements the LRU cache engine from §4.5: a
// process-wide store of namespaced, bytes-bounded, TTL-aware LRUs with
// global eviction across namespaces and encryption-at-rest.
package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tejasframework/tejas/core/metrics"
)

// maxEvictionIterations caps enforceGlobal's eviction loop so a
// pathological configuration (maxBytes smaller than any single entry)
// can't spin forever (§4.5: "Hard safety: cap iterations at 1000").
const maxEvictionIterations = 1000

// Store is the process-wide singleton cache described in §4.5: a
// namespace -> LRU map sharing one global byte budget.
type Store struct {
	mu         sync.Mutex
	namespaces map[string]*lru
	globalSize int64
	maxBytes   int64
	onDelete   func(namespace, key string)
	logEnabled bool
	cipher     *cipherBox
	warn       func(msg string, kv ...any)
	metrics    *metrics.Metrics
}

// Options configures a Store at construction.
type Options struct {
	MaxBytes   int64
	OnDelete   func(namespace, key string)
	LogEnabled bool
	// Warn receives structured warnings (clamped globalSize, eviction
	// safety-cap hit). Nil is a valid no-op.
	Warn func(msg string, kv ...any)
	// Metrics, if set, receives §4.8's cache gauges/counters as entries
	// are inserted, evicted and looked up. Nil is a valid no-op (the
	// *metrics.Metrics nil receiver already no-ops every method).
	Metrics *metrics.Metrics
}

// NewStore builds a Store and its process-random encryption key/IV.
func NewStore(opts Options) (*Store, error) {
	cb, err := newCipherBox()
	if err != nil {
		return nil, err
	}
	return &Store{
		namespaces: make(map[string]*lru),
		maxBytes:   opts.MaxBytes,
		onDelete:   opts.OnDelete,
		logEnabled: opts.LogEnabled,
		cipher:     cb,
		warn:       opts.Warn,
		metrics:    opts.Metrics,
	}, nil
}

// recordSize reports ns's current entry count and the store's total byte
// size to the metrics collectors. Caller holds s.mu.
func (s *Store) recordSize(ns string, l *lru) {
	s.metrics.SetCacheEntries(ns, l.size())
	s.metrics.SetCacheBytes(s.globalSize)
}

func (s *Store) logf(msg string, kv ...any) {
	if s.logEnabled && s.warn != nil {
		s.warn(msg, kv...)
	}
}

func (s *Store) namespace(ns string) *lru {
	l, ok := s.namespaces[ns]
	if !ok {
		l = newLRU()
		s.namespaces[ns] = l
	}
	return l
}

// Set encrypts value, computes its accounting size, evicts across all
// namespaces until it fits under maxBytes, then inserts it at the head
// of ns's list.
func (s *Store) Set(ns, key string, value any, ttl time.Duration) error {
	plain, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshaling value: %w", err)
	}
	ciphertext := s.cipher.encrypt(plain)
	entrySize := sizeBytes(key, ciphertext)

	var expireAtMs int64
	if ttl > 0 {
		expireAtMs = time.Now().Add(ttl).UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.namespace(ns)

	// If key already exists, its own bytes are about to be replaced,
	// so only the net growth (if any) needs to be evicted for.
	existingSize := 0
	if h, ok := l.index[key]; ok {
		existingSize = l.nodes[h].size
	}
	required := entrySize - existingSize
	if required > 0 && s.maxBytes > 0 {
		s.enforceGlobal(int64(required))
	}

	delta := l.set(key, ciphertext, entrySize, expireAtMs)
	s.globalSize += delta
	s.clampGlobalSize()
	s.recordSize(ns, l)
	return nil
}

// Get returns the decrypted value for ns/key, or ok=false if the entry
// is absent or has expired (deleting it in the latter case).
func (s *Store) Get(ns, key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.namespaces[ns]
	if !ok {
		s.metrics.ObserveCacheHit(false)
		return false, nil
	}

	ciphertext, found, freed := l.get(key, time.Now().UnixMilli())
	if freed > 0 {
		s.globalSize -= freed
		s.clampGlobalSize()
		if s.onDelete != nil {
			s.onDelete(ns, key)
		}
		s.recordSize(ns, l)
	}
	s.metrics.ObserveCacheHit(found)
	if !found {
		return false, nil
	}

	plain, err := s.cipher.decrypt(ciphertext)
	if err != nil {
		return false, err
	}
	if out != nil {
		if err := json.Unmarshal(plain, out); err != nil {
			return false, fmt.Errorf("cache: unmarshaling value: %w", err)
		}
	}
	return true, nil
}

// Delete removes ns/key if present.
func (s *Store) Delete(ns, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.namespaces[ns]
	if !ok {
		return
	}
	freed := l.delete(key)
	if freed > 0 {
		s.globalSize -= freed
		s.clampGlobalSize()
		if s.onDelete != nil {
			s.onDelete(ns, key)
		}
		s.recordSize(ns, l)
	}
}

// Clear empties one namespace, or every namespace when ns is "".
func (s *Store) Clear(ns string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ns == "" {
		for name := range s.namespaces {
			s.metrics.SetCacheEntries(name, 0)
		}
		s.namespaces = make(map[string]*lru)
		s.globalSize = 0
		s.metrics.SetCacheBytes(0)
		return
	}

	l, ok := s.namespaces[ns]
	if !ok {
		return
	}
	s.globalSize -= l.sizeBytes
	s.clampGlobalSize()
	delete(s.namespaces, ns)
	s.metrics.SetCacheEntries(ns, 0)
	s.metrics.SetCacheBytes(s.globalSize)
}

// Has, Size, Keys, PaginatedKeys and Values expose one namespace's LRU
// without letting callers reach in and mutate it directly.
func (s *Store) Has(ns, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.namespaces[ns]
	return ok && l.has(key)
}

func (s *Store) Size(ns string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.namespaces[ns]
	if !ok {
		return 0
	}
	return l.size()
}

func (s *Store) Keys(ns string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.namespaces[ns]
	if !ok {
		return nil
	}
	return l.keys()
}

func (s *Store) PaginatedKeys(ns string, page, pageSize int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.namespaces[ns]
	if !ok {
		return []string{}
	}
	return l.paginatedKeys(page, pageSize)
}

// Values returns the decrypted plaintext (still JSON-encoded, as Set
// marshaled it) of every entry in ns, most-recently-used first.
// Expiry is not checked here: entries past their TTL are returned and
// stay in place until a Get on their key removes them.
func (s *Store) Values(ns string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.namespaces[ns]
	if !ok {
		return [][]byte{}, nil
	}

	ciphertexts := l.values()
	out := make([][]byte, 0, len(ciphertexts))
	for _, ct := range ciphertexts {
		plain, err := s.cipher.decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("cache: decrypting value: %w", err)
		}
		out = append(out, plain)
	}
	return out, nil
}

// GlobalSize reports the store's current total accounting size across
// every namespace.
func (s *Store) GlobalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalSize
}

// clampGlobalSize never lets the running counter go negative; a
// negative value would mean bookkeeping drifted from reality, which
// this floors rather than propagates (§4.5: "never goes negative
// (clamp at 0 with a logged warning)").
func (s *Store) clampGlobalSize() {
	if s.globalSize < 0 {
		s.logf("cache: globalSize went negative, clamping to 0", "was", s.globalSize)
		s.globalSize = 0
	}
}

// enforceGlobal evicts tail entries across namespaces, in deterministic
// (sorted) namespace order, until globalSize+required fits under
// maxBytes or no candidate remains. Caller holds s.mu.
func (s *Store) enforceGlobal(required int64) {
	if s.globalSize+required <= s.maxBytes {
		return
	}

	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)

	lastSize := s.globalSize
	for i := 0; i < maxEvictionIterations; i++ {
		if s.globalSize+required <= s.maxBytes {
			return
		}

		evicted := false
		for _, name := range names {
			l := s.namespaces[name]
			if l.tail == nilHandle {
				continue
			}
			key := l.nodes[l.tail].key
			freed := l.evictTail()
			s.globalSize -= freed
			s.clampGlobalSize()
			if s.onDelete != nil {
				s.onDelete(name, key)
			}
			s.recordSize(name, l)
			evicted = true
			break
		}

		if !evicted {
			return
		}
		if s.globalSize >= lastSize {
			s.logf("cache: eviction made no progress, stopping", "globalSize", s.globalSize)
			return
		}
		lastSize = s.globalSize
	}

	s.logf("cache: eviction hit the iteration safety cap", "iterations", maxEvictionIterations)
}
