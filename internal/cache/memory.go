package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	val     []byte
	expires time.Time
}

// Memory is a size-bounded LRU. maxTTL bounds every entry; shorter
// per-entry TTLs are checked on read.
type Memory struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, memEntry]
	now func() time.Time
}

func NewMemory(size int, maxTTL time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{
		lru: expirable.NewLRU[string, memEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, m.entry(val, ttl))
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.lru.Get(key); ok && (e.expires.IsZero() || m.now().Before(e.expires)) {
		return false, nil
	}
	m.lru.Add(key, m.entry(val, ttl))
	return true, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.lru.Remove(k)
	}
	return nil
}

func (m *Memory) Purge(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.lru.Remove(k)
		}
	}
	return nil
}

func (m *Memory) entry(val []byte, ttl time.Duration) memEntry {
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return e
}
