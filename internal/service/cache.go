package service

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/spsc/goldledger/internal/domain"
	"github.com/spsc/goldledger/internal/store"
)

// EntryCache is the read-through local mirror of the entries collection. It
// is replaced wholesale from each subscription snapshot: every snapshot is
// authoritative and discards whatever was cached before. Insertion order of
// the remote collection is preserved.
type EntryCache struct {
	mu      sync.RWMutex
	keys    []string
	entries map[string]domain.LoanEntry
}

func NewEntryCache() *EntryCache {
	return &EntryCache{entries: make(map[string]domain.LoanEntry)}
}

// ReplaceAll swaps the cached state for the given snapshot. Records that do
// not decode as entries are logged and skipped.
func (c *EntryCache) ReplaceAll(snap *store.Snapshot) {
	keys := make([]string, 0, len(snap.Keys))
	entries := make(map[string]domain.LoanEntry, len(snap.Keys))

	for _, key := range snap.Keys {
		var entry domain.LoanEntry
		if err := json.Unmarshal(snap.Records[key], &entry); err != nil {
			log.Printf("cache: skipping undecodable entry %s: %v", key, err)
			continue
		}
		keys = append(keys, key)
		entries[key] = entry
	}

	c.mu.Lock()
	c.keys = keys
	c.entries = entries
	c.mu.Unlock()
}

// All returns the cached entries in insertion order, oldest first.
func (c *EntryCache) All() []domain.LoanEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.LoanEntry, 0, len(c.keys))
	for _, key := range c.keys {
		out = append(out, c.entries[key])
	}
	return out
}

// Get returns the cached entry for an application number.
func (c *EntryCache) Get(applicationNumber string) (domain.LoanEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[applicationNumber]
	return entry, ok
}

// Len reports how many entries are cached.
func (c *EntryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
