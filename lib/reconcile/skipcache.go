// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"bytes"
	"slices"
	"sync"

	"github.com/solbet-labs/keeper/ledger"
)

// DefaultSkipCacheSize bounds a SkipCache when no size is configured.
const DefaultSkipCacheSize = 10000

// SkipCache remembers games the keeper should not touch again: games
// stuck in a state retrying cannot fix (the skip set) and games where a
// terminal action already succeeded (handled entries, keyed by action).
//
// Both kinds share one bound. Inserting a new key into a full cache
// clears the whole cache first; the cache is an optimization and
// losing it only costs repeated work. The key that triggered the clear
// is then inserted, so max+1 distinct insertions leave one entry.
//
// A SkipCache is safe for concurrent use.
type SkipCache struct {
	mu      sync.Mutex
	limit   int
	entries map[skipKey]struct{}
}

type skipKey struct {
	address ledger.Address
	// action is ActionNone for skip-set entries.
	action Action
}

// SkipEntry describes one cache entry for status output.
type SkipEntry struct {
	Address ledger.Address `json:"address"`
	// Action is empty for skip-set entries and names the completed
	// action for handled entries.
	Action string `json:"action,omitempty"`
}

// NewSkipCache returns an empty cache holding at most size entries.
// A size below one uses DefaultSkipCacheSize.
func NewSkipCache(size int) *SkipCache {
	if size < 1 {
		size = DefaultSkipCacheSize
	}
	return &SkipCache{limit: size, entries: make(map[skipKey]struct{})}
}

// ShouldSkip reports whether address is in the skip set.
func (c *SkipCache) ShouldSkip(address ledger.Address) bool {
	return c.contains(skipKey{address: address})
}

// MarkSkip adds address to the skip set.
func (c *SkipCache) MarkSkip(address ledger.Address) {
	c.insert(skipKey{address: address})
}

// MarkHandled records that action succeeded on address.
func (c *SkipCache) MarkHandled(address ledger.Address, action Action) {
	c.insert(skipKey{address: address, action: action})
}

// Handled reports whether action already succeeded on address.
func (c *SkipCache) Handled(address ledger.Address, action Action) bool {
	return c.contains(skipKey{address: address, action: action})
}

// Len returns the number of entries of both kinds.
func (c *SkipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns every entry, ordered by address then action.
func (c *SkipCache) Entries() []SkipEntry {
	c.mu.Lock()
	keys := make([]skipKey, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	slices.SortFunc(keys, func(a, b skipKey) int {
		if order := bytes.Compare(a.address[:], b.address[:]); order != 0 {
			return order
		}
		return int(a.action) - int(b.action)
	})
	entries := make([]SkipEntry, len(keys))
	for i, key := range keys {
		entries[i] = SkipEntry{Address: key.address}
		if key.action != ActionNone {
			entries[i].Action = key.action.String()
		}
	}
	return entries
}

// Clear removes every entry and returns how many there were.
func (c *SkipCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := len(c.entries)
	clear(c.entries)
	return removed
}

func (c *SkipCache) contains(key skipKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *SkipCache) insert(key skipKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	if len(c.entries) >= c.limit {
		clear(c.entries)
	}
	c.entries[key] = struct{}{}
}
