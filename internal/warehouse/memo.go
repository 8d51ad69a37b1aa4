package warehouse

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"crmsms/internal/models"
)

// Fetch produces a table on a cache miss.
type Fetch func() (models.Table, error)

// Memoizer is a short-lived result cache keyed by exact query text plus the
// ordered parameter values. Entries expire by TTL only and are never
// invalidated by writes. Identical concurrent requests are not coalesced;
// the sessions here are single-user.
type Memoizer struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoEntry
}

type memoEntry struct {
	table   models.Table
	expires time.Time
}

// NewMemoizer builds a cache with the given validity window.
func NewMemoizer(ttl time.Duration) *Memoizer {
	return &Memoizer{ttl: ttl, now: time.Now, entries: map[string]memoEntry{}}
}

// Key renders a cache key from query text and parameters. Parameter order is
// significant: logically equivalent queries with reordered parameters are
// distinct entries.
func Key(q string, args []any) string {
	var sb strings.Builder
	sb.WriteString(q)
	for _, a := range args {
		sb.WriteByte(0x1f)
		fmt.Fprintf(&sb, "%v", a)
	}
	return sb.String()
}

// GetOrFetch returns the cached table when the key is still valid, otherwise
// runs fetch and stores the result on success. The second return reports a
// cache hit.
func (m *Memoizer) GetOrFetch(key string, fetch Fetch) (models.Table, bool, error) {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok && m.now().Before(e.expires) {
		m.mu.Unlock()
		return e.table, true, nil
	}
	m.mu.Unlock()

	table, err := fetch()
	if err != nil {
		return models.Table{}, false, err
	}

	m.mu.Lock()
	m.entries[key] = memoEntry{table: table, expires: m.now().Add(m.ttl)}
	// Drop anything already expired while we hold the lock.
	for k, e := range m.entries {
		if !m.now().Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
	return table, false, nil
}

// Len reports the live entry count.
func (m *Memoizer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
