// Package idmap implements the bounded TTL+LRU table mapping synthetic
// tool-call IDs back to the original tool name and arguments, so that a
// later "tool" role message referencing that ID can be folded back into
// plain text for a backend with no native concept of tool results.
package idmap

import (
	"container/list"
	"sync"
	"time"
)

// Entry is the stored value for one tool-call ID.
type Entry struct {
	Name        string
	Arguments   string
	Description string
	CreatedAt   time.Time
}

type node struct {
	id    string
	entry Entry
}

// Map is a thread-safe, size-bounded, TTL-expiring map with LRU eviction.
// Lookups move the entry to the most-recently-used end; Store evicts the
// least-recently-used entry once MaxSize is reached.
type Map struct {
	maxSize int
	ttl     time.Duration

	mu    sync.Mutex
	order *list.List               // front = least recently used, back = most recently used
	elems map[string]*list.Element // id -> element in order, Value is *node

	stopOnce sync.Once
	stopCh   chan struct{}

	evictions int64
	expiries  int64
}

// New builds a Map with the given capacity and TTL. If cleanupInterval is
// non-zero, a background goroutine periodically sweeps expired entries;
// call Close to stop it.
func New(maxSize int, ttl, cleanupInterval time.Duration) *Map {
	m := &Map{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		elems:   make(map[string]*list.Element),
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.sweepLoop(cleanupInterval)
	}
	return m
}

// Store inserts or overwrites the mapping for id, evicting the
// least-recently-used entry if the map is at capacity.
func (m *Map) Store(id, name, arguments, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.elems[id]; ok {
		m.order.Remove(el)
		delete(m.elems, id)
	}

	for m.order.Len() >= m.maxSize {
		oldest := m.order.Front()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.elems, oldest.Value.(*node).id)
		m.evictions++
	}

	n := &node{id: id, entry: Entry{
		Name:        name,
		Arguments:   arguments,
		Description: description,
		CreatedAt:   time.Now(),
	}}
	m.elems[id] = m.order.PushBack(n)
}

// Get returns the mapping for id, or (Entry{}, false) if absent or
// expired. A successful lookup refreshes the entry's LRU position.
func (m *Map) Get(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.elems[id]
	if !ok {
		return Entry{}, false
	}
	n := el.Value.(*node)
	if m.ttl > 0 && time.Since(n.entry.CreatedAt) > m.ttl {
		m.order.Remove(el)
		delete(m.elems, id)
		m.expiries++
		return Entry{}, false
	}
	m.order.MoveToBack(el)
	return n.entry, true
}

// Stats is a snapshot of map occupancy, used by the admin stats endpoint.
type Stats struct {
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
	Evictions int64 `json:"evictions"`
	Expiries  int64 `json:"expiries"`
}

// Stats returns a point-in-time snapshot.
func (m *Map) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Size:      m.order.Len(),
		MaxSize:   m.maxSize,
		Evictions: m.evictions,
		Expiries:  m.expiries,
	}
}

// sweepExpired removes all entries whose TTL has elapsed and reports how
// many were removed.
func (m *Map) sweepExpired() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		n := el.Value.(*node)
		if now.Sub(n.entry.CreatedAt) > m.ttl {
			m.order.Remove(el)
			delete(m.elems, n.id)
			removed++
			m.expiries++
		}
		el = next
	}
	return removed
}

func (m *Map) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweepExpired()
		case <-m.stopCh:
			return
		}
	}
}

// Close stops the background sweeper goroutine, if any. Safe to call more
// than once.
func (m *Map) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}
