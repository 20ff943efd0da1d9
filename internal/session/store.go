package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store persists sessions between requests and hands out the per-session
// mutation lease.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session, ttl time.Duration) error
	// Acquire takes the exclusive lease for id on behalf of holder, failing
	// with ErrLeaseHeld while another holder's lease is live.
	Acquire(ctx context.Context, id, holder string, ttl time.Duration) error
	// Release drops the lease if holder still owns it.
	Release(ctx context.Context, id, holder string) error
}

type memEntry struct {
	data    []byte
	expires time.Time
}

type memLease struct {
	holder  string
	expires time.Time
}

// MemoryStore keeps JSON snapshots in process. State is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memEntry
	leases   map[string]memLease
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]memEntry{},
		leases:   map[string]memLease{},
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || !m.now().Before(e.expires) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	var s Session
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = memEntry{data: b, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Acquire(_ context.Context, id, holder string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if l, ok := m.leases[id]; ok && l.holder != holder && now.Before(l.expires) {
		return fmt.Errorf("session %s: %w", id, ErrLeaseHeld)
	}
	m.leases[id] = memLease{holder: holder, expires: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, id, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[id]; ok && l.holder == holder {
		delete(m.leases, id)
	}
	return nil
}

// Sweep drops expired sessions and leases and reports how many sessions went.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.sessions {
		if !now.Before(e.expires) {
			delete(m.sessions, id)
			n++
		}
	}
	for id, l := range m.leases {
		if !now.Before(l.expires) {
			delete(m.leases, id)
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Sweep()
		}
	}
}
