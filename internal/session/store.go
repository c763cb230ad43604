package session

import (
	"log"
	"sync"
	"time"
)

// Store owns all conversation sessions, keyed by sender ID. Producers never
// touch sessions directly; the single message worker reads and appends
// through the store, so the mutex only guards the top-level map and the
// admin endpoints that race with it.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxTurns int
	idleTTL  time.Duration
}

// NewStore creates an empty store. maxTurns caps each session's transcript
// (0 = unbounded); idleTTL controls eviction of inactive sessions
// (0 = never evict).
func NewStore(maxTurns int, idleTTL time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		maxTurns: maxTurns,
		idleTTL:  idleTTL,
	}
}

// GetOrCreate returns the session for senderID, creating it lazily.
func (st *Store) GetOrCreate(senderID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.getOrCreateLocked(senderID)
}

func (st *Store) getOrCreateLocked(senderID string) *Session {
	if s, ok := st.sessions[senderID]; ok {
		return s
	}
	now := time.Now()
	s := &Session{
		SenderID:       senderID,
		Metadata:       make(map[string]any),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	st.sessions[senderID] = s
	return s
}

// AppendTurn appends a turn to senderID's session, creating it if needed.
func (st *Store) AppendTurn(senderID string, t Turn) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.getOrCreateLocked(senderID).appendTurn(t, st.maxTurns)
}

// SetMetadata sets a state flag on senderID's session, creating it if
// needed. Tools write here mid-exchange, possibly before any turn landed.
func (st *Store) SetMetadata(senderID, key string, value any) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.getOrCreateLocked(senderID).Metadata[key] = value
}

// Snapshot returns a copy of senderID's session for inspection, or ok=false
// if no session exists.
func (st *Store) Snapshot(senderID string) (Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[senderID]
	if !ok {
		return Session{}, false
	}
	cp := *s
	cp.Turns = make([]Turn, len(s.Turns))
	copy(cp.Turns, s.Turns)
	cp.Metadata = make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		cp.Metadata[k] = v
	}
	return cp, true
}

// Delete removes senderID's session. Explicit memory reset.
func (st *Store) Delete(senderID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[senderID]; !ok {
		return false
	}
	delete(st.sessions, senderID)
	return true
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// EvictIdle removes sessions inactive for longer than the idle TTL and
// returns how many were evicted.
func (st *Store) EvictIdle() int {
	if st.idleTTL <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-st.idleTTL)

	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for id, s := range st.sessions {
		if s.LastActivityAt.Before(cutoff) {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// RunJanitor sweeps idle sessions on the given interval until done closes.
func (st *Store) RunJanitor(done <-chan struct{}, interval time.Duration) {
	if st.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := st.EvictIdle(); n > 0 {
				log.Printf("[Session] Evicted %d idle sessions", n)
			}
		case <-done:
			return
		}
	}
}
