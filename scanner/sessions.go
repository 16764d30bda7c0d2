package scanner

import (
	"sync"
	"time"
)

const DefaultSessionTTL = 10 * time.Minute

type session struct {
	guard    *Guard
	lastSeen time.Time
}

// Sessions keeps one Guard per scanning device.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	newGuard func() *Guard
}

func NewSessions(ttl time.Duration, newGuard func() *Guard) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		sessions: make(map[string]*session),
		ttl:      ttl,
		newGuard: newGuard,
	}
}

// Get returns the device's guard, creating it on first use.
func (s *Sessions) Get(deviceID string, now time.Time) *Guard {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[deviceID]
	if !ok {
		sess = &session{guard: s.newGuard()}
		s.sessions[deviceID] = sess
	}
	sess.lastSeen = now
	return sess.guard
}

// Reset clears the device's guard. It reports false for an unknown device.
func (s *Sessions) Reset(deviceID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[deviceID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.guard.Reset()
	return true
}

// Evict drops sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Sessions) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
