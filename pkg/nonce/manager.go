// Copyright (C) 2025 AP2 Project
//
// This file is part of ap2-go.
//
// ap2-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ap2-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ap2-go.  If not, see <https://www.gnu.org/licenses/>.

package nonce

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// DefaultTTL is the default lifetime of a nonce from first use
const DefaultTTL = 10 * time.Minute

// Stats is a snapshot of the manager's state
type Stats struct {
	TotalNonces   int       `json:"total_nonces"`
	ActiveNonces  int       `json:"active_nonces"`
	ExpiredNonces int       `json:"expired_nonces"`
	TTLSeconds    float64   `json:"ttl_seconds"`
	LastCleanup   time.Time `json:"last_cleanup"`
}

// Manager is a single-use, time-bounded token store providing replay
// protection for signed envelopes.
//
// A Manager is constructed once per process and passed by reference to
// every consumer; it is safe for concurrent use. Of N simultaneous calls
// with the same nonce, exactly one returns true.
type Manager struct {
	mu          sync.Mutex
	seen        map[string]time.Time
	ttl         time.Duration
	lastCleanup time.Time

	total   int // nonces ever accepted
	expired int // nonces ever swept
}

// NewManager creates a nonce manager with the given TTL.
// A non-positive ttl falls back to DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		seen:        make(map[string]time.Time),
		ttl:         ttl,
		lastCleanup: time.Now(),
	}
}

// IsValidNonce atomically checks-and-inserts the nonce. It returns true
// only on the first use within the current TTL window; every later call
// with the same value returns false until the nonce expires. An expired
// nonce becomes usable again, which is a deliberate bounded-memory
// trade-off: an expired nonce also falls outside the envelope timestamp
// freshness window, so replay remains impossible.
func (m *Manager) IsValidNonce(value string) bool {
	if value == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.cleanupLocked(now)

	if firstSeen, ok := m.seen[value]; ok && now.Sub(firstSeen) < m.ttl {
		return false
	}

	m.seen[value] = now
	m.total++
	return true
}

// Cleanup sweeps expired entries immediately and returns how many were removed
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.seen)
	m.sweepLocked(time.Now())
	return before - len(m.seen)
}

// Stats returns a snapshot of the store
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	active := 0
	for _, firstSeen := range m.seen {
		if now.Sub(firstSeen) < m.ttl {
			active++
		}
	}

	return Stats{
		TotalNonces:   m.total,
		ActiveNonces:  active,
		ExpiredNonces: m.expired + (len(m.seen) - active),
		TTLSeconds:    m.ttl.Seconds(),
		LastCleanup:   m.lastCleanup,
	}
}

// ClearAll empties the store. Test and operational use only.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen = make(map[string]time.Time)
	m.total = 0
	m.expired = 0
	m.lastCleanup = time.Now()
}

// cleanupLocked sweeps opportunistically, at most once per TTL window
func (m *Manager) cleanupLocked(now time.Time) {
	if now.Sub(m.lastCleanup) < m.ttl {
		return
	}
	m.sweepLocked(now)
}

func (m *Manager) sweepLocked(now time.Time) {
	for value, firstSeen := range m.seen {
		if now.Sub(firstSeen) >= m.ttl {
			delete(m.seen, value)
			m.expired++
		}
	}
	m.lastCleanup = now
}

// NewNonce returns a fresh cryptographically random nonce value
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
