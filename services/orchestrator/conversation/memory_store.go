// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
)

// DefaultMaxHistoryTurns is the number of exchanges kept per session. The
// stored bound is twice this value (one user and one assistant turn each).
const DefaultMaxHistoryTurns = 10

type session struct {
	mu        sync.Mutex
	turns     []datatypes.Turn
	createdAt time.Time
}

// MemoryStore is an in-process Store.
//
// # Description
//
// A map guarded by an RWMutex resolves session identifiers; each session has
// its own mutex, so appends to different sessions never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	maxTurns int
	now      func() time.Time
}

// NewMemoryStore creates a store keeping 2 × maxHistoryTurns turns per
// session. A non-positive value uses DefaultMaxHistoryTurns.
func NewMemoryStore(maxHistoryTurns int) *MemoryStore {
	if maxHistoryTurns <= 0 {
		maxHistoryTurns = DefaultMaxHistoryTurns
	}
	return &MemoryStore{
		sessions: make(map[string]*session),
		maxTurns: 2 * maxHistoryTurns,
		now:      time.Now,
	}
}

// Capacity returns the per-session stored turn bound.
func (s *MemoryStore) Capacity() int {
	return s.maxTurns
}

func (s *MemoryStore) session(sessionID string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[sessionID]; ok {
		return sess
	}
	sess = &session{createdAt: s.now()}
	s.sessions[sessionID] = sess
	return sess
}

func (s *MemoryStore) GetOrCreate(sessionID string) []datatypes.Turn {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return copyTurns(sess.turns)
}

func (s *MemoryStore) Append(sessionID string, role datatypes.Role, content string) {
	sess := s.session(sessionID)
	turn := datatypes.Turn{Role: role, Content: content, Timestamp: s.now()}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, turn)
	if over := len(sess.turns) - s.maxTurns; over > 0 {
		// Reallocate so the dropped prefix can be collected.
		sess.turns = copyTurns(sess.turns[over:])
	}
}

func (s *MemoryStore) Clear(sessionID string) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = nil
}

func (s *MemoryStore) Recent(sessionID string, n int) []datatypes.Turn {
	if n <= 0 {
		return []datatypes.Turn{}
	}
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	start := len(sess.turns) - n
	if start < 0 {
		start = 0
	}
	return copyTurns(sess.turns[start:])
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copyTurns(turns []datatypes.Turn) []datatypes.Turn {
	out := make([]datatypes.Turn, len(turns))
	copy(out, turns)
	return out
}

var _ Store = (*MemoryStore)(nil)
