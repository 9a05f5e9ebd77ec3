// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation owns per-session conversation history.
//
// # Description
//
// Sessions are created lazily on first reference and live for the lifetime of
// the store. Each session keeps at most 2 × MaxHistoryTurns turns; older turns
// are dropped oldest first immediately after the append that overflowed.
// History is kept in process memory only.
//
// # Thread Safety
//
// All implementations are safe for concurrent use. Appends to the same
// session are serialized so append order and the retention bound hold under
// concurrency.
package conversation

import (
	"github.com/AleutianAI/AleutianDocChat/services/orchestrator/datatypes"
)

// Store defines the session history contract used by the pipeline and the
// HTTP handlers.
type Store interface {
	// GetOrCreate returns a copy of the session's turns, oldest first,
	// creating an empty session if the identifier is new.
	//
	// # Inputs
	//
	//   - sessionID: Opaque session identifier.
	//
	// # Outputs
	//
	//   - []datatypes.Turn: Snapshot of the history. Never nil. Mutating it
	//     does not affect the store.
	GetOrCreate(sessionID string) []datatypes.Turn

	// Append adds one turn and enforces the retention bound.
	//
	// # Description
	//
	// Role and content are not validated here; callers only append user
	// questions that passed input validation and assistant answers.
	Append(sessionID string, role datatypes.Role, content string)

	// Clear empties the session's history. The session itself stays in the
	// store.
	Clear(sessionID string)

	// Recent returns up to n most recent turns, oldest first.
	Recent(sessionID string, n int) []datatypes.Turn

	// Len returns the number of sessions in the store.
	Len() int
}
