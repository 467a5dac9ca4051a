// Copyright (c) 2025 ToeiRei
// Deckhand - SSH deployment automation
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// AuditEntry is one row of the append-only audit log. Registry mutations,
// host-key pinning and deployment runs all leave entries here.
type AuditEntry struct {
	ID        int
	Timestamp string
	Action    string
	Details   string
}
