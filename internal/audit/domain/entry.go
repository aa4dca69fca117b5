// Package domain holds the audit log entry.
package domain

import "time"

// Entry is one security-relevant event: registration, login steps, token
// refresh, logout, revocation. Detail is free-form and stored as JSONB.
type Entry struct {
	ID        string
	ActorID   string
	Action    string
	Resource  string
	Detail    map[string]any
	CreatedAt time.Time
}
