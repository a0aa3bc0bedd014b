package model

import (
	"encoding/json"
	"time"
)

// AuditEntry records an administrative change.
type AuditEntry struct {
	ID        string
	ActorID   string
	Action    string
	Entity    string
	Before    json.RawMessage
	After     json.RawMessage
	CreatedAt time.Time
}
