package model

import "github.com/google/uuid"

// EventKind distinguishes document activity events.
type EventKind string

const (
	EventRead  EventKind = "Read"
	EventWrite EventKind = "Write"
)

// DocEvent is one entry in the append-only activity log (pkg/activity),
// appended opportunistically by ReadDocument/WriteDocument.
type DocEvent struct {
	ID        uuid.UUID
	Timestamp int64 // milliseconds since the epoch
	Kind      EventKind
}
