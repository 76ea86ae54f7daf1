package sync

import (
	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/model"
)

// Work is the result of CalculateWork: the ids pending local push, and the
// server envelopes pending pull, per spec.md's "LocalChange(id)" /
// "ServerChange(id)" work units.
type Work struct {
	LocalChanges  []uuid.UUID
	ServerChanges []model.SignedFile
}

// Total is the total number of pending work units.
func (w Work) Total() int {
	return len(w.LocalChanges) + len(w.ServerChanges)
}
