// Package store persists the conversation transcript. The in-memory
// session history stays canonical; the store is a durable, append-only
// log surviving restarts and re-initializations.
package store

import (
	"context"

	"github.com/mkraev/switchboard/internal/domain"
)

// Repository defines the transcript persistence interface.
type Repository interface {
	// AppendTurns appends the turn records of one committed dispatch.
	AppendTurns(ctx context.Context, turns []domain.TurnRecord) error

	// ListTurns returns all turns of a session epoch in sequence order.
	ListTurns(ctx context.Context, epoch int64) ([]domain.TurnRecord, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
