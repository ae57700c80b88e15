package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// Op names a mutating ledger operation.
type Op string

const (
	OpAppend Op = "append"
	OpDelete Op = "delete"
)

// Mutation is returned by every mutating call. Stale is always true on
// success: any listing the caller holds no longer matches the store and has
// to be fetched again before positions taken from it are reused.
type Mutation struct {
	Op       Op
	Position int // position of the appended or deleted row, -1 if unknown
	Stale    bool
}

// Mutated builds the Mutation for a successful op.
func Mutated(op Op, position int) Mutation {
	return Mutation{Op: op, Position: position, Stale: true}
}

// Ports for outbound adapters.
type (
	EntryAppender interface {
		// Append stores e as the last row.
		Append(ctx context.Context, e core.Entry) (Mutation, error)
	}

	EntryLister interface {
		// ListAll returns every data row in store order. An empty store
		// yields an empty slice.
		ListAll(ctx context.Context) ([]core.Entry, error)
	}

	EntryDeleter interface {
		// DeleteAt removes the row at 0-based display position. Positions
		// after it shift down by one.
		DeleteAt(ctx context.Context, position int) (Mutation, error)
	}

	// Ledger is the full client contract.
	Ledger interface {
		EntryAppender
		EntryLister
		EntryDeleter
	}
)
