package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// JournalEntry records one attach, detach, missing-template or handler
// failure notification.
type JournalEntry struct {
	Kind     string // "attached", "detached", "missing", "failed"
	Owner    string
	Template string
	Detail   string
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// WriteBatch writes a batch of entries in a single transaction.
func (r *JournalRepo) WriteBatch(ctx context.Context, runID uuid.UUID, entries []JournalEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO behavior_journal (run_id, kind, owner_name, template, detail)
			 VALUES ($1, $2, $3, $4, $5)`,
			runID, e.Kind, e.Owner, e.Template, e.Detail,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}
