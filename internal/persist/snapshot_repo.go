package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Digest fingerprints an encoded snapshot.
func Digest(body []byte) uint64 {
	return xxhash.Sum64(body)
}

type SnapshotRow struct {
	RunID   uuid.UUID
	Object  string
	Digest  uint64
	Body    []byte
	SavedAt time.Time
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save upserts one object's snapshot. A row whose digest already matches
// is left alone; the return value reports whether anything was written.
func (r *SnapshotRepo) Save(ctx context.Context, runID uuid.UUID, object string, body []byte, digest uint64) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO behavior_snapshots (run_id, object_name, digest, body, saved_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (run_id, object_name) DO UPDATE
		 SET digest = EXCLUDED.digest, body = EXCLUDED.body, saved_at = EXCLUDED.saved_at
		 WHERE behavior_snapshots.digest <> EXCLUDED.digest`,
		runID, object, int64(digest), string(body),
	)
	if err != nil {
		return false, fmt.Errorf("save snapshot %s: %w", object, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SnapshotRepo) Load(ctx context.Context, runID uuid.UUID, object string) (*SnapshotRow, error) {
	var (
		digest int64
		body   string
		row    = SnapshotRow{RunID: runID, Object: object}
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT digest, body, saved_at FROM behavior_snapshots
		 WHERE run_id = $1 AND object_name = $2`, runID, object,
	).Scan(&digest, &body, &row.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in run %s", ErrSnapshotNotFound, object, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", object, err)
	}
	row.Digest = uint64(digest)
	row.Body = []byte(body)
	return &row, nil
}

// Objects lists the object names saved under runID.
func (r *SnapshotRepo) Objects(ctx context.Context, runID uuid.UUID) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT object_name FROM behavior_snapshots WHERE run_id = $1 ORDER BY object_name`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LatestRun returns the run with the most recent save.
func (r *SnapshotRepo) LatestRun(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.Pool.QueryRow(ctx,
		`SELECT run_id FROM behavior_snapshots ORDER BY saved_at DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrSnapshotNotFound
	}
	return id, err
}
