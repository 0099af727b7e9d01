package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EventKind names a lifecycle transition.
type EventKind string

const (
	KindSpawned EventKind = "spawned"
	KindCaught  EventKind = "caught"
)

// EventRow is one journal entry.
type EventRow struct {
	Name  string
	Kind  EventKind
	X     float64
	Y     float64
	Theta float64
}

// EventWriter is what the journal system needs from storage.
type EventWriter interface {
	InsertEvents(ctx context.Context, rows []EventRow) error
}

type EventRepo struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// InsertEvents writes a batch of journal entries in a single transaction.
func (r *EventRepo) InsertEvents(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range rows {
		batch.Queue(
			`INSERT INTO turtle_events (name, kind, x, y, theta) VALUES ($1, $2, $3, $4, $5)`,
			e.Name, string(e.Kind), e.X, e.Y, e.Theta,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return tx.Commit(ctx)
}

// History returns the journal of one entity, oldest first.
func (r *EventRepo) History(ctx context.Context, name string) ([]EventRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, kind, x, y, theta FROM turtle_events WHERE name = $1 ORDER BY id`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var kind string
		if err := rows.Scan(&e.Name, &kind, &e.X, &e.Y, &e.Theta); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Kind = EventKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
