package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is what happened to a modifier.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// JournalEntry is one modifier add or remove applied to a player.
type JournalEntry struct {
	At        time.Time
	PlayerID  string
	Talisman  string
	Level     int
	Modifier  uuid.UUID
	Action    Action
	Attribute string
	Amount    float64
	Operation string
	World     string
	Seq       int64 // orders entries recorded in the same millisecond
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// WriteBatch writes entries in a single transaction.
func (r *JournalRepo) WriteBatch(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(
		`INSERT INTO effect_journal (recorded_at, seq, player_id, talisman, level, modifier, action, attribute, amount, operation, world)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("journal prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.At.UTC().UnixMilli(), e.Seq, e.PlayerID, e.Talisman, e.Level, e.Modifier.String(),
			string(e.Action), e.Attribute, e.Amount, e.Operation, e.World,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit()
}

// ListByPlayer returns the most recent entries for a player, oldest first.
func (r *JournalRepo) ListByPlayer(ctx context.Context, playerID string, limit int) ([]JournalEntry, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(
		`SELECT recorded_at, seq, player_id, talisman, level, modifier, action, attribute, amount, operation, world
		 FROM effect_journal WHERE player_id = ?
		 ORDER BY recorded_at DESC, seq DESC LIMIT ?`), playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e      JournalEntry
			millis int64
			mod    string
			action string
		)
		if err := rows.Scan(&millis, &e.Seq, &e.PlayerID, &e.Talisman, &e.Level, &mod, &action,
			&e.Attribute, &e.Amount, &e.Operation, &e.World); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.At = time.UnixMilli(millis).UTC()
		e.Action = Action(action)
		if e.Modifier, err = uuid.Parse(mod); err != nil {
			return nil, fmt.Errorf("journal modifier %q: %w", mod, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal rows: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of journal rows.
func (r *JournalRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM effect_journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
