package decisioning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store writes evaluated batches to the decision_log table.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a decision log store.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "decision-log").Logger(),
	}
}

// LogEntry is one recorded decision.
type LogEntry struct {
	ID          int64       `json:"id"`
	BatchID     string      `json:"batchId"`
	GUID        string      `json:"guid"`
	Title       string      `json:"title"`
	Indexer     string      `json:"indexer"`
	ItemID      *int64      `json:"itemId,omitempty"`
	Accepted    bool        `json:"accepted"`
	Temporary   bool        `json:"temporary"`
	Rank        int         `json:"rank"`
	Rejections  []Rejection `json:"rejections"`
	EvaluatedAt time.Time   `json:"evaluatedAt"`
}

// Record stores every decision of the batch in one transaction.
func (s *Store) Record(ctx context.Context, batch *Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO decision_log
		(batch_id, guid, title, indexer, item_id, accepted, temporary, rank, rejections, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range batch.Decisions {
		if d == nil || d.Release == nil {
			continue
		}
		rejections := d.Rejections
		if rejections == nil {
			rejections = []Rejection{}
		}
		data, err := json.Marshal(rejections)
		if err != nil {
			return fmt.Errorf("failed to encode rejections: %w", err)
		}
		var itemID sql.NullInt64
		if d.Candidate != nil {
			itemID = sql.NullInt64{Int64: d.Candidate.Item.ID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, batch.ID, d.Release.GUID, d.Release.Title, d.Release.IndexerName,
			itemID, d.Accepted(), d.TemporarilyRejected(), d.Rank, string(data), batch.EvaluatedAt); err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision log: %w", err)
	}
	s.logger.Debug().Str("batchId", batch.ID).Int("decisions", len(batch.Decisions)).Msg("Recorded decision batch")
	return nil
}

// Recent returns the newest log entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, batch_id, guid, title, indexer, item_id, accepted,
		temporary, rank, rejections, evaluated_at FROM decision_log ORDER BY evaluated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Batch returns the entries of a single batch in insertion order.
func (s *Store) Batch(ctx context.Context, batchID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, batch_id, guid, title, indexer, item_id, accepted,
		temporary, rank, rejections, evaluated_at FROM decision_log WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Prune deletes entries evaluated before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decision_log WHERE evaluated_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune decision log: %w", err)
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]LogEntry, error) {
	entries := []LogEntry{}
	for rows.Next() {
		var (
			e      LogEntry
			itemID sql.NullInt64
			data   string
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.GUID, &e.Title, &e.Indexer, &itemID, &e.Accepted,
			&e.Temporary, &e.Rank, &data, &e.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if itemID.Valid {
			e.ItemID = &itemID.Int64
		}
		if err := json.Unmarshal([]byte(data), &e.Rejections); err != nil {
			return nil, fmt.Errorf("failed to decode rejections: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
