package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service tracks indexer health with an escalating backoff ladder.
type Service struct {
	db      *sql.DB
	logger  zerolog.Logger
	now     func() time.Time
	backoff Backoff
}

// NewService creates a new status service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		logger:  logger.With().Str("component", "indexer-status").Logger(),
		now:     time.Now,
		backoff: DefaultBackoff,
	}
}

// SetBackoff replaces the escalation ladder. An empty ladder is ignored.
func (s *Service) SetBackoff(b Backoff) {
	if len(b) > 0 {
		s.backoff = b
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

const selectStatus = `SELECT indexer_id, indexer_name, initial_failure, most_recent_failure,
	escalation_level, disabled_till, last_error FROM indexer_status`

type scanner interface {
	Scan(dest ...any) error
}

func (s *Service) scan(row scanner) (*IndexerStatus, error) {
	var (
		st                                      IndexerStatus
		initialFailure, recentFailure, disabled sql.NullTime
	)
	if err := row.Scan(&st.IndexerID, &st.IndexerName, &initialFailure, &recentFailure,
		&st.EscalationLevel, &disabled, &st.LastError); err != nil {
		return nil, err
	}
	if initialFailure.Valid {
		st.InitialFailure = &initialFailure.Time
	}
	if recentFailure.Valid {
		st.MostRecentFailure = &recentFailure.Time
	}
	if disabled.Valid {
		st.DisabledTill = &disabled.Time
		st.IsDisabled = disabled.Time.After(s.now())
	}
	return &st, nil
}

// GetStatus retrieves the current status for an indexer.
func (s *Service) GetStatus(ctx context.Context, indexerID int64) (*IndexerStatus, error) {
	st, err := s.scan(s.db.QueryRowContext(ctx, selectStatus+` WHERE indexer_id = ?`, indexerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Indexers without a status record are healthy.
			return &IndexerStatus{IndexerID: indexerID}, nil
		}
		return nil, fmt.Errorf("failed to get indexer status: %w", err)
	}
	return st, nil
}

// RecordSuccess records a successful operation and clears any failure state.
func (s *Service) RecordSuccess(ctx context.Context, indexerID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM indexer_status WHERE indexer_id = ?`, indexerID); err != nil {
		return fmt.Errorf("failed to clear failure state: %w", err)
	}

	s.logger.Debug().
		Int64("indexerId", indexerID).
		Msg("Recorded successful indexer operation")

	return nil
}

// RecordFailure records a failed operation with escalating backoff.
func (s *Service) RecordFailure(ctx context.Context, indexerID int64, indexerName string, opError error) (*IndexerStatus, error) {
	now := s.now().UTC()

	current, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return nil, err
	}

	newLevel := min(current.EscalationLevel+1, s.backoff.MaxLevel())
	backoff := s.backoff.For(newLevel)
	disabledTill := now.Add(backoff)

	initialFailure := now
	if current.InitialFailure != nil {
		initialFailure = *current.InitialFailure
	}
	if indexerName == "" {
		indexerName = current.IndexerName
	}
	msg := ""
	if opError != nil {
		msg = opError.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indexer_status (indexer_id, indexer_name, initial_failure, most_recent_failure,
			escalation_level, disabled_till, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(indexer_id) DO UPDATE SET
			indexer_name = excluded.indexer_name,
			initial_failure = excluded.initial_failure,
			most_recent_failure = excluded.most_recent_failure,
			escalation_level = excluded.escalation_level,
			disabled_till = excluded.disabled_till,
			last_error = excluded.last_error`,
		indexerID, indexerName, initialFailure, now, newLevel, disabledTill, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}

	s.logger.Warn().
		Int64("indexerId", indexerID).
		Str("indexer", indexerName).
		Int("escalationLevel", newLevel).
		Dur("backoff", backoff).
		Time("disabledTill", disabledTill).
		Err(opError).
		Msg("Recorded indexer failure, applying backoff")

	return &IndexerStatus{
		IndexerID:         indexerID,
		IndexerName:       indexerName,
		InitialFailure:    &initialFailure,
		MostRecentFailure: &now,
		EscalationLevel:   newLevel,
		DisabledTill:      &disabledTill,
		LastError:         msg,
		IsDisabled:        true,
	}, nil
}

// IsDisabled checks if an indexer is temporarily disabled.
func (s *Service) IsDisabled(ctx context.Context, indexerID int64) (bool, *time.Time, error) {
	st, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return false, nil, err
	}
	if !st.IsDisabled {
		return false, nil, nil
	}
	return true, st.DisabledTill, nil
}

// Blocked returns every indexer still inside its backoff window, keyed by
// indexer ID, with the time the block ends.
func (s *Service) Blocked(ctx context.Context) (map[int64]time.Time, error) {
	statuses, err := s.GetAllStatuses(ctx)
	if err != nil {
		return nil, err
	}
	blocked := make(map[int64]time.Time)
	for _, st := range statuses {
		if st.IsDisabled {
			blocked[st.IndexerID] = *st.DisabledTill
		}
	}
	return blocked, nil
}

// GetHealth returns the health summary for an indexer.
func (s *Service) GetHealth(ctx context.Context, indexerID int64) (*IndexerHealth, error) {
	st, err := s.GetStatus(ctx, indexerID)
	if err != nil {
		return nil, err
	}
	return s.health(st), nil
}

func (s *Service) health(st *IndexerStatus) *IndexerHealth {
	h := &IndexerHealth{
		IndexerID:   st.IndexerID,
		IndexerName: st.IndexerName,
		LastFailure: st.MostRecentFailure,
	}

	switch {
	case st.IsDisabled:
		h.Status = HealthStatusDisabled
		remaining := st.DisabledTill.Sub(s.now())
		h.DisabledFor = &Duration{remaining}
		h.Message = fmt.Sprintf("Disabled for %s due to repeated failures", remaining.Round(time.Minute))
	case st.EscalationLevel > 0:
		h.Status = HealthStatusWarning
		h.Message = fmt.Sprintf("Experienced %d recent failure(s)", st.EscalationLevel)
	default:
		h.Status = HealthStatusHealthy
		h.Message = "Operating normally"
	}
	return h
}

// GetAllHealth returns the health of every tracked indexer.
func (s *Service) GetAllHealth(ctx context.Context) ([]*IndexerHealth, error) {
	statuses, err := s.GetAllStatuses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*IndexerHealth, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, s.health(st))
	}
	return out, nil
}

// GetAllStatuses returns status for all indexers with status records.
func (s *Service) GetAllStatuses(ctx context.Context) ([]*IndexerStatus, error) {
	rows, err := s.db.QueryContext(ctx, selectStatus+` ORDER BY indexer_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexer statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*IndexerStatus
	for rows.Next() {
		st, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indexer status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// GetStats returns statistics about indexer statuses.
func (s *Service) GetStats(ctx context.Context) (*StatusStats, error) {
	statuses, err := s.GetAllStatuses(ctx)
	if err != nil {
		return nil, err
	}
	stats := &StatusStats{TrackedIndexers: len(statuses)}
	for _, st := range statuses {
		if st.IsDisabled {
			stats.DisabledIndexers++
		} else if st.EscalationLevel > 0 {
			stats.WarningIndexers++
		}
	}
	return stats, nil
}

// ExpireStale drops status records whose backoff ended more than grace ago,
// so an indexer that recovered without a recorded success starts fresh.
func (s *Service) ExpireStale(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-grace)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM indexer_status WHERE disabled_till IS NOT NULL AND disabled_till < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire indexer statuses: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("count", n).Msg("Expired stale indexer backoffs")
	}
	return n, nil
}
