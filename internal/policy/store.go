package policy

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/decisionengine/internal/database"
)

// Section keys of the policy_sections table.
const (
	SectionSettings      = "settings"
	SectionProfiles      = "profiles"
	SectionDefinitions   = "definitions"
	SectionCustomFormats = "customFormats"
	SectionRestrictions  = "restrictions"
	SectionDelayProfiles = "delayProfiles"
	SectionBlocklist     = "blocklist"
	SectionItems         = "items"
	SectionExisting      = "existing"
)

// Revision records one import of a policy.
type Revision struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	Checksum   string    `json:"checksum"`
	ImportedAt time.Time `json:"importedAt"`
}

// Store persists the active policy in SQLite, one row per section.
type Store struct {
	db     *database.DB
	logger zerolog.Logger
}

// NewStore creates a policy store.
func NewStore(db *database.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "policy-store").Logger(),
	}
}

func sections(doc *Document) map[string]any {
	return map[string]any{
		SectionSettings:      doc.Settings,
		SectionProfiles:      doc.Profiles,
		SectionDefinitions:   doc.Definitions,
		SectionCustomFormats: doc.CustomFormats,
		SectionRestrictions:  doc.Restrictions,
		SectionDelayProfiles: doc.DelayProfiles,
		SectionBlocklist:     doc.Blocklist,
		SectionItems:         doc.Items,
		SectionExisting:      doc.Existing,
	}
}

func sectionTargets(doc *Document) map[string]any {
	return map[string]any{
		SectionSettings:      &doc.Settings,
		SectionProfiles:      &doc.Profiles,
		SectionDefinitions:   &doc.Definitions,
		SectionCustomFormats: &doc.CustomFormats,
		SectionRestrictions:  &doc.Restrictions,
		SectionDelayProfiles: &doc.DelayProfiles,
		SectionBlocklist:     &doc.Blocklist,
		SectionItems:         &doc.Items,
		SectionExisting:      &doc.Existing,
	}
}

// Checksum returns the sha256 of the document's canonical JSON encoding.
func Checksum(doc *Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode policy: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Import validates doc and replaces the stored policy with it. An invalid
// document leaves the stored policy untouched.
func (s *Store) Import(ctx context.Context, doc *Document, source string) (*Revision, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	checksum, err := Checksum(doc)
	if err != nil {
		return nil, err
	}

	rev := &Revision{Source: source, Checksum: checksum, ImportedAt: time.Now().UTC()}
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for name, section := range sections(doc) {
			data, err := json.Marshal(section)
			if err != nil {
				return fmt.Errorf("failed to encode section %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO policy_sections (name, data, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
				name, string(data), rev.ImportedAt); err != nil {
				return fmt.Errorf("failed to store section %s: %w", name, err)
			}
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO policy_revisions (source, checksum, imported_at) VALUES (?, ?, ?)`,
			source, checksum, rev.ImportedAt)
		if err != nil {
			return fmt.Errorf("failed to record revision: %w", err)
		}
		rev.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("revision", rev.ID).
		Str("source", source).
		Str("checksum", checksum).
		Int("profiles", len(doc.Profiles)).
		Int("items", len(doc.Items)).
		Msg("Imported policy")
	return rev, nil
}

// Load reads the stored policy. It returns ErrNoPolicy before the first import.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	return s.loadSections(ctx, s.db.Conn())
}

// LoadCurrent reads the stored policy together with the revision that
// produced it. Both are read in one transaction, so a concurrent import
// cannot pair a document with another revision.
func (s *Store) LoadCurrent(ctx context.Context) (*Revision, *Document, error) {
	var (
		rev *Revision
		doc *Document
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		revs, err := latestRevisions(ctx, tx, 1)
		if err != nil {
			return err
		}
		if len(revs) == 0 {
			return ErrNoPolicy
		}
		rev = revs[0]
		doc, err = s.loadSections(ctx, tx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return rev, doc, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) loadSections(ctx context.Context, q querier) (*Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, data FROM policy_sections`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy: %w", err)
	}
	defer rows.Close()

	doc := &Document{}
	targets := sectionTargets(doc)
	found := 0
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("failed to scan policy section: %w", err)
		}
		target, ok := targets[name]
		if !ok {
			s.logger.Warn().Str("section", name).Msg("Ignoring unknown policy section")
			continue
		}
		if err := json.Unmarshal([]byte(data), target); err != nil {
			return nil, fmt.Errorf("failed to decode section %s: %w", name, err)
		}
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, ErrNoPolicy
	}
	return doc, nil
}

// Current returns the latest revision, or ErrNoPolicy.
func (s *Store) Current(ctx context.Context) (*Revision, error) {
	revs, err := s.Revisions(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, ErrNoPolicy
	}
	return revs[0], nil
}

// Revisions returns up to limit revisions, newest first.
func (s *Store) Revisions(ctx context.Context, limit int) ([]*Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	return latestRevisions(ctx, s.db.Conn(), limit)
}

func latestRevisions(ctx context.Context, q querier, limit int) ([]*Revision, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, source, checksum, imported_at FROM policy_revisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	var revs []*Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.Source, &r.Checksum, &r.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revs = append(revs, &r)
	}
	return revs, rows.Err()
}
