// Package store persists enrichment outcomes: Postgres is the system of record,
// Redis caches crawled website extracts and Elasticsearch indexes prospects for search.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
)

var (
	ErrProspectNotFound = errors.New("PROSPECT_NOT_FOUND")
	ErrDatabaseQuery    = errors.New("DATABASE_QUERY_FAILED")
)

const prospectColumns = `id, property_name, COALESCE(city, ''), COALESCE(country, ''), COALESCE(website, ''),
	COALESCE(email, ''), COALESCE(email_source, ''), COALESCE(phone, ''), COALESCE(contact_name, ''),
	COALESCE(contact_role, ''), COALESCE(linkedin_url, ''), COALESCE(instagram_url, ''),
	COALESCE(google_place_id, ''), COALESCE(star_rating, 0), COALESCE(room_count, 0),
	COALESCE(chain_brand, ''), COALESCE(job_title, ''), COALESCE(score, 0), COALESCE(tier, ''),
	COALESCE(status, ''), updated_at`

type ProspectStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewProspectStore(db *sql.DB, log logger.Logger) *ProspectStore {
	return &ProspectStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "prospect-store"}),
		now:    time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProspect(row rowScanner) (*models.Prospect, error) {
	var p models.Prospect
	var updatedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.PropertyName, &p.City, &p.Country, &p.Website,
		&p.Email, &p.EmailSource, &p.Phone, &p.ContactName,
		&p.ContactRole, &p.LinkedInURL, &p.InstagramURL,
		&p.GooglePlaceID, &p.StarRating, &p.RoomCount,
		&p.ChainBrand, &p.JobTitle, &p.Score, &p.Tier,
		&p.Status, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}

func (s *ProspectStore) Get(ctx context.Context, id string) (*models.Prospect, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE id = $1`, id)
	p, err := scanProspect(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProspectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseQuery, err)
	}
	return p, nil
}

// ListPending returns prospects that have never been enriched, oldest first.
func (s *ProspectStore) ListPending(ctx context.Context, limit int) ([]models.Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseQuery, err)
	}
	defer rows.Close()

	var out []models.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseQuery, err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseQuery, err)
	}
	return out, nil
}

// SaveEnrichment updates the prospect row and appends the run and score snapshot
// in one transaction.
func (s *ProspectStore) SaveEnrichment(ctx context.Context, ep models.EnrichedProspect) error {
	p := ep.Prospect
	now := s.now().UTC()

	extractJSON, err := json.Marshal(ep.Website)
	if err != nil {
		return fmt.Errorf("marshal website extract: %w", err)
	}
	breakdownJSON, err := json.Marshal(ep.Score.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal score breakdown: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDatabaseQuery, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE prospects SET
		website = $2, email = $3, email_source = $4, phone = $5, contact_name = $6, contact_role = $7,
		linkedin_url = $8, instagram_url = $9, google_place_id = $10, star_rating = $11, room_count = $12,
		chain_brand = $13, score = $14, tier = $15, status = $16, updated_at = $17
		WHERE id = $1`,
		p.ID, p.Website, nullable(p.Email), p.EmailSource, p.Phone, p.ContactName, p.ContactRole,
		p.LinkedInURL, p.InstagramURL, p.GooglePlaceID, p.StarRating, p.RoomCount,
		p.ChainBrand, ep.Score.Total, ep.Tier, models.StatusEnriched, now,
	)
	if err != nil {
		return fmt.Errorf("%w: update prospect: %v", ErrDatabaseQuery, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrProspectNotFound, p.ID)
	}

	var validated interface{}
	if ep.Enrichment.ValidatedEmail != nil {
		validated = *ep.Enrichment.ValidatedEmail
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO enrichment_runs
		(id, prospect_id, contact_name, contact_role, validated_email, email_source, confidence,
		 strategy, fallback_method, all_emails, sources, website_extract, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ep.RunID, p.ID, ep.Enrichment.ContactName, ep.Enrichment.ContactRole, validated,
		string(ep.Enrichment.EmailPatternSource), string(ep.Enrichment.ConfidenceScore),
		ep.Enrichment.Strategy, ep.Enrichment.FallbackMethod,
		pq.Array(ep.Enrichment.AllEmailsFound), pq.Array(ep.Sources), extractJSON, now,
	)
	if err != nil {
		return fmt.Errorf("%w: insert enrichment run: %v", ErrDatabaseQuery, err)
	}

	if err := insertScore(ctx, tx, p.ID, ep.Score.Total, breakdownJSON, ep.Tier, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabaseQuery, err)
	}

	s.logger.Debug("enrichment persisted", map[string]interface{}{
		"prospectId": p.ID,
		"runId":      ep.RunID,
		"score":      ep.Score.Total,
	})
	return nil
}

// SaveScore stores a recomputed score as a new snapshot and updates the prospect row.
func (s *ProspectStore) SaveScore(ctx context.Context, prospectID string, score models.ScoreBreakdown, tier string) error {
	breakdownJSON, err := json.Marshal(score.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal score breakdown: %w", err)
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDatabaseQuery, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE prospects SET score = $2, tier = $3, updated_at = $4 WHERE id = $1`,
		prospectID, score.Total, tier, now)
	if err != nil {
		return fmt.Errorf("%w: update score: %v", ErrDatabaseQuery, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrProspectNotFound, prospectID)
	}
	if err := insertScore(ctx, tx, prospectID, score.Total, breakdownJSON, tier, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabaseQuery, err)
	}
	return nil
}

func insertScore(ctx context.Context, tx *sql.Tx, prospectID string, total int, breakdown []byte, tier string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO score_snapshots (prospect_id, total, breakdown, tier, created_at) VALUES ($1, $2, $3, $4, $5)`,
		prospectID, total, breakdown, tier, at)
	if err != nil {
		return fmt.Errorf("%w: insert score snapshot: %v", ErrDatabaseQuery, err)
	}
	return nil
}

// RecordOutreach logs a sent message and marks the prospect as contacted.
func (s *ProspectStore) RecordOutreach(ctx context.Context, rec models.OutreachRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDatabaseQuery, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outreach_messages (message_id, prospect_id, recipient, subject, provider, sent_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.MessageID, rec.ProspectID, rec.To, rec.Subject, rec.Provider, rec.SentAt)
	if err != nil {
		return fmt.Errorf("%w: insert outreach: %v", ErrDatabaseQuery, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE prospects SET status = $2, updated_at = $3 WHERE id = $1`,
		rec.ProspectID, models.StatusContacted, rec.SentAt)
	if err != nil {
		return fmt.Errorf("%w: mark contacted: %v", ErrDatabaseQuery, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabaseQuery, err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
