package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
)

var prospectRowColumns = []string{
	"id", "property_name", "city", "country", "website", "email", "email_source", "phone",
	"contact_name", "contact_role", "linkedin_url", "instagram_url", "google_place_id",
	"star_rating", "room_count", "chain_brand", "job_title", "score", "tier", "status", "updated_at",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func createTestStore(t *testing.T, db *sql.DB) *ProspectStore {
	s := NewProspectStore(db, logger.NewTestLogger(t))
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func hotelRow(rows *sqlmock.Rows, id, name string) *sqlmock.Rows {
	return rows.AddRow(id, name, "Berlin", "DE", "https://adlon.de", "", "", "+49 30 22610",
		"", "", "", "", "", 5, 382, "Kempinski", "Revenue Manager", 0, "", models.StatusPending,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
}

func TestProspectStore_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)

	mock.ExpectQuery(`SELECT .+ FROM prospects WHERE id = \$1`).
		WithArgs("p-1").
		WillReturnRows(hotelRow(sqlmock.NewRows(prospectRowColumns), "p-1", "Hotel Adlon"))

	p, err := store.Get(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Hotel Adlon", p.PropertyName)
	assert.Equal(t, 5, p.StarRating)
	assert.Equal(t, 382, p.RoomCount)
	assert.Equal(t, "Revenue Manager", p.JobTitle)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProspectStore_Get_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)

	mock.ExpectQuery(`SELECT .+ FROM prospects WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrProspectNotFound))
}

func TestProspectStore_Get_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)

	mock.ExpectQuery(`SELECT .+ FROM prospects`).WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "p-1")
	assert.True(t, errors.Is(err, ErrDatabaseQuery))
}

func TestProspectStore_ListPending(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)

	rows := sqlmock.NewRows(prospectRowColumns)
	hotelRow(rows, "p-1", "Hotel Adlon")
	hotelRow(rows, "p-2", "Hotel de Rome")
	mock.ExpectQuery(`SELECT .+ FROM prospects WHERE status = \$1 ORDER BY created_at ASC LIMIT \$2`).
		WithArgs(models.StatusPending, 25).
		WillReturnRows(rows)

	got, err := store.ListPending(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p-2", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func enrichedFixture() models.EnrichedProspect {
	email := "anna.weber@adlon.de"
	return models.EnrichedProspect{
		RunID: "run-1",
		Prospect: models.Prospect{
			ID:           "p-1",
			PropertyName: "Hotel Adlon",
			Website:      "https://adlon.de",
			Email:        email,
			EmailSource:  string(models.EmailSourceWebsiteScrape),
			ContactName:  "Anna Weber",
			ContactRole:  "General Manager",
			StarRating:   5,
		},
		Enrichment: models.EnrichmentResult{
			ContactName:        "Anna Weber",
			ContactRole:        "General Manager",
			ValidatedEmail:     &email,
			EmailPatternSource: models.EmailSourceWebsiteScrape,
			ConfidenceScore:    models.ConfidenceHigh,
			AllEmailsFound:     []string{email, "info@adlon.de"},
			Strategy:           "exact_match",
		},
		Website: models.EmptyWebsiteExtract(),
		Score:   models.ScoreBreakdown{Total: 45, Breakdown: map[string]int{"personal_email": 15, "named_contact": 15, "five_star": 15}},
		Tier:    "warm",
		Sources: []string{"website", "search"},
	}
}

func TestProspectStore_SaveEnrichment(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)
	ep := enrichedFixture()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prospects SET .+ WHERE id = \$1`).
		WithArgs("p-1", "https://adlon.de", "anna.weber@adlon.de", "website_scrape", "", "Anna Weber", "General Manager",
			"", "", "", 5, 0, "", 45, "warm", models.StatusEnriched, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO enrichment_runs`).
		WithArgs("run-1", "p-1", "Anna Weber", "General Manager", "anna.weber@adlon.de", "website_scrape", "high",
			"exact_match", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO score_snapshots`).
		WithArgs("p-1", 45, sqlmock.AnyArg(), "warm", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveEnrichment(context.Background(), ep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProspectStore_SaveEnrichment_RollsBackOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prospects SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO enrichment_runs`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.SaveEnrichment(context.Background(), enrichedFixture())
	assert.True(t, errors.Is(err, ErrDatabaseQuery))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProspectStore_SaveEnrichment_UnknownProspect(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prospects SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.SaveEnrichment(context.Background(), enrichedFixture())
	assert.True(t, errors.Is(err, ErrProspectNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProspectStore_SaveScore(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prospects SET score = \$2, tier = \$3, updated_at = \$4 WHERE id = \$1`).
		WithArgs("p-1", 72, "hot", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO score_snapshots`).
		WithArgs("p-1", 72, []byte(`{"linkedin":10}`), "hot", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.SaveScore(context.Background(), "p-1", models.ScoreBreakdown{Total: 72, Breakdown: map[string]int{"linkedin": 10}}, "hot")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProspectStore_RecordOutreach(t *testing.T) {
	db, mock := setupMockDB(t)
	store := createTestStore(t, db)
	sentAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO outreach_messages`).
		WithArgs("msg-1", "p-1", "anna.weber@adlon.de", "Guest Wi-Fi at Hotel Adlon", "ses", sentAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE prospects SET status = \$2`).
		WithArgs("p-1", models.StatusContacted, sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RecordOutreach(context.Background(), models.OutreachRecord{
		MessageID:  "msg-1",
		ProspectID: "p-1",
		To:         "anna.weber@adlon.de",
		Subject:    "Guest Wi-Fi at Hotel Adlon",
		Provider:   "ses",
		SentAt:     sentAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
