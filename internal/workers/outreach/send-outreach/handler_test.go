package sendoutreach

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospect-workers/internal/common/aws"
	commonerrors "prospect-workers/internal/common/errors"
	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
	"prospect-workers/internal/prospect/store"
)

type fakeMailer struct {
	id   string
	err  error
	sent []aws.Email
}

func (f *fakeMailer) Send(_ context.Context, e aws.Email) (string, error) {
	f.sent = append(f.sent, e)
	return f.id, f.err
}

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.Enabled = true
	cfg.From = "Lena Hoffmann <lena@directbook.io>"
	cfg.ReplyTo = "sales@directbook.io"
	return cfg
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func draft() models.OutreachMessage {
	return models.OutreachMessage{
		ProspectID: "p-1",
		To:         "anna.weber@adlon.de",
		Subject:    "DirectBook for Hotel Adlon",
		Body:       "Dear Anna,\n\n...",
		Generator:  "template",
	}
}

func TestParseInput(t *testing.T) {
	input, stdErr := parseInput(`{"outreach":{"prospectId":"p-1","to":"anna.weber@adlon.de","subject":"Hi","body":"Hello"}}`)
	require.Nil(t, stdErr)
	assert.Equal(t, "p-1", input.ProspectID, "prospect id falls back to the draft's")

	tests := []string{
		`{}`,
		`{"outreach":{"to":"anna.weber@adlon.de","subject":"","body":"Hello"}}`,
		`{"outreach":{"to":"not an email","subject":"Hi","body":"Hello"}}`,
	}
	for _, vars := range tests {
		_, stdErr := parseInput(vars)
		require.NotNil(t, stdErr, vars)
		assert.Equal(t, commonerrors.ErrCodeInvalidInput, stdErr.Code)
	}
}

func TestExecute_SendsAndRecords(t *testing.T) {
	db, mock := setupMockDB(t)
	mailer := &fakeMailer{id: "ses-0001"}
	h := NewHandler(createTestConfig(), mailer, store.NewProspectStore(db, logger.NewTestLogger(t)), logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	sentAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO outreach_messages`).
		WithArgs("ses-0001", "p-1", "anna.weber@adlon.de", "DirectBook for Hotel Adlon", "ses", sentAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE prospects SET status`).
		WithArgs("p-1", models.StatusContacted, sentAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := h.Execute(context.Background(), &Input{ProspectID: "p-1", Outreach: draft()})
	require.NoError(t, err)

	assert.True(t, out.Sent)
	assert.True(t, out.Recorded)
	assert.Equal(t, "ses-0001", out.MessageID)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Lena Hoffmann <lena@directbook.io>", mailer.sent[0].From)
	assert.Equal(t, "sales@directbook.io", mailer.sent[0].ReplyTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_GeneratesMessageIDWhenProviderReturnsNone(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeMailer{}, nil, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{ProspectID: "p-1", Outreach: draft()})
	require.NoError(t, err)
	_, parseErr := uuid.Parse(out.MessageID)
	assert.NoError(t, parseErr)
	assert.False(t, out.Recorded)
}

func TestExecute_RecordFailureStillCompletes(t *testing.T) {
	db, mock := setupMockDB(t)
	h := NewHandler(createTestConfig(), &fakeMailer{id: "ses-0002"}, store.NewProspectStore(db, logger.NewNoOpLogger()), logger.NewNoOpLogger())

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	out, err := h.Execute(context.Background(), &Input{ProspectID: "p-1", Outreach: draft()})
	require.NoError(t, err)
	assert.True(t, out.Sent)
	assert.False(t, out.Recorded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_Disabled(t *testing.T) {
	mailer := &fakeMailer{id: "never"}
	cfg := createTestConfig()
	cfg.Enabled = false
	h := NewHandler(cfg, mailer, nil, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{ProspectID: "p-1", Outreach: draft()})
	require.NoError(t, err)
	assert.False(t, out.Sent)
	assert.Equal(t, "delivery_disabled", out.Reason)
	assert.Empty(t, mailer.sent)
}

func TestExecute_SendFailure(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakeMailer{err: errors.New("MessageRejected")}, nil, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{ProspectID: "p-1", Outreach: draft()})
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeOutreachSendFailed, mapError(err).Code)
	assert.Equal(t, commonerrors.ErrCodeTimeout, mapError(context.DeadlineExceeded).Code)
}
