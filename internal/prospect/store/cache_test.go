package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func sampleExtract() models.WebsiteExtract {
	ex := models.EmptyWebsiteExtract()
	ex.Emails = []string{"anna.weber@adlon.de"}
	ex.PropertyInfo.StarRating = 5
	ex.TeamMembers = []models.CandidateName{{Name: "Anna Weber", Title: "General Manager", Source: models.SourceWebsite}}
	ex.ContactPageURL = "https://adlon.de/kontakt"
	return ex
}

func TestExtractCache_RoundTripWithTTL(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewExtractCache(client, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	_, ok := cache.Get(ctx, "adlon.de")
	assert.False(t, ok)

	cache.Set(ctx, "adlon.de", sampleExtract())
	assert.True(t, mr.Exists("extract:adlon.de"))
	assert.Equal(t, time.Hour, mr.TTL("extract:adlon.de"))

	got, ok := cache.Get(ctx, "adlon.de")
	require.True(t, ok)
	assert.Equal(t, sampleExtract(), got)

	mr.FastForward(2 * time.Hour)
	_, ok = cache.Get(ctx, "adlon.de")
	assert.False(t, ok, "entry expires after the TTL")
}

func TestExtractCache_DefaultTTL(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewExtractCache(client, 0, logger.NewTestLogger(t))

	cache.Set(context.Background(), "adlon.de", sampleExtract())
	assert.Equal(t, DefaultExtractTTL, mr.TTL("extract:adlon.de"))
}

func TestExtractCache_CorruptEntryIsAMiss(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewExtractCache(client, time.Hour, logger.NewTestLogger(t))
	require.NoError(t, mr.Set("extract:adlon.de", "{not json"))

	_, ok := cache.Get(context.Background(), "adlon.de")
	assert.False(t, ok)
}

func TestExtractCache_Invalidate(t *testing.T) {
	mr, client := setupMiniredis(t)
	cache := NewExtractCache(client, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	cache.Set(ctx, "adlon.de", sampleExtract())
	require.NoError(t, cache.Invalidate(ctx, "adlon.de"))
	assert.False(t, mr.Exists("extract:adlon.de"))
}

func TestExtractCache_RedisErrorsDegradeToMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewExtractCache(client, time.Hour, logger.NewTestLogger(t))
	ctx := context.Background()

	mock.ExpectGet("extract:adlon.de").SetErr(errors.New("connection refused"))
	_, ok := cache.Get(ctx, "adlon.de")
	assert.False(t, ok)

	mock.ExpectGet("extract:adlon.de").RedisNil()
	_, ok = cache.Get(ctx, "adlon.de")
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}
