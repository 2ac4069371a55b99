package postgres

import (
	"Linklytics-Backend/internal/domain"
	"Linklytics-Backend/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupStorage starts a throwaway PostgreSQL container and migrates the
// schema into it.
func setupStorage(t *testing.T) *PostgresStorage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("linklytics_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.ShortLink{},
		&domain.ClickAnalytics{},
		&domain.DateClicks{},
		&domain.OSStat{},
		&domain.DeviceStat{},
		&domain.Visitor{},
	))

	return New(db, zap.NewNop())
}

func seedUser(t *testing.T, s *PostgresStorage) *domain.User {
	t.Helper()
	user, err := s.FindOrCreateUser(context.Background(), "google-1", "a@example.com", "Alice", "")
	require.NoError(t, err)
	return user
}

func TestPostgres_UserLifecycle(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	created := seedUser(t, s)
	assert.NotZero(t, created.ID)

	again, err := s.FindOrCreateUser(ctx, "google-1", "new@example.com", "Alice B", "http://avatar")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "new@example.com", again.Email)

	got, err := s.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.Name)

	_, err = s.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestPostgres_LinkLifecycle(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	user := seedUser(t, s)

	link := &domain.ShortLink{Alias: "abc123", LongURL: "https://example.com", UserID: user.ID}
	require.NoError(t, s.SaveLink(ctx, link))
	assert.NotZero(t, link.ID)

	err := s.SaveLink(ctx, &domain.ShortLink{Alias: "abc123", LongURL: "https://other.example", UserID: user.ID})
	assert.ErrorIs(t, err, repository.ErrAliasExists)

	got, err := s.GetLink(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.LongURL)

	_, err = s.GetLink(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrAliasNotFound)

	n, err := s.IncrementClicks(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.IncrementClicks(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrAliasNotFound)
}

func TestPostgres_ListingAndTopics(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	user := seedUser(t, s)

	work := "work"
	home := "home"
	for _, link := range []*domain.ShortLink{
		{Alias: "one", LongURL: "https://a.example", UserID: user.ID, Topic: &work},
		{Alias: "two", LongURL: "https://b.example", UserID: user.ID, Topic: &work},
		{Alias: "three", LongURL: "https://c.example", UserID: user.ID, Topic: &home},
		{Alias: "four", LongURL: "https://d.example", UserID: user.ID},
	} {
		require.NoError(t, s.SaveLink(ctx, link))
	}

	links, total, err := s.ListUserLinks(ctx, user.ID, repository.ListOptions{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, links, 2)

	links, total, err = s.ListUserLinks(ctx, user.ID, repository.ListOptions{Topic: "work", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, links, 2)

	topics, err := s.ListUserTopics(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"work", "home"}, topics)

	byTopic, err := s.GetLinksByTopic(ctx, user.ID, "home")
	require.NoError(t, err)
	assert.Len(t, byTopic, 1)

	_, err = s.GetLinksByTopic(ctx, user.ID, "missing")
	assert.ErrorIs(t, err, repository.ErrTopicNotFound)
}

func TestPostgres_AnalyticsRoundTrip(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	user := seedUser(t, s)

	link := &domain.ShortLink{Alias: "abc123", LongURL: "https://example.com", UserID: user.ID}
	require.NoError(t, s.SaveLink(ctx, link))

	got, err := s.GetAnalytics(ctx, link.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	agg := &domain.ClickAnalytics{LinkID: link.ID}
	agg.Apply(domain.Click{VisitorKey: "u:1", OSName: "Windows", DeviceName: "Desktop", At: now})
	agg.Apply(domain.Click{VisitorKey: "ip:aaaa", OSName: "iOS", DeviceName: "Mobile", At: now})
	require.NoError(t, s.SaveAnalytics(ctx, agg))

	got, err = s.GetAnalytics(ctx, link.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.TotalClicks)
	assert.Equal(t, int64(2), got.UniqueUsers())
	assert.Len(t, got.OSStats, 2)
	assert.Len(t, got.DeviceStats, 2)
	require.Len(t, got.ClicksByDate, 1)
	assert.Equal(t, int64(2), got.ClicksByDate[0].ClickCount)

	// Reload, apply another click and save again: counts keep moving and no
	// duplicate breakdown rows appear.
	got.Apply(domain.Click{VisitorKey: "u:1", OSName: "Windows", DeviceName: "Desktop", At: now})
	require.NoError(t, s.SaveAnalytics(ctx, got))

	again, err := s.GetAnalytics(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.TotalClicks)
	assert.Equal(t, int64(2), again.UniqueUsers())
	assert.Len(t, again.OSStats, 2)
}

func TestPostgres_AnalyticsDatePruning(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	user := seedUser(t, s)

	link := &domain.ShortLink{Alias: "abc123", LongURL: "https://example.com", UserID: user.ID}
	require.NoError(t, s.SaveLink(ctx, link))

	old := time.Now().AddDate(0, 0, -10)
	agg := &domain.ClickAnalytics{LinkID: link.ID}
	agg.Apply(domain.Click{VisitorKey: "u:1", OSName: "Windows", DeviceName: "Desktop", At: old})
	require.NoError(t, s.SaveAnalytics(ctx, agg))

	reloaded, err := s.GetAnalytics(ctx, link.ID)
	require.NoError(t, err)
	reloaded.Apply(domain.Click{VisitorKey: "u:1", OSName: "Windows", DeviceName: "Desktop", At: time.Now()})
	require.NoError(t, s.SaveAnalytics(ctx, reloaded))

	// The pruned bucket is gone from the database, not just the struct.
	final, err := s.GetAnalytics(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, final.ClicksByDate, 1)
	assert.Equal(t, time.Now().UTC().Format(domain.DateLayout), final.ClicksByDate[0].Date)
	assert.Equal(t, int64(2), final.TotalClicks)
}

func TestPostgres_GetAnalyticsForLinks(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	user := seedUser(t, s)

	var ids []int64
	for _, alias := range []string{"one", "two"} {
		link := &domain.ShortLink{Alias: alias, LongURL: "https://example.com/" + alias, UserID: user.ID}
		require.NoError(t, s.SaveLink(ctx, link))
		ids = append(ids, link.ID)

		agg := &domain.ClickAnalytics{LinkID: link.ID}
		agg.Apply(domain.Click{VisitorKey: "u:1", OSName: "Windows", DeviceName: "Desktop", At: time.Now()})
		require.NoError(t, s.SaveAnalytics(ctx, agg))
	}

	aggs, err := s.GetAnalyticsForLinks(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, aggs, 2)

	aggs, err = s.GetAnalyticsForLinks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, aggs)
}
