package postgres

import (
	"Linklytics-Backend/internal/domain"
	"Linklytics-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresStorage implements the Storage interface for PostgreSQL.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a new PostgreSQL storage instance.
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- User Methods ---

// FindOrCreateUser looks a user up by Google id, creating the record on first
// login and refreshing profile fields and last-login time on every call.
func (s *PostgresStorage) FindOrCreateUser(ctx context.Context, googleID, email, name, avatarURL string) (*domain.User, error) {
	now := time.Now()

	var user domain.User
	err := s.db.WithContext(ctx).Where("google_id = ?", googleID).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{
			"email":         email,
			"name":          name,
			"avatar_url":    avatarURL,
			"last_login_at": now,
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update user on login: %w", err)
		}
		user.LastLoginAt = &now
		return &user, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Error("failed to find user by google_id", zap.Error(err))
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user = domain.User{
		GoogleID:    googleID,
		Email:       email,
		Name:        name,
		AvatarURL:   avatarURL,
		LastLoginAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.log.Error("failed to create user", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("created new user", zap.Int64("user_id", user.ID), zap.String("email", email))
	return &user, nil
}

// GetUserByID returns the user with the given id.
func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// --- Link Methods ---

// SaveLink persists a new short link. The existence pre-check catches the
// common case; the unique index on alias is the backstop for the race where
// two requests pass the check concurrently.
func (s *PostgresStorage) SaveLink(ctx context.Context, link *domain.ShortLink) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).Where("alias = ?", link.Alias).Count(&count).Error; err != nil {
		s.log.Error("failed to check alias existence", zap.String("alias", link.Alias), zap.Error(err))
		return fmt.Errorf("failed to check alias: %w", err)
	}
	if count > 0 {
		return repository.ErrAliasExists
	}

	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrAliasExists
		}
		s.log.Error("failed to save link", zap.String("alias", link.Alias), zap.Error(err))
		return fmt.Errorf("failed to save link: %w", err)
	}

	s.log.Info("saved new link", zap.String("alias", link.Alias), zap.Int64("user_id", link.UserID))
	return nil
}

// GetLink returns the link for an alias, treating expired links as absent.
func (s *PostgresStorage) GetLink(ctx context.Context, alias string) (*domain.ShortLink, error) {
	var link domain.ShortLink

	err := s.db.WithContext(ctx).Where("alias = ?", alias).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrAliasNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("alias", alias), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if link.Expired(time.Now()) {
		return nil, repository.ErrAliasNotFound
	}

	return &link, nil
}

// AliasExists reports whether an alias is taken.
func (s *PostgresStorage) AliasExists(ctx context.Context, alias string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).Where("alias = ?", alias).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check alias: %w", err)
	}
	return count > 0, nil
}

// IncrementClicks bumps the click counter in SQL, so concurrent redirects
// never lose an increment.
func (s *PostgresStorage) IncrementClicks(ctx context.Context, alias string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("alias = ?", alias).
		UpdateColumn("clicks", gorm.Expr("clicks + 1"))
	if result.Error != nil {
		s.log.Error("failed to increment clicks", zap.String("alias", alias), zap.Error(result.Error))
		return 0, fmt.Errorf("failed to increment clicks: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, repository.ErrAliasNotFound
	}

	var clicks int64
	if err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("alias = ?", alias).
		Pluck("clicks", &clicks).Error; err != nil {
		return 0, fmt.Errorf("failed to read click count: %w", err)
	}
	return clicks, nil
}

// ListUserLinks returns one page of a user's links plus the unpaged total.
func (s *PostgresStorage) ListUserLinks(ctx context.Context, userID int64, opts repository.ListOptions) ([]*domain.ShortLink, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.ShortLink{}).Where("user_id = ?", userID)
	if opts.Topic != "" {
		query = query.Where("topic = ?", opts.Topic)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	order := "created_at DESC"
	if opts.SortAsc {
		order = "created_at ASC"
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 20
	}

	var links []*domain.ShortLink
	err := query.Order(order).Offset((page - 1) * limit).Limit(limit).Find(&links).Error
	if err != nil {
		s.log.Error("failed to list user links", zap.Int64("user_id", userID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}

	return links, total, nil
}

// ListUserTopics returns the distinct non-null topics among a user's links.
func (s *PostgresStorage) ListUserTopics(ctx context.Context, userID int64) ([]string, error) {
	var topics []string
	err := s.db.WithContext(ctx).Model(&domain.ShortLink{}).
		Where("user_id = ? AND topic IS NOT NULL", userID).
		Distinct().
		Pluck("topic", &topics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// GetLinksByTopic returns all of a user's links under a topic.
func (s *PostgresStorage) GetLinksByTopic(ctx context.Context, userID int64, topic string) ([]*domain.ShortLink, error) {
	var links []*domain.ShortLink
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND topic = ?", userID, topic).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get links by topic: %w", err)
	}
	if len(links) == 0 {
		return nil, repository.ErrTopicNotFound
	}
	return links, nil
}

// --- Analytics Methods ---

// GetAnalytics loads the aggregate record with all breakdowns. Returns
// (nil, nil) when no clicks were recorded yet.
func (s *PostgresStorage) GetAnalytics(ctx context.Context, linkID int64) (*domain.ClickAnalytics, error) {
	var agg domain.ClickAnalytics
	err := s.db.WithContext(ctx).
		Preload("ClicksByDate").
		Preload("OSStats").
		Preload("DeviceStats").
		Preload("Visitors").
		Where("link_id = ?", linkID).
		First(&agg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to get analytics", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return &agg, nil
}

// SaveAnalytics persists the aggregate and its breakdown rows. Date buckets
// dropped by the 7-day prune are deleted explicitly since gorm's association
// save only upserts.
func (s *PostgresStorage) SaveAnalytics(ctx context.Context, agg *domain.ClickAnalytics) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(agg).Error; err != nil {
			return fmt.Errorf("failed to save analytics: %w", err)
		}

		if agg.ID != 0 {
			dates := make([]string, 0, len(agg.ClicksByDate))
			for _, d := range agg.ClicksByDate {
				dates = append(dates, d.Date)
			}
			del := tx.Where("analytics_id = ?", agg.ID)
			if len(dates) > 0 {
				del = del.Where("date NOT IN ?", dates)
			}
			if err := del.Delete(&domain.DateClicks{}).Error; err != nil {
				return fmt.Errorf("failed to prune date buckets: %w", err)
			}
		}
		return nil
	})
}

// GetAnalyticsForLinks loads the aggregates for a set of links, with
// breakdowns, for topic and overall roll-ups.
func (s *PostgresStorage) GetAnalyticsForLinks(ctx context.Context, linkIDs []int64) ([]*domain.ClickAnalytics, error) {
	if len(linkIDs) == 0 {
		return nil, nil
	}

	var aggs []*domain.ClickAnalytics
	err := s.db.WithContext(ctx).
		Preload("ClicksByDate").
		Preload("OSStats").
		Preload("DeviceStats").
		Preload("Visitors").
		Where("link_id IN ?", linkIDs).
		Find(&aggs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics for links: %w", err)
	}
	return aggs, nil
}

// Ping checks database availability.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
