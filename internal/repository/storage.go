package repository

import (
	"Linklytics-Backend/internal/domain"
	"context"
	"errors"
)

var (
	ErrAliasNotFound = errors.New("alias not found")
	ErrAliasExists   = errors.New("alias already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrTopicNotFound = errors.New("topic not found")
)

// ListOptions filters and pages a user's links.
type ListOptions struct {
	Topic     string // empty means all topics
	SortAsc   bool   // by creation time; default newest first
	Page      int    // 1-based
	Limit     int
}

type Storage interface {
	// User methods
	FindOrCreateUser(ctx context.Context, googleID, email, name, avatarURL string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// Link methods
	SaveLink(ctx context.Context, link *domain.ShortLink) error
	GetLink(ctx context.Context, alias string) (*domain.ShortLink, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
	IncrementClicks(ctx context.Context, alias string) (int64, error)
	ListUserLinks(ctx context.Context, userID int64, opts ListOptions) ([]*domain.ShortLink, int64, error)
	ListUserTopics(ctx context.Context, userID int64) ([]string, error)
	GetLinksByTopic(ctx context.Context, userID int64, topic string) ([]*domain.ShortLink, error)

	// Analytics methods
	GetAnalytics(ctx context.Context, linkID int64) (*domain.ClickAnalytics, error)
	SaveAnalytics(ctx context.Context, agg *domain.ClickAnalytics) error
	GetAnalyticsForLinks(ctx context.Context, linkIDs []int64) ([]*domain.ClickAnalytics, error)

	// Ping reports storage availability, for health probes.
	Ping(ctx context.Context) error
}
