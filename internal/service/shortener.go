package service

import (
	"Linklytics-Backend/internal/cache"
	"Linklytics-Backend/internal/domain"
	"Linklytics-Backend/internal/repository"
	"Linklytics-Backend/pkg/random"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrInvalidAlias = errors.New("invalid alias")
	ErrAliasTaken   = errors.New("alias already taken")
	ErrLinkExpired  = errors.New("link expired")
)

// maxAliasRetries bounds the random-alias collision loop.
const maxAliasRetries = 5

// maxAliasLength caps custom aliases.
const maxAliasLength = 64

// ShortenerService creates and resolves short links.
type ShortenerService struct {
	storage     repository.Storage
	cache       cache.Cache
	aliasLength int
	log         *zap.Logger
}

// NewShortener creates a new shortener service.
func NewShortener(storage repository.Storage, c cache.Cache, aliasLength int, log *zap.Logger) *ShortenerService {
	return &ShortenerService{
		storage:     storage,
		cache:       c,
		aliasLength: aliasLength,
		log:         log,
	}
}

// Shorten creates a short link for the user. A custom alias is taken as-is
// and conflicts are an error; otherwise random aliases are tried until one
// is free.
func (s *ShortenerService) Shorten(ctx context.Context, userID int64, longURL, customAlias string, topic *string, expiresAt *time.Time) (*domain.ShortLink, error) {
	if err := validateURL(longURL); err != nil {
		return nil, err
	}

	link := &domain.ShortLink{
		LongURL:   longURL,
		UserID:    userID,
		Topic:     normalizeTopic(topic),
		ExpiresAt: expiresAt,
	}

	if customAlias != "" {
		if err := validateAlias(customAlias); err != nil {
			return nil, err
		}
		link.Alias = customAlias
		link.Custom = true

		if err := s.storage.SaveLink(ctx, link); err != nil {
			if errors.Is(err, repository.ErrAliasExists) {
				return nil, ErrAliasTaken
			}
			return nil, fmt.Errorf("failed to save link: %w", err)
		}
	} else {
		if err := s.saveWithRandomAlias(ctx, link); err != nil {
			return nil, err
		}
	}

	s.cacheLink(ctx, link)
	s.cache.Delete(ctx, cache.UserInvalidationKeys(userID)...)

	s.log.Info("short link created",
		zap.String("alias", link.Alias),
		zap.Int64("user_id", userID),
		zap.Bool("custom", link.Custom))

	return link, nil
}

// saveWithRandomAlias retries generation on collision. With a 64-char
// alphabet the loop almost never iterates.
func (s *ShortenerService) saveWithRandomAlias(ctx context.Context, link *domain.ShortLink) error {
	for attempt := 0; attempt < maxAliasRetries; attempt++ {
		alias, err := random.NewRandomString(s.aliasLength)
		if err != nil {
			return fmt.Errorf("failed to generate alias: %w", err)
		}
		link.Alias = alias

		err = s.storage.SaveLink(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrAliasExists) {
			return fmt.Errorf("failed to save link: %w", err)
		}
		s.log.Debug("alias collision, retrying", zap.String("alias", link.Alias))
	}
	return fmt.Errorf("failed to generate a free alias after %d attempts", maxAliasRetries)
}

// Resolve returns the link behind an alias, reading through the cache.
func (s *ShortenerService) Resolve(ctx context.Context, alias string) (*domain.ShortLink, error) {
	key := cache.LinkKey(alias)
	if data, ok := s.cache.Get(ctx, key); ok {
		var link domain.ShortLink
		if err := json.Unmarshal(data, &link); err == nil {
			if link.Expired(time.Now()) {
				return nil, ErrLinkExpired
			}
			return &link, nil
		}
		s.cache.Delete(ctx, key)
	}

	link, err := s.storage.GetLink(ctx, alias)
	if err != nil {
		return nil, err
	}
	if link.Expired(time.Now()) {
		return nil, ErrLinkExpired
	}

	s.cacheLink(ctx, link)
	return link, nil
}

// RegisterClick bumps the link's click counter and refreshes the cached copy
// so a warm cache does not serve a stale count for a full TTL.
func (s *ShortenerService) RegisterClick(ctx context.Context, alias string) (int64, error) {
	clicks, err := s.storage.IncrementClicks(ctx, alias)
	if err != nil {
		return 0, fmt.Errorf("failed to increment clicks: %w", err)
	}

	key := cache.LinkKey(alias)
	if data, ok := s.cache.Get(ctx, key); ok {
		var link domain.ShortLink
		if err := json.Unmarshal(data, &link); err == nil {
			link.Clicks = clicks
			s.cacheLink(ctx, &link)
		}
	}

	return clicks, nil
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// LinkPage is one page of a user's links.
type LinkPage struct {
	Data       []*domain.ShortLink `json:"data"`
	Pagination Pagination          `json:"pagination"`
}

// RecentLinks returns a page of the user's links, memoized per query shape.
func (s *ShortenerService) RecentLinks(ctx context.Context, userID int64, topic, sortBy string, page, limit int) (*LinkPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	key := cache.RecentURLsKey(userID, topic, sortBy, page, limit)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached LinkPage
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.cache.Delete(ctx, key)
	}

	links, total, err := s.storage.ListUserLinks(ctx, userID, repository.ListOptions{
		Topic:   topic,
		SortAsc: sortBy == "asc",
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	if links == nil {
		links = []*domain.ShortLink{}
	}

	result := &LinkPage{
		Data: links,
		Pagination: Pagination{
			Total:       total,
			Page:        page,
			Limit:       limit,
			HasNext:     int64(page*limit) < total,
			HasPrevious: page > 1,
		},
	}

	if data, err := json.Marshal(result); err == nil {
		s.cache.Set(ctx, key, data, cache.ListingTTL)
	}

	return result, nil
}

// Topics returns the distinct topics of the user's links, memoized.
func (s *ShortenerService) Topics(ctx context.Context, userID int64) ([]string, error) {
	key := cache.UserTopicsKey(userID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var topics []string
		if err := json.Unmarshal(data, &topics); err == nil {
			return topics, nil
		}
		s.cache.Delete(ctx, key)
	}

	topics, err := s.storage.ListUserTopics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	if topics == nil {
		topics = []string{}
	}

	if data, err := json.Marshal(topics); err == nil {
		s.cache.Set(ctx, key, data, cache.ListingTTL)
	}

	return topics, nil
}

func (s *ShortenerService) cacheLink(ctx context.Context, link *domain.ShortLink) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	s.cache.Set(ctx, cache.LinkKey(link.Alias), data, cache.LinkTTL)
}

func validateURL(raw string) error {
	if raw == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// validateAlias keeps custom aliases inside the URL-safe alphabet so they
// never need escaping in the redirect path.
func validateAlias(alias string) error {
	if len(alias) < 3 || len(alias) > maxAliasLength {
		return ErrInvalidAlias
	}
	for _, r := range alias {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return ErrInvalidAlias
		}
	}
	return nil
}

func normalizeTopic(topic *string) *string {
	if topic == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*topic)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
