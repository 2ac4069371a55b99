package memory

import (
	"Linklytics-Backend/internal/domain"
	"Linklytics-Backend/internal/repository"
	"context"
	"sort"
	"sync"
	"time"
)

// MemStorage is an in-memory Storage implementation used in tests and for
// running the service without PostgreSQL.
type MemStorage struct {
	mu            sync.RWMutex
	links         map[string]*domain.ShortLink
	usersByGoogle map[string]*domain.User
	analytics     map[int64]*domain.ClickAnalytics // by link id
	userCounter   int64
	linkCounter   int64
	aggCounter    int64
}

func New() *MemStorage {
	return &MemStorage{
		links:         make(map[string]*domain.ShortLink),
		usersByGoogle: make(map[string]*domain.User),
		analytics:     make(map[int64]*domain.ClickAnalytics),
	}
}

// --- User Methods ---

func (s *MemStorage) FindOrCreateUser(_ context.Context, googleID, email, name, avatarURL string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if user, exists := s.usersByGoogle[googleID]; exists {
		user.Email = email
		user.Name = name
		user.AvatarURL = avatarURL
		user.LastLoginAt = &now
		u := *user
		return &u, nil
	}

	s.userCounter++
	user := &domain.User{
		ID:          s.userCounter,
		GoogleID:    googleID,
		Email:       email,
		Name:        name,
		AvatarURL:   avatarURL,
		LastLoginAt: &now,
		CreatedAt:   now,
	}
	s.usersByGoogle[googleID] = user
	u := *user
	return &u, nil
}

func (s *MemStorage) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.usersByGoogle {
		if user.ID == id {
			u := *user
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// --- Link Methods ---

func (s *MemStorage) SaveLink(_ context.Context, link *domain.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.Alias]; exists {
		return repository.ErrAliasExists
	}

	s.linkCounter++
	link.ID = s.linkCounter
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	stored := *link
	s.links[link.Alias] = &stored
	return nil
}

func (s *MemStorage) GetLink(_ context.Context, alias string) (*domain.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, exists := s.links[alias]
	if !exists || link.Expired(time.Now()) {
		return nil, repository.ErrAliasNotFound
	}
	l := *link
	return &l, nil
}

func (s *MemStorage) AliasExists(_ context.Context, alias string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.links[alias]
	return exists, nil
}

func (s *MemStorage) IncrementClicks(_ context.Context, alias string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[alias]
	if !exists {
		return 0, repository.ErrAliasNotFound
	}
	link.Clicks++
	return link.Clicks, nil
}

func (s *MemStorage) ListUserLinks(_ context.Context, userID int64, opts repository.ListOptions) ([]*domain.ShortLink, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.ShortLink
	for _, link := range s.links {
		if link.UserID != userID {
			continue
		}
		if opts.Topic != "" && (link.Topic == nil || *link.Topic != opts.Topic) {
			continue
		}
		l := *link
		all = append(all, &l)
	}

	sort.Slice(all, func(i, j int) bool {
		if opts.SortAsc {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 20
	}

	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	return all[start:end], total, nil
}

func (s *MemStorage) ListUserTopics(_ context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var topics []string
	for _, link := range s.links {
		if link.UserID != userID || link.Topic == nil {
			continue
		}
		if !seen[*link.Topic] {
			seen[*link.Topic] = true
			topics = append(topics, *link.Topic)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

func (s *MemStorage) GetLinksByTopic(_ context.Context, userID int64, topic string) ([]*domain.ShortLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []*domain.ShortLink
	for _, link := range s.links {
		if link.UserID == userID && link.Topic != nil && *link.Topic == topic {
			l := *link
			links = append(links, &l)
		}
	}
	if len(links) == 0 {
		return nil, repository.ErrTopicNotFound
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links, nil
}

// --- Analytics Methods ---

func (s *MemStorage) GetAnalytics(_ context.Context, linkID int64) (*domain.ClickAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, exists := s.analytics[linkID]
	if !exists {
		return nil, nil
	}
	return copyAnalytics(agg), nil
}

func (s *MemStorage) SaveAnalytics(_ context.Context, agg *domain.ClickAnalytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agg.ID == 0 {
		s.aggCounter++
		agg.ID = s.aggCounter
	}
	s.analytics[agg.LinkID] = copyAnalytics(agg)
	return nil
}

func (s *MemStorage) GetAnalyticsForLinks(_ context.Context, linkIDs []int64) ([]*domain.ClickAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var aggs []*domain.ClickAnalytics
	for _, id := range linkIDs {
		if agg, exists := s.analytics[id]; exists {
			aggs = append(aggs, copyAnalytics(agg))
		}
	}
	return aggs, nil
}

func (s *MemStorage) Ping(_ context.Context) error {
	return nil
}

func copyAnalytics(a *domain.ClickAnalytics) *domain.ClickAnalytics {
	cp := *a
	cp.ClicksByDate = append([]domain.DateClicks(nil), a.ClicksByDate...)
	cp.OSStats = append([]domain.OSStat(nil), a.OSStats...)
	cp.DeviceStats = append([]domain.DeviceStat(nil), a.DeviceStats...)
	cp.Visitors = append([]domain.Visitor(nil), a.Visitors...)
	return &cp
}
