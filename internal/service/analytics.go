package service

import (
	"Linklytics-Backend/internal/analytics"
	"Linklytics-Backend/internal/cache"
	"Linklytics-Backend/internal/domain"
	"Linklytics-Backend/internal/repository"
	"Linklytics-Backend/pkg/useragent"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// UAParser classifies a raw User-Agent header.
type UAParser interface {
	Parse(userAgent string) useragent.DeviceInfo
}

// AnalyticsService records clicks and serves per-link, per-topic and overall
// roll-ups.
type AnalyticsService struct {
	storage repository.Storage
	cache   cache.Cache
	parser  UAParser
	baseURL string
	log     *zap.Logger
}

// NewAnalytics creates a new analytics service.
func NewAnalytics(storage repository.Storage, c cache.Cache, parser UAParser, baseURL string, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		storage: storage,
		cache:   c,
		parser:  parser,
		baseURL: baseURL,
		log:     log,
	}
}

// RecordClick folds one click into the link's aggregate and drops every
// cached response derived from it.
func (s *AnalyticsService) RecordClick(ctx context.Context, ev analytics.ClickEvent) error {
	info := s.parser.Parse(ev.UserAgent)

	agg, err := s.storage.GetAnalytics(ctx, ev.LinkID)
	if err != nil {
		return fmt.Errorf("failed to load analytics: %w", err)
	}
	if agg == nil {
		agg = &domain.ClickAnalytics{LinkID: ev.LinkID}
	}

	agg.Apply(domain.Click{
		VisitorKey: domain.VisitorKey(ev.UserID, ev.IP),
		OSName:     info.OS,
		DeviceName: info.Device,
		At:         ev.At,
	})

	if err := s.storage.SaveAnalytics(ctx, agg); err != nil {
		return fmt.Errorf("failed to save analytics: %w", err)
	}

	s.cache.Delete(ctx, cache.AnalyticsKey(ev.Alias))
	s.cache.Delete(ctx, cache.UserInvalidationKeys(ev.OwnerID)...)

	return nil
}

// DateCount is one day's clicks for a single link.
type DateCount struct {
	Date       string `json:"date"`
	ClickCount int64  `json:"clickCount"`
}

// DateTotal is one day's clicks summed across links.
type DateTotal struct {
	Date        string `json:"date"`
	TotalClicks int64  `json:"totalClicks"`
}

// OSTypeStat is the per-OS slice of a roll-up.
type OSTypeStat struct {
	OSName       string `json:"osName"`
	UniqueClicks int64  `json:"uniqueClicks"`
	UniqueUsers  int64  `json:"uniqueUsers"`
}

// DeviceTypeStat is the per-device-class slice of a roll-up.
type DeviceTypeStat struct {
	DeviceName   string `json:"deviceName"`
	UniqueClicks int64  `json:"uniqueClicks"`
	UniqueUsers  int64  `json:"uniqueUsers"`
}

// LinkStats is the analytics response for one alias.
type LinkStats struct {
	TotalClicks  int64            `json:"totalClicks"`
	UniqueUsers  int64            `json:"uniqueUsers"`
	ClicksByDate []DateCount      `json:"clicksByDate"`
	OSType       []OSTypeStat     `json:"osTypeStats"`
	DeviceType   []DeviceTypeStat `json:"deviceTypeStats"`
}

// TopicURLStats is one link's slice of a topic roll-up.
type TopicURLStats struct {
	ShortURL    string `json:"shortUrl"`
	TotalClicks int64  `json:"totalClicks"`
	UniqueUsers int64  `json:"uniqueUsers"`
}

// TopicStats is the analytics response for a topic.
type TopicStats struct {
	TotalClicks  int64           `json:"totalClicks"`
	UniqueUsers  int64           `json:"uniqueUsers"`
	ClicksByDate []DateTotal     `json:"clicksByDate"`
	URLs         []TopicURLStats `json:"urls"`
}

// OverallStats is the analytics response across all of a user's links.
type OverallStats struct {
	TotalURLs    int64            `json:"totalUrls"`
	TotalClicks  int64            `json:"totalClicks"`
	UniqueUsers  int64            `json:"uniqueUsers"`
	ClicksByDate []DateTotal      `json:"clicksByDate"`
	OSType       []OSTypeStat     `json:"osTypeStats"`
	DeviceType   []DeviceTypeStat `json:"deviceTypeStats"`
}

// LinkStats returns analytics for one of the user's aliases, memoized.
func (s *AnalyticsService) LinkStats(ctx context.Context, userID int64, alias string) (*LinkStats, error) {
	// Ownership is checked before the cache: the cached entry is keyed by
	// alias alone.
	link, err := s.storage.GetLink(ctx, alias)
	if err != nil {
		return nil, err
	}
	if link.UserID != userID {
		return nil, repository.ErrAliasNotFound
	}

	key := cache.AnalyticsKey(alias)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached LinkStats
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.cache.Delete(ctx, key)
	}

	agg, err := s.storage.GetAnalytics(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}

	stats := &LinkStats{
		ClicksByDate: emptyDateCounts(time.Now()),
		OSType:       []OSTypeStat{},
		DeviceType:   []DeviceTypeStat{},
	}
	if agg != nil {
		stats.TotalClicks = agg.TotalClicks
		stats.UniqueUsers = agg.UniqueUsers()
		fillDateCounts(stats.ClicksByDate, agg.ClicksByDate)
		for _, os := range agg.OSStats {
			stats.OSType = append(stats.OSType, OSTypeStat{OSName: os.OSName, UniqueClicks: os.UniqueClicks, UniqueUsers: os.UniqueUsers})
		}
		for _, d := range agg.DeviceStats {
			stats.DeviceType = append(stats.DeviceType, DeviceTypeStat{DeviceName: d.DeviceName, UniqueClicks: d.UniqueClicks, UniqueUsers: d.UniqueUsers})
		}
	}

	s.memoize(ctx, key, stats, stats.TotalClicks == 0)
	return stats, nil
}

// TopicStats returns the roll-up across the user's links under a topic.
func (s *AnalyticsService) TopicStats(ctx context.Context, userID int64, topic string) (*TopicStats, error) {
	key := cache.TopicAnalyticsKey(userID, topic)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached TopicStats
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.cache.Delete(ctx, key)
	}

	links, err := s.storage.GetLinksByTopic(ctx, userID, topic)
	if err != nil {
		return nil, err
	}

	aggs, err := s.analyticsByLink(ctx, links)
	if err != nil {
		return nil, err
	}

	stats := &TopicStats{
		ClicksByDate: emptyDateTotals(time.Now()),
		URLs:         make([]TopicURLStats, 0, len(links)),
	}
	visitors := make(map[string]struct{})

	for _, link := range links {
		entry := TopicURLStats{ShortURL: s.shortURL(link.Alias)}
		if agg := aggs[link.ID]; agg != nil {
			entry.TotalClicks = agg.TotalClicks
			entry.UniqueUsers = agg.UniqueUsers()
			stats.TotalClicks += agg.TotalClicks
			fillDateTotals(stats.ClicksByDate, agg.ClicksByDate)
			for i := range agg.Visitors {
				visitors[agg.Visitors[i].Key] = struct{}{}
			}
		}
		stats.URLs = append(stats.URLs, entry)
	}
	stats.UniqueUsers = int64(len(visitors))

	s.memoize(ctx, key, stats, stats.TotalClicks == 0)
	return stats, nil
}

// OverallStats returns the roll-up across every link the user owns.
func (s *AnalyticsService) OverallStats(ctx context.Context, userID int64) (*OverallStats, error) {
	key := cache.OverallAnalyticsKey(userID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached OverallStats
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.cache.Delete(ctx, key)
	}

	links, err := s.allUserLinks(ctx, userID)
	if err != nil {
		return nil, err
	}

	aggs, err := s.analyticsByLink(ctx, links)
	if err != nil {
		return nil, err
	}

	stats := &OverallStats{
		TotalURLs:    int64(len(links)),
		ClicksByDate: emptyDateTotals(time.Now()),
		OSType:       []OSTypeStat{},
		DeviceType:   []DeviceTypeStat{},
	}
	visitors := make(map[string]struct{})
	osTotals := make(map[string]*OSTypeStat)
	deviceTotals := make(map[string]*DeviceTypeStat)

	for _, link := range links {
		agg := aggs[link.ID]
		if agg == nil {
			continue
		}
		stats.TotalClicks += agg.TotalClicks
		fillDateTotals(stats.ClicksByDate, agg.ClicksByDate)
		for i := range agg.Visitors {
			visitors[agg.Visitors[i].Key] = struct{}{}
		}
		for _, os := range agg.OSStats {
			t, ok := osTotals[os.OSName]
			if !ok {
				t = &OSTypeStat{OSName: os.OSName}
				osTotals[os.OSName] = t
			}
			t.UniqueClicks += os.UniqueClicks
			t.UniqueUsers += os.UniqueUsers
		}
		for _, d := range agg.DeviceStats {
			t, ok := deviceTotals[d.DeviceName]
			if !ok {
				t = &DeviceTypeStat{DeviceName: d.DeviceName}
				deviceTotals[d.DeviceName] = t
			}
			t.UniqueClicks += d.UniqueClicks
			t.UniqueUsers += d.UniqueUsers
		}
	}
	stats.UniqueUsers = int64(len(visitors))

	for _, t := range osTotals {
		stats.OSType = append(stats.OSType, *t)
	}
	for _, t := range deviceTotals {
		stats.DeviceType = append(stats.DeviceType, *t)
	}
	sort.Slice(stats.OSType, func(i, j int) bool { return stats.OSType[i].OSName < stats.OSType[j].OSName })
	sort.Slice(stats.DeviceType, func(i, j int) bool { return stats.DeviceType[i].DeviceName < stats.DeviceType[j].DeviceName })

	s.memoize(ctx, key, stats, stats.TotalClicks == 0)
	return stats, nil
}

// allUserLinks pages through the user's full link set.
func (s *AnalyticsService) allUserLinks(ctx context.Context, userID int64) ([]*domain.ShortLink, error) {
	const pageSize = 500

	var all []*domain.ShortLink
	for page := 1; ; page++ {
		links, total, err := s.storage.ListUserLinks(ctx, userID, repository.ListOptions{Page: page, Limit: pageSize})
		if err != nil {
			return nil, fmt.Errorf("failed to list links: %w", err)
		}
		all = append(all, links...)
		if int64(len(all)) >= total || len(links) == 0 {
			return all, nil
		}
	}
}

func (s *AnalyticsService) analyticsByLink(ctx context.Context, links []*domain.ShortLink) (map[int64]*domain.ClickAnalytics, error) {
	ids := make([]int64, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ID)
	}

	aggs, err := s.storage.GetAnalyticsForLinks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}

	byLink := make(map[int64]*domain.ClickAnalytics, len(aggs))
	for _, agg := range aggs {
		byLink[agg.LinkID] = agg
	}
	return byLink, nil
}

// memoize caches a response, with the short TTL for zero-click results so a
// fresh link's first stats appear quickly.
func (s *AnalyticsService) memoize(ctx context.Context, key string, v interface{}, empty bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := cache.AnalyticsTTL
	if empty {
		ttl = cache.EmptyAnalyticsTTL
	}
	s.cache.Set(ctx, key, data, ttl)
}

func (s *AnalyticsService) shortURL(alias string) string {
	return s.baseURL + "/api/shorten/" + alias
}

// emptyDateCounts builds the zero-filled 7-day window ending today, oldest
// first.
func emptyDateCounts(now time.Time) []DateCount {
	out := make([]DateCount, 0, domain.DateWindowDays)
	for i := domain.DateWindowDays - 1; i >= 0; i-- {
		out = append(out, DateCount{Date: now.UTC().AddDate(0, 0, -i).Format(domain.DateLayout)})
	}
	return out
}

func emptyDateTotals(now time.Time) []DateTotal {
	out := make([]DateTotal, 0, domain.DateWindowDays)
	for i := domain.DateWindowDays - 1; i >= 0; i-- {
		out = append(out, DateTotal{Date: now.UTC().AddDate(0, 0, -i).Format(domain.DateLayout)})
	}
	return out
}

func fillDateCounts(window []DateCount, buckets []domain.DateClicks) {
	for _, b := range buckets {
		for i := range window {
			if window[i].Date == b.Date {
				window[i].ClickCount += b.ClickCount
			}
		}
	}
}

func fillDateTotals(window []DateTotal, buckets []domain.DateClicks) {
	for _, b := range buckets {
		for i := range window {
			if window[i].Date == b.Date {
				window[i].TotalClicks += b.ClickCount
			}
		}
	}
}
