// Package cache provides the advisory read-through cache in front of the
// short-link store and the memoized analytics responses. Correctness never
// depends on it: every caller treats a miss and an error identically, and the
// Noop implementation must leave all observable behavior unchanged.
package cache

import (
	"context"
	"fmt"
	"time"
)

// TTLs, matching the per-key contract of the HTTP surface.
const (
	LinkTTL           = 24 * time.Hour
	AnalyticsTTL      = 10 * time.Minute
	EmptyAnalyticsTTL = 5 * time.Minute
	ListingTTL        = 10 * time.Minute
)

// Cache is a byte-oriented key-value store with TTLs and wildcard
// invalidation. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value and true on a hit. Errors are reported as misses
	// by callers, so implementations log them.
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes exact keys; keys containing '*' are expanded as patterns.
	Delete(ctx context.Context, keys ...string)
	// Ping reports backend availability, for readiness probes.
	Ping(ctx context.Context) error
}

// Key builders. The grammar is shared with the frontend's expectations, so
// changes here are breaking.

func LinkKey(alias string) string {
	return "url:" + alias
}

func AnalyticsKey(alias string) string {
	return "analytics:" + alias
}

func TopicAnalyticsKey(userID int64, topic string) string {
	return fmt.Sprintf("topicAnalytics:%d:%s", userID, topic)
}

func OverallAnalyticsKey(userID int64) string {
	return fmt.Sprintf("overallAnalytics:%d", userID)
}

func UserTopicsKey(userID int64) string {
	return fmt.Sprintf("user:%d:topics", userID)
}

func RecentURLsKey(userID int64, topic, sortBy string, page, limit int) string {
	if topic == "" {
		topic = "all"
	}
	if sortBy == "" {
		sortBy = "desc"
	}
	return fmt.Sprintf("recentUrls:%d:%s:%s:%d:%d", userID, topic, sortBy, page, limit)
}

// UserInvalidationKeys lists everything derived from a user's link set:
// dropped whenever one of their links or its analytics changes.
func UserInvalidationKeys(userID int64) []string {
	return []string{
		OverallAnalyticsKey(userID),
		UserTopicsKey(userID),
		fmt.Sprintf("topicAnalytics:%d:*", userID),
		fmt.Sprintf("recentUrls:%d:*", userID),
	}
}

// Noop is the disabled cache: every read misses, every write is dropped.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, string) ([]byte, bool)              { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration)      {}
func (Noop) Delete(context.Context, ...string)                       {}
func (Noop) Ping(context.Context) error                              { return nil }
