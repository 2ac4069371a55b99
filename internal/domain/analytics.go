package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DateLayout is the calendar-date key used for click buckets. Dates are
// always computed in UTC so the 7-day prune is stable across hosts.
const DateLayout = "2006-01-02"

// DateWindowDays is the size of the rolling clicks-by-date window.
const DateWindowDays = 7

// ClickAnalytics is the per-link aggregate record: running totals plus OS,
// device and date breakdowns. One row per ShortLink, never deleted.
type ClickAnalytics struct {
	ID          int64     `gorm:"primaryKey;column:id"`
	LinkID      int64     `gorm:"column:link_id;uniqueIndex;not null"`
	TotalClicks int64     `gorm:"column:total_clicks;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	ClicksByDate []DateClicks  `gorm:"foreignKey:AnalyticsID"`
	OSStats      []OSStat      `gorm:"foreignKey:AnalyticsID"`
	DeviceStats  []DeviceStat  `gorm:"foreignKey:AnalyticsID"`
	Visitors     []Visitor     `gorm:"foreignKey:AnalyticsID"`
}

// TableName returns the table name for GORM.
func (ClickAnalytics) TableName() string {
	return "click_analytics"
}

// DateClicks is one day's click count inside the rolling window.
type DateClicks struct {
	ID          int64  `gorm:"primaryKey;column:id"`
	AnalyticsID int64  `gorm:"column:analytics_id;not null;index"`
	Date        string `gorm:"column:date;size:10;not null"`
	ClickCount  int64  `gorm:"column:click_count;not null;default:0"`
}

// TableName returns the table name for GORM.
func (DateClicks) TableName() string {
	return "analytics_date_clicks"
}

// OSStat is a cumulative per-OS breakdown bucket.
type OSStat struct {
	ID           int64  `gorm:"primaryKey;column:id"`
	AnalyticsID  int64  `gorm:"column:analytics_id;not null;index"`
	OSName       string `gorm:"column:os_name;size:50;not null"`
	UniqueClicks int64  `gorm:"column:unique_clicks;not null;default:0"`
	UniqueUsers  int64  `gorm:"column:unique_users;not null;default:0"`
}

// TableName returns the table name for GORM.
func (OSStat) TableName() string {
	return "analytics_os_stats"
}

// DeviceStat is a cumulative per-device-class breakdown bucket.
type DeviceStat struct {
	ID           int64  `gorm:"primaryKey;column:id"`
	AnalyticsID  int64  `gorm:"column:analytics_id;not null;index"`
	DeviceName   string `gorm:"column:device_name;size:20;not null"`
	UniqueClicks int64  `gorm:"column:unique_clicks;not null;default:0"`
	UniqueUsers  int64  `gorm:"column:unique_users;not null;default:0"`
}

// TableName returns the table name for GORM.
func (DeviceStat) TableName() string {
	return "analytics_device_stats"
}

// Visitor is one member of the aggregate's unique-user set.
type Visitor struct {
	ID          int64  `gorm:"primaryKey;column:id"`
	AnalyticsID int64  `gorm:"column:analytics_id;not null;index:idx_visitor_key,unique"`
	Key         string `gorm:"column:visitor_key;size:80;not null;index:idx_visitor_key,unique"`
}

// TableName returns the table name for GORM.
func (Visitor) TableName() string {
	return "analytics_visitors"
}

// Click is a single observed redirect, already reduced to the fields the
// aggregate cares about.
type Click struct {
	VisitorKey string
	OSName     string
	DeviceName string
	At         time.Time
}

// VisitorKey builds the canonical unique-user identity: the authenticated
// user id when present, otherwise a truncated hash of the client IP. The two
// namespaces never collide.
func VisitorKey(userID *int64, ip string) string {
	if userID != nil {
		return fmt.Sprintf("u:%d", *userID)
	}
	sum := sha256.Sum256([]byte(ip))
	return "ip:" + hex.EncodeToString(sum[:])[:16]
}

// Apply folds one click into the aggregate: total count, unique-visitor set,
// today's date bucket (pruning the window), and the OS and device breakdowns.
// Breakdown unique_users only moves for a first-seen visitor, so it can never
// exceed the size of the visitor set.
func (a *ClickAnalytics) Apply(c Click) {
	a.TotalClicks++

	newVisitor := !a.hasVisitor(c.VisitorKey)
	if newVisitor {
		a.Visitors = append(a.Visitors, Visitor{AnalyticsID: a.ID, Key: c.VisitorKey})
	}

	today := c.At.UTC().Format(DateLayout)
	a.bumpDate(today)
	a.pruneDates(c.At)

	a.bumpOS(c.OSName, newVisitor)
	a.bumpDevice(c.DeviceName, newVisitor)
}

// UniqueUsers reports the size of the visitor set.
func (a *ClickAnalytics) UniqueUsers() int64 {
	return int64(len(a.Visitors))
}

func (a *ClickAnalytics) hasVisitor(key string) bool {
	for i := range a.Visitors {
		if a.Visitors[i].Key == key {
			return true
		}
	}
	return false
}

func (a *ClickAnalytics) bumpDate(date string) {
	for i := range a.ClicksByDate {
		if a.ClicksByDate[i].Date == date {
			a.ClicksByDate[i].ClickCount++
			return
		}
	}
	a.ClicksByDate = append(a.ClicksByDate, DateClicks{AnalyticsID: a.ID, Date: date, ClickCount: 1})
}

// pruneDates drops buckets older than the window relative to "now".
// YYYY-MM-DD compares correctly as a string.
func (a *ClickAnalytics) pruneDates(now time.Time) {
	cutoff := now.UTC().AddDate(0, 0, -DateWindowDays).Format(DateLayout)
	kept := a.ClicksByDate[:0]
	for _, d := range a.ClicksByDate {
		if d.Date >= cutoff {
			kept = append(kept, d)
		}
	}
	a.ClicksByDate = kept
}

func (a *ClickAnalytics) bumpOS(name string, newVisitor bool) {
	for i := range a.OSStats {
		if a.OSStats[i].OSName == name {
			a.OSStats[i].UniqueClicks++
			if newVisitor {
				a.OSStats[i].UniqueUsers++
			}
			return
		}
	}
	a.OSStats = append(a.OSStats, OSStat{AnalyticsID: a.ID, OSName: name, UniqueClicks: 1, UniqueUsers: oneIf(newVisitor)})
}

func (a *ClickAnalytics) bumpDevice(name string, newVisitor bool) {
	for i := range a.DeviceStats {
		if a.DeviceStats[i].DeviceName == name {
			a.DeviceStats[i].UniqueClicks++
			if newVisitor {
				a.DeviceStats[i].UniqueUsers++
			}
			return
		}
	}
	a.DeviceStats = append(a.DeviceStats, DeviceStat{AnalyticsID: a.ID, DeviceName: name, UniqueClicks: 1, UniqueUsers: oneIf(newVisitor)})
}

func oneIf(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
