package domain

import "time"

// ShortLink maps an alias to a destination URL.
type ShortLink struct {
	ID        int64      `gorm:"primaryKey;column:id" json:"id"`
	Alias     string     `gorm:"column:alias;uniqueIndex;not null" json:"alias"`
	LongURL   string     `gorm:"column:long_url;not null" json:"longUrl"`
	Custom    bool       `gorm:"column:custom;not null;default:false" json:"custom"`
	Topic     *string    `gorm:"column:topic;index" json:"topic,omitempty"`
	UserID    int64      `gorm:"column:user_id;not null;index" json:"-"`
	Clicks    int64      `gorm:"column:clicks;not null;default:0" json:"clicks"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName returns the table name for GORM.
func (ShortLink) TableName() string {
	return "short_links"
}

// Expired reports whether the link is past its expiry at the given instant.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
