package domain

import "time"

// User represents a service user authenticated through Google OAuth.
type User struct {
	ID          int64      `gorm:"primaryKey;column:id" json:"id"`
	GoogleID    string     `gorm:"column:google_id;uniqueIndex;not null" json:"-"`
	Email       string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Name        string     `gorm:"column:name" json:"name"`
	AvatarURL   string     `gorm:"column:avatar_url" json:"profilePicture,omitempty"`
	LastLoginAt *time.Time `gorm:"column:last_login_at" json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	// Relationships
	Links []ShortLink `gorm:"foreignKey:UserID" json:"-"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}
