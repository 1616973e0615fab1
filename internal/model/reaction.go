package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reaction is a user's like on a post. At most one row exists per (post, user).
type Reaction struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	PostID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_post_user,priority:1;index:idx_reactions_post_time,priority:1" json:"post_id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_post_user,priority:2" json:"user_id"`
	ReactedAt time.Time `gorm:"not null;index:idx_reactions_post_time,priority:2" json:"reacted_at"`
}

// BeforeCreate hook to generate UUID
func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.ReactedAt.IsZero() {
		r.ReactedAt = time.Now().UTC()
	}
	return nil
}

// TableName specifies the table name
func (Reaction) TableName() string {
	return "reactions"
}
