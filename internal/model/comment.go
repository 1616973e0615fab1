package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Comment struct {
	ID              string         `gorm:"type:uuid;primary_key" json:"id"`
	PostID          string         `gorm:"type:uuid;not null;index:idx_comments_post_parent,priority:1" json:"post_id"`
	AuthorID        string         `gorm:"type:uuid;not null;index" json:"author_id"`
	AuthorName      string         `gorm:"type:varchar(255);not null;default:''" json:"author_name"` // snapshot taken at creation
	Content         string         `gorm:"type:text;not null" json:"content"`
	ParentCommentID *string        `gorm:"type:uuid;index;index:idx_comments_post_parent,priority:2" json:"parent_comment_id"`
	ReplyToUserID   *string        `gorm:"type:uuid" json:"reply_to_user_id"`
	LikeCount       int64          `gorm:"not null;default:0" json:"like_count"`
	LikedBy         pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"liked_by"`
	IsEdited        bool           `gorm:"not null;default:false" json:"is_edited"`
	ReplyCount      int64          `gorm:"not null;default:0" json:"reply_count"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.LikedBy == nil {
		c.LikedBy = pq.StringArray{}
	}
	return nil
}

// TableName specifies the table name
func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil && *c.ParentCommentID != ""
}

// HasLiked reports whether userID is in LikedBy.
func (c *Comment) HasLiked(userID string) bool {
	for _, id := range c.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}
