package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lostmedia/interaction-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrParentNotFound  = errors.New("parent comment not found on this post")
)

// toggleAttempts bounds the CAS loop in ToggleLike. Each miss means another request by
// the same user flipped membership in between, which cannot happen indefinitely.
const toggleAttempts = 4

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	UpdateContent(ctx context.Context, id, content string) (*model.Comment, error)
	Delete(ctx context.Context, comment *model.Comment) (int64, error)
	ToggleLike(ctx context.Context, commentID, userID string) (bool, error)
	FindTopLevelByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, error)
	CountTopLevelByPost(ctx context.Context, postID string) (int64, error)
	CountByPost(ctx context.Context, postID string) (int64, error)
	FindReplies(ctx context.Context, parentID string, limit, offset int) ([]*model.Comment, error)
	CountReplies(ctx context.Context, parentID string) (int64, error)
	RecountPost(ctx context.Context, postID string) (*RecountResult, error)
	RecountComment(ctx context.Context, id string) (*model.Comment, error)
}

// RecountResult summarizes a reconciliation pass.
type RecountResult struct {
	OrphansDeleted int64
	RepliesFixed   int64
	LikesFixed     int64
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment. For a reply, the parent's reply_count is bumped in the same
// transaction and the parent must exist on the same post.
func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if comment.IsReply() {
			res := tx.Model(&model.Comment{}).
				Where("id = ? AND post_id = ?", *comment.ParentCommentID, comment.PostID).
				UpdateColumn("reply_count", gorm.Expr("reply_count + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrParentNotFound
			}
		}
		return tx.Create(comment).Error
	})
}

// FindByID finds a comment by ID
func (r *commentRepository) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateContent replaces the body and marks the comment edited.
func (r *commentRepository) UpdateContent(ctx context.Context, id, content string) (*model.Comment, error) {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrCommentNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete removes the comment as one unit: a reply decrements its parent (never below zero),
// a top-level comment takes its direct replies with it. Returns the number of rows removed.
// The row is locked first so a reply being created concurrently either commits before the
// cascade sees it or fails with ErrParentNotFound.
func (r *commentRepository) Delete(ctx context.Context, comment *model.Comment) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.Comment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", comment.ID).
			First(&locked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		if err != nil {
			return err
		}

		if comment.IsReply() {
			if err := tx.Model(&model.Comment{}).
				Where("id = ?", *comment.ParentCommentID).
				UpdateColumn("reply_count", gorm.Expr("GREATEST(reply_count - 1, 0)")).Error; err != nil {
				return err
			}
		} else {
			res := tx.Where("parent_comment_id = ?", comment.ID).Delete(&model.Comment{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		}

		res := tx.Where("id = ?", comment.ID).Delete(&model.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCommentNotFound
		}
		removed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ToggleLike flips userID's membership in liked_by with conditional updates, so concurrent
// toggles by different users never lose an element or a count.
func (r *commentRepository) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	db := r.db.WithContext(ctx)
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		res := db.Model(&model.Comment{}).
			Where("id = ? AND NOT (? = ANY(liked_by))", commentID, userID).
			UpdateColumns(map[string]interface{}{
				"liked_by":   gorm.Expr("array_append(liked_by, ?)", userID),
				"like_count": gorm.Expr("cardinality(liked_by) + 1"),
			})
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected == 1 {
			return true, nil
		}

		res = db.Model(&model.Comment{}).
			Where("id = ? AND ? = ANY(liked_by)", commentID, userID).
			UpdateColumns(map[string]interface{}{
				"liked_by":   gorm.Expr("array_remove(liked_by, ?)", userID),
				"like_count": gorm.Expr("GREATEST(cardinality(liked_by) - 1, 0)"),
			})
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected == 1 {
			return false, nil
		}

		var exists int64
		if err := db.Model(&model.Comment{}).Where("id = ?", commentID).Count(&exists).Error; err != nil {
			return false, err
		}
		if exists == 0 {
			return false, ErrCommentNotFound
		}
	}
	return false, fmt.Errorf("toggle like on %s: too much contention", commentID)
}

// FindTopLevelByPost returns comments without a parent, newest first
func (r *commentRepository) FindTopLevelByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND parent_comment_id IS NULL", postID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) CountTopLevelByPost(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("post_id = ? AND parent_comment_id IS NULL", postID).
		Count(&count).Error
	return count, err
}

// CountByPost counts every comment on a post, replies included
func (r *commentRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}

// FindReplies returns direct replies, oldest first
func (r *commentRepository) FindReplies(ctx context.Context, parentID string, limit, offset int) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Where("parent_comment_id = ?", parentID).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) CountReplies(ctx context.Context, parentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("parent_comment_id = ?", parentID).
		Count(&count).Error
	return count, err
}

// RecountPost rebuilds the denormalized counters of every comment on a post from source rows.
// Replies whose parent is gone are deleted first so they stop counting anywhere.
func (r *commentRepository) RecountPost(ctx context.Context, postID string) (*RecountResult, error) {
	result := &RecountResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`DELETE FROM comments c
			WHERE c.post_id = ? AND c.parent_comment_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM comments p WHERE p.id = c.parent_comment_id)`, postID)
		if res.Error != nil {
			return res.Error
		}
		result.OrphansDeleted = res.RowsAffected

		res = tx.Exec(`UPDATE comments p SET reply_count = sub.n
			FROM (
				SELECT c.id, (SELECT count(*) FROM comments ch WHERE ch.parent_comment_id = c.id) AS n
				FROM comments c WHERE c.post_id = ?
			) sub
			WHERE p.id = sub.id AND p.reply_count <> sub.n`, postID)
		if res.Error != nil {
			return res.Error
		}
		result.RepliesFixed = res.RowsAffected

		res = tx.Exec(`UPDATE comments SET like_count = cardinality(liked_by)
			WHERE post_id = ? AND like_count <> cardinality(liked_by)`, postID)
		if res.Error != nil {
			return res.Error
		}
		result.LikesFixed = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecountComment rebuilds the counters of a single comment.
func (r *commentRepository) RecountComment(ctx context.Context, id string) (*model.Comment, error) {
	res := r.db.WithContext(ctx).Exec(`UPDATE comments SET
			reply_count = (SELECT count(*) FROM comments ch WHERE ch.parent_comment_id = comments.id),
			like_count = cardinality(liked_by)
		WHERE id = ?`, id)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrCommentNotFound
	}
	return r.FindByID(ctx, id)
}
