package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/model"
	"github.com/lostmedia/interaction-service/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReactionRepository interface {
	Toggle(ctx context.Context, postID, userID string) (bool, error)
	Exists(ctx context.Context, postID, userID string) (bool, error)
	FindByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Reaction, error)
	CountByPost(ctx context.Context, postID string) (int64, error)
}

type reactionRepository struct {
	db    *gorm.DB
	redis *util.RedisClient
}

// A cached count is stored as "<generation>:<count>". Toggle bumps the post's generation
// after its write, so a count read from the table before that write is never served again.
const (
	reactionCountCachePrefix = "reaction:count:"
	reactionCountGenPrefix   = "reaction:count-gen:"
	reactionCacheExpiration  = 10 * time.Minute
	reactionGenExpiration    = 2 * reactionCacheExpiration
)

// NewReactionRepository builds the store. redis may be nil, which disables the count cache.
func NewReactionRepository(db *gorm.DB, redis *util.RedisClient) ReactionRepository {
	return &reactionRepository{
		db:    db,
		redis: redis,
	}
}

// Toggle removes the user's reaction if present, otherwise creates it.
// The unique (post_id, user_id) index arbitrates concurrent calls: losing an insert race
// means the row now exists, so the call proceeds as a toggle-off.
func (r *reactionRepository) Toggle(ctx context.Context, postID, userID string) (bool, error) {
	defer r.bumpCountGeneration(ctx, postID)

	db := r.db.WithContext(ctx)

	res := db.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.Reaction{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	reaction := &model.Reaction{PostID: postID, UserID: userID}
	res = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(reaction)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	if err := db.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.Reaction{}).Error; err != nil {
		return false, err
	}
	return false, nil
}

// Exists reports whether the user currently reacts to the post
func (r *reactionRepository) Exists(ctx context.Context, postID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByPost lists reactions newest first
func (r *reactionRepository) FindByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Reaction, error) {
	var reactions []*model.Reaction
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("reacted_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

// CountByPost counts reactions for a post
func (r *reactionRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	genKey := reactionCountGenPrefix + postID
	cacheKey := reactionCountCachePrefix + postID

	useCache := r.redis != nil
	gen := "0"
	if useCache {
		vals, found, err := r.redis.MGet(ctx, genKey, cacheKey)
		if err != nil {
			logger.For(ctx).WithError(err).Warn("reaction count cache read failed")
			useCache = false
		} else {
			if found[0] {
				gen = vals[0]
			}
			if found[1] {
				if count, ok := parseCachedCount(vals[1], gen); ok {
					return count, nil
				}
			}
		}
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Reaction{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	if useCache {
		if err := r.redis.Set(ctx, cacheKey, gen+":"+strconv.FormatInt(count, 10), reactionCacheExpiration); err != nil {
			logger.For(ctx).WithError(err).Warn("reaction count cache write failed")
		}
	}

	return count, nil
}

// parseCachedCount returns the count only when it was computed under generation gen.
func parseCachedCount(cached, gen string) (int64, bool) {
	cachedGen, raw, ok := strings.Cut(cached, ":")
	if !ok || cachedGen != gen {
		return 0, false
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

func (r *reactionRepository) bumpCountGeneration(ctx context.Context, postID string) {
	if r.redis == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := r.redis.Incr(ctx, reactionCountGenPrefix+postID, reactionGenExpiration); err != nil {
		// fall back to dropping the value; a concurrent reader may still rewrite it until the TTL
		logger.For(ctx).WithError(err).Warn("reaction count generation bump failed")
		if err := r.redis.Delete(ctx, reactionCountCachePrefix+postID); err != nil {
			logger.For(ctx).WithError(err).Warn("reaction count cache invalidation failed")
		}
	}
}
