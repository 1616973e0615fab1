package service

import (
	"context"

	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/repository"
	"github.com/lostmedia/interaction-service/internal/validate"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// InteractionService serves the per-post summary shown on post cards.
type InteractionService interface {
	GetPostInteractionCounts(ctx context.Context, postID, viewerID string) (*InteractionCounts, error)
}

// InteractionCounts is the summary of a post's activity. IsLiked is only set for a known viewer.
type InteractionCounts struct {
	PostID        string `json:"post_id"`
	ReactionCount int64  `json:"reaction_count"`
	CommentCount  int64  `json:"comment_count"`
	IsLiked       *bool  `json:"is_liked,omitempty"`
}

type interactionService struct {
	commentRepo  repository.CommentRepository
	reactionRepo repository.ReactionRepository
	validator    *validator.Validate
}

func NewInteractionService(
	commentRepo repository.CommentRepository,
	reactionRepo repository.ReactionRepository,
	v *validator.Validate,
) InteractionService {
	return &interactionService{
		commentRepo:  commentRepo,
		reactionRepo: reactionRepo,
		validator:    v,
	}
}

// GetPostInteractionCounts counts reactions and comments (replies included) on a post.
// viewerID may be empty for anonymous callers.
func (s *interactionService) GetPostInteractionCounts(ctx context.Context, postID, viewerID string) (*InteractionCounts, error) {
	fields := validate.ValidationMap{
		"post_id": {Value: postID, Tag: "required,uuid"},
	}
	if viewerID != "" {
		fields["user_id"] = validate.ValWithTags{Value: viewerID, Tag: "uuid"}
	}
	if err := validate.ValidateFields(s.validator, fields); err != nil {
		return nil, invalidInput(err)
	}

	counts := &InteractionCounts{PostID: postID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts.ReactionCount, err = s.reactionRepo.CountByPost(gctx, postID)
		return err
	})
	g.Go(func() error {
		var err error
		counts.CommentCount, err = s.commentRepo.CountByPost(gctx, postID)
		return err
	})
	if viewerID != "" {
		g.Go(func() error {
			liked, err := s.reactionRepo.Exists(gctx, postID, viewerID)
			if err != nil {
				return err
			}
			counts.IsLiked = &liked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.For(ctx).WithError(err).WithField("post_id", postID).Error("failed to count post interactions")
		return nil, internal(MsgGetInteractionsFailed, err)
	}
	return counts, nil
}
