package service

import (
	"context"

	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/model"
	"github.com/lostmedia/interaction-service/internal/repository"
	"github.com/lostmedia/interaction-service/internal/validate"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type ReactionService interface {
	ReactToPost(ctx context.Context, userID, postID string) (*LikeResult, error)
	GetUserReaction(ctx context.Context, userID, postID string) (*LikeResult, error)
	ListReactions(ctx context.Context, postID string, q PageQuery) (*Page[ReactionView], error)
	CountReactions(ctx context.Context, postID string) (*ReactionCount, error)
}

type ReactionCount struct {
	PostID string `json:"post_id"`
	Count  int64  `json:"count"`
}

type reactionService struct {
	reactionRepo repository.ReactionRepository
	gateway      Gateway
	emitter      Emitter
	validator    *validator.Validate
	enrich       *enricher
}

func NewReactionService(
	reactionRepo repository.ReactionRepository,
	gw Gateway,
	emitter Emitter,
	v *validator.Validate,
) ReactionService {
	return &reactionService{
		reactionRepo: reactionRepo,
		gateway:      gw,
		emitter:      emitter,
		validator:    v,
		enrich:       &enricher{gateway: gw},
	}
}

// ReactToPost toggles the caller's reaction. Only adding a reaction emits an event.
func (s *reactionService) ReactToPost(ctx context.Context, userID, postID string) (*LikeResult, error) {
	if err := s.validateIDs(userID, postID); err != nil {
		return nil, err
	}

	post, err := s.gateway.ValidatePost(ctx, postID)
	if err != nil {
		return nil, unavailable(MsgValidatePostFailed, err)
	}
	if !post.Exists {
		return nil, notFound(MsgPostNotFound, nil)
	}

	liked, err := s.reactionRepo.Toggle(ctx, postID, userID)
	if err != nil {
		logger.For(ctx).WithError(err).WithFields(logrus.Fields{
			"post_id": postID,
			"user_id": userID,
		}).Error("failed to toggle reaction")
		return nil, internal(MsgUpdateLikeFailed, err)
	}

	if liked {
		// the reaction is already stored; a failed lookup only degrades the event
		actor := s.enrich.resolve(ctx, []string{userID}).get(userID)
		evt := model.InteractionEvent{
			EventKind:        model.EventKindReaction,
			PostID:           postID,
			ActorID:          userID,
			ActorDisplayName: actor.DisplayName,
			PostOwnerID:      post.OwnerID,
		}
		if actor.AvatarURL != nil {
			evt.ActorAvatarURL = *actor.AvatarURL
		}
		s.emitter.Emit(ctx, evt)
	}

	return &LikeResult{Liked: liked}, nil
}

func (s *reactionService) GetUserReaction(ctx context.Context, userID, postID string) (*LikeResult, error) {
	if err := s.validateIDs(userID, postID); err != nil {
		return nil, err
	}

	exists, err := s.reactionRepo.Exists(ctx, postID, userID)
	if err != nil {
		return nil, internal(MsgGetLikeStatusFailed, err)
	}
	return &LikeResult{Liked: exists}, nil
}

// ListReactions returns reactions newest first with the reacting users resolved.
func (s *reactionService) ListReactions(ctx context.Context, postID string, q PageQuery) (*Page[ReactionView], error) {
	if err := s.validatePostID(postID); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	reactions, pagination, err := paginate(ctx, q,
		func(ctx context.Context, limit, offset int) ([]*model.Reaction, error) {
			return s.reactionRepo.FindByPost(ctx, postID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.reactionRepo.CountByPost(ctx, postID)
		},
	)
	if err != nil {
		logger.For(ctx).WithError(err).WithField("post_id", postID).Error("failed to list reactions")
		return nil, internal(MsgGetPostLikesFailed, err)
	}

	return &Page[ReactionView]{
		Items:      s.enrich.reactions(ctx, reactions),
		Pagination: pagination,
	}, nil
}

func (s *reactionService) CountReactions(ctx context.Context, postID string) (*ReactionCount, error) {
	if err := s.validatePostID(postID); err != nil {
		return nil, err
	}

	count, err := s.reactionRepo.CountByPost(ctx, postID)
	if err != nil {
		return nil, internal(MsgGetLikeCountFailed, err)
	}
	return &ReactionCount{PostID: postID, Count: count}, nil
}

func (s *reactionService) validateIDs(userID, postID string) error {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"user_id": {Value: userID, Tag: "required,uuid"},
		"post_id": {Value: postID, Tag: "required,uuid"},
	}); err != nil {
		return invalidInput(err)
	}
	return nil
}

func (s *reactionService) validatePostID(postID string) error {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"post_id": {Value: postID, Tag: "required,uuid"},
	}); err != nil {
		return invalidInput(err)
	}
	return nil
}
