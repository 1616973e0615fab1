package service

import (
	"context"
	"errors"

	"github.com/lostmedia/interaction-service/internal/gateway"
	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/model"
	"github.com/lostmedia/interaction-service/internal/repository"
	"github.com/lostmedia/interaction-service/internal/validate"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// comment bodies are 1..2000 characters and not only whitespace
const contentTags = "required,notblank,max=2000"

type CommentService interface {
	CreateComment(ctx context.Context, authorID string, req CreateCommentRequest) (*CommentView, error)
	EditComment(ctx context.Context, requesterID, commentID string, req EditCommentRequest) (*model.Comment, error)
	DeleteComment(ctx context.Context, requesterID, commentID string) error
	ToggleLike(ctx context.Context, userID, commentID string) (*LikeResult, error)
	ListPostComments(ctx context.Context, postID string, q PageQuery) (*Page[CommentView], error)
	ListReplies(ctx context.Context, commentID string, q PageQuery) (*Page[CommentView], error)
	ReconcilePost(ctx context.Context, postID string) (*repository.RecountResult, error)
	ReconcileComment(ctx context.Context, commentID string) (*model.Comment, error)
}

type CreateCommentRequest struct {
	PostID          string  `json:"post_id"`
	Content         string  `json:"content"`
	ParentCommentID *string `json:"parent_comment_id,omitempty"`
	ReplyToUserID   *string `json:"reply_to_user_id,omitempty"`
}

type EditCommentRequest struct {
	Content string `json:"content"`
}

type LikeResult struct {
	Liked bool `json:"liked"`
}

type commentService struct {
	commentRepo repository.CommentRepository
	gateway     Gateway
	emitter     Emitter
	validator   *validator.Validate
	enrich      *enricher
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	gw Gateway,
	emitter Emitter,
	v *validator.Validate,
) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		gateway:     gw,
		emitter:     emitter,
		validator:   v,
		enrich:      &enricher{gateway: gw},
	}
}

// CreateComment validates the post and the author with the gateway, stores the comment and
// emits a comment or reply event. Replying to a reply attaches the new comment to that
// reply's top-level parent and addresses the reply's author, so threads stay two levels deep.
func (s *commentService) CreateComment(ctx context.Context, authorID string, req CreateCommentRequest) (*CommentView, error) {
	fields := validate.ValidationMap{
		"author_id": {Value: authorID, Tag: "required,uuid"},
		"post_id":   {Value: req.PostID, Tag: "required,uuid"},
		"content":   {Value: req.Content, Tag: contentTags},
	}
	if req.ParentCommentID != nil {
		fields["parent_comment_id"] = validate.ValWithTags{Value: *req.ParentCommentID, Tag: "required,uuid"}
	}
	if req.ReplyToUserID != nil {
		fields["reply_to_user_id"] = validate.ValWithTags{Value: *req.ReplyToUserID, Tag: "required,uuid"}
	}
	if err := validate.ValidateFields(s.validator, fields); err != nil {
		return nil, invalidInput(err)
	}

	post, err := s.validatePost(ctx, req.PostID)
	if err != nil {
		return nil, err
	}

	author, err := s.gateway.ResolveUser(ctx, authorID)
	if err != nil {
		if errors.Is(err, gateway.ErrUserNotFound) {
			return nil, notFound(MsgUserNotFound, err)
		}
		return nil, unavailable(MsgFetchUserFailed, err)
	}
	authorSummary := summaryFromIdentity(*author)

	comment := &model.Comment{
		PostID:        req.PostID,
		AuthorID:      authorID,
		AuthorName:    authorSummary.DisplayName,
		Content:       req.Content,
		ReplyToUserID: req.ReplyToUserID,
	}

	if req.ParentCommentID != nil {
		parent, err := s.commentRepo.FindByID(ctx, *req.ParentCommentID)
		if err != nil {
			if errors.Is(err, repository.ErrCommentNotFound) {
				return nil, notFound(MsgParentNotFound, err)
			}
			return nil, internal(MsgCreateCommentFailed, err)
		}
		if parent.PostID != req.PostID {
			return nil, notFound(MsgParentNotFound, repository.ErrParentNotFound)
		}

		rootID := parent.ID
		if parent.IsReply() {
			rootID = *parent.ParentCommentID
		}
		comment.ParentCommentID = &rootID
		if comment.ReplyToUserID == nil {
			target := parent.AuthorID
			comment.ReplyToUserID = &target
		}
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrParentNotFound) {
			return nil, notFound(MsgParentNotFound, err)
		}
		logger.For(ctx).WithError(err).WithField("post_id", req.PostID).Error("failed to create comment")
		return nil, internal(MsgCreateCommentFailed, err)
	}

	kind := model.EventKindComment
	if comment.IsReply() {
		kind = model.EventKindReply
	}
	evt := model.InteractionEvent{
		EventKind:        kind,
		PostID:           comment.PostID,
		ActorID:          authorID,
		ActorDisplayName: authorSummary.DisplayName,
		PostOwnerID:      post.OwnerID,
		CommentID:        comment.ID,
		ParentCommentID:  comment.ParentCommentID,
		ReplyToUserID:    comment.ReplyToUserID,
	}
	if authorSummary.AvatarURL != nil {
		evt.ActorAvatarURL = *authorSummary.AvatarURL
	}
	s.emitter.Emit(ctx, evt)

	view := &CommentView{Comment: comment, Author: authorSummary}
	if comment.ReplyToUserID != nil {
		target := s.enrich.resolve(ctx, []string{*comment.ReplyToUserID}).get(*comment.ReplyToUserID)
		view.ReplyToUser = &target
	}
	return view, nil
}

// validatePost separates a clean "no such post" from an unreachable gateway.
func (s *commentService) validatePost(ctx context.Context, postID string) (*gateway.PostInfo, error) {
	post, err := s.gateway.ValidatePost(ctx, postID)
	if err != nil {
		return nil, unavailable(MsgValidatePostFailed, err)
	}
	if !post.Exists {
		return nil, notFound(MsgPostNotFound, nil)
	}
	return post, nil
}

func (s *commentService) EditComment(ctx context.Context, requesterID, commentID string, req EditCommentRequest) (*model.Comment, error) {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"requester_id": {Value: requesterID, Tag: "required,uuid"},
		"comment_id":   {Value: commentID, Tag: "required,uuid"},
		"content":      {Value: req.Content, Tag: contentTags},
	}); err != nil {
		return nil, invalidInput(err)
	}

	if _, err := s.ownedComment(ctx, requesterID, commentID, MsgEditCommentFailed); err != nil {
		return nil, err
	}

	updated, err := s.commentRepo.UpdateContent(ctx, commentID, req.Content)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, notFound(MsgCommentNotFound, err)
		}
		logger.For(ctx).WithError(err).WithField("comment_id", commentID).Error("failed to edit comment")
		return nil, internal(MsgEditCommentFailed, err)
	}
	return updated, nil
}

func (s *commentService) DeleteComment(ctx context.Context, requesterID, commentID string) error {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"requester_id": {Value: requesterID, Tag: "required,uuid"},
		"comment_id":   {Value: commentID, Tag: "required,uuid"},
	}); err != nil {
		return invalidInput(err)
	}

	comment, err := s.ownedComment(ctx, requesterID, commentID, MsgDeleteCommentFailed)
	if err != nil {
		return err
	}

	removed, err := s.commentRepo.Delete(ctx, comment)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return notFound(MsgCommentNotFound, err)
		}
		logger.For(ctx).WithError(err).WithField("comment_id", commentID).Error("failed to delete comment")
		return internal(MsgDeleteCommentFailed, err)
	}

	logger.For(ctx).WithFields(logrus.Fields{
		"comment_id": commentID,
		"removed":    removed,
	}).Info("comment deleted")
	return nil
}

// ownedComment loads the comment and checks that requesterID wrote it.
func (s *commentService) ownedComment(ctx context.Context, requesterID, commentID, failMsg string) (*model.Comment, error) {
	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, notFound(MsgCommentNotFound, err)
		}
		return nil, internal(failMsg, err)
	}
	if comment.AuthorID != requesterID {
		return nil, forbidden(MsgNotCommentOwner)
	}
	return comment, nil
}

func (s *commentService) ToggleLike(ctx context.Context, userID, commentID string) (*LikeResult, error) {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"user_id":    {Value: userID, Tag: "required,uuid"},
		"comment_id": {Value: commentID, Tag: "required,uuid"},
	}); err != nil {
		return nil, invalidInput(err)
	}

	liked, err := s.commentRepo.ToggleLike(ctx, commentID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, notFound(MsgCommentNotFound, err)
		}
		logger.For(ctx).WithError(err).WithField("comment_id", commentID).Error("failed to toggle comment like")
		return nil, internal(MsgToggleLikeFailed, err)
	}
	return &LikeResult{Liked: liked}, nil
}

// ListPostComments returns top-level comments, newest first.
func (s *commentService) ListPostComments(ctx context.Context, postID string, q PageQuery) (*Page[CommentView], error) {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"post_id": {Value: postID, Tag: "required,uuid"},
	}); err != nil {
		return nil, invalidInput(err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	comments, pagination, err := paginate(ctx, q,
		func(ctx context.Context, limit, offset int) ([]*model.Comment, error) {
			return s.commentRepo.FindTopLevelByPost(ctx, postID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.commentRepo.CountTopLevelByPost(ctx, postID)
		},
	)
	if err != nil {
		logger.For(ctx).WithError(err).WithField("post_id", postID).Error("failed to list comments")
		return nil, internal(MsgGetCommentsFailed, err)
	}

	return &Page[CommentView]{
		Items:      s.enrich.comments(ctx, comments),
		Pagination: pagination,
	}, nil
}

// ListReplies returns the direct replies of a comment, oldest first.
func (s *commentService) ListReplies(ctx context.Context, commentID string, q PageQuery) (*Page[CommentView], error) {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"comment_id": {Value: commentID, Tag: "required,uuid"},
	}); err != nil {
		return nil, invalidInput(err)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.commentRepo.FindByID(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, notFound(MsgCommentNotFound, err)
		}
		return nil, internal(MsgGetRepliesFailed, err)
	}

	replies, pagination, err := paginate(ctx, q,
		func(ctx context.Context, limit, offset int) ([]*model.Comment, error) {
			return s.commentRepo.FindReplies(ctx, commentID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.commentRepo.CountReplies(ctx, commentID)
		},
	)
	if err != nil {
		logger.For(ctx).WithError(err).WithField("comment_id", commentID).Error("failed to list replies")
		return nil, internal(MsgGetRepliesFailed, err)
	}

	return &Page[CommentView]{
		Items:      s.enrich.comments(ctx, replies),
		Pagination: pagination,
	}, nil
}

// ReconcilePost recomputes reply and like counters for every comment on a post.
func (s *commentService) ReconcilePost(ctx context.Context, postID string) (*repository.RecountResult, error) {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"post_id": {Value: postID, Tag: "required,uuid"},
	}); err != nil {
		return nil, invalidInput(err)
	}

	result, err := s.commentRepo.RecountPost(ctx, postID)
	if err != nil {
		return nil, internal(MsgReconcileFailed, err)
	}
	logger.For(ctx).WithFields(logrus.Fields{
		"post_id":         postID,
		"orphans_deleted": result.OrphansDeleted,
		"replies_fixed":   result.RepliesFixed,
		"likes_fixed":     result.LikesFixed,
	}).Info("post counters reconciled")
	return result, nil
}

func (s *commentService) ReconcileComment(ctx context.Context, commentID string) (*model.Comment, error) {
	if err := validate.ValidateFields(s.validator, validate.ValidationMap{
		"comment_id": {Value: commentID, Tag: "required,uuid"},
	}); err != nil {
		return nil, invalidInput(err)
	}

	comment, err := s.commentRepo.RecountComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, notFound(MsgCommentNotFound, err)
		}
		return nil, internal(MsgReconcileFailed, err)
	}
	return comment, nil
}
