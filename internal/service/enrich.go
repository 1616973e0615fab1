package service

import (
	"context"

	"github.com/lostmedia/interaction-service/internal/gateway"
	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/model"
)

// UnknownDisplayName stands in for users the identity service could not resolve.
const UnknownDisplayName = "Unknown"

// Gateway is the identity/post service as the orchestration layer sees it.
type Gateway interface {
	ValidatePost(ctx context.Context, postID string) (*gateway.PostInfo, error)
	ResolveUser(ctx context.Context, userID string) (*gateway.Identity, error)
	ResolveUsers(ctx context.Context, userIDs []string) ([]gateway.Identity, error)
}

type UserSummary struct {
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Handle      string  `json:"handle"`
	AvatarURL   *string `json:"avatar_url"`
}

func unknownUser(userID string) UserSummary {
	return UserSummary{UserID: userID, DisplayName: UnknownDisplayName}
}

func summaryFromIdentity(ident gateway.Identity) UserSummary {
	s := UserSummary{
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		Handle:      ident.Handle,
	}
	if s.DisplayName == "" {
		s.DisplayName = UnknownDisplayName
	}
	if ident.AvatarURL != "" {
		avatar := ident.AvatarURL
		s.AvatarURL = &avatar
	}
	return s
}

type CommentView struct {
	*model.Comment
	Author      UserSummary  `json:"author"`
	ReplyToUser *UserSummary `json:"reply_to_user,omitempty"`
}

type ReactionView struct {
	*model.Reaction
	User UserSummary `json:"user"`
}

// identities is the result of one batch lookup.
type identities map[string]UserSummary

func (ids identities) get(userID string) UserSummary {
	if s, ok := ids[userID]; ok {
		return s
	}
	return unknownUser(userID)
}

type enricher struct {
	gateway Gateway
}

// resolve looks up every distinct non-empty id with a single gateway call. A failed call
// degrades to an empty result so the page still renders with sentinel identities.
func (e *enricher) resolve(ctx context.Context, userIDs []string) identities {
	seen := make(map[string]struct{}, len(userIDs))
	distinct := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	out := make(identities, len(distinct))
	if len(distinct) == 0 {
		return out
	}

	resolved, err := e.gateway.ResolveUsers(ctx, distinct)
	if err != nil {
		logger.For(ctx).WithError(err).WithField("user_count", len(distinct)).
			Warn("identity batch lookup failed, using placeholders")
		return out
	}
	for _, ident := range resolved {
		if _, wanted := seen[ident.UserID]; wanted {
			out[ident.UserID] = summaryFromIdentity(ident)
		}
	}
	return out
}

func (e *enricher) comments(ctx context.Context, comments []*model.Comment) []CommentView {
	ids := make([]string, 0, len(comments)*2)
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
		if c.ReplyToUserID != nil {
			ids = append(ids, *c.ReplyToUserID)
		}
	}
	resolved := e.resolve(ctx, ids)

	views := make([]CommentView, len(comments))
	for i, c := range comments {
		views[i] = CommentView{Comment: c, Author: resolved.get(c.AuthorID)}
		if c.ReplyToUserID != nil && *c.ReplyToUserID != "" {
			target := resolved.get(*c.ReplyToUserID)
			views[i].ReplyToUser = &target
		}
	}
	return views
}

func (e *enricher) reactions(ctx context.Context, reactions []*model.Reaction) []ReactionView {
	ids := make([]string, len(reactions))
	for i, r := range reactions {
		ids[i] = r.UserID
	}
	resolved := e.resolve(ctx, ids)

	views := make([]ReactionView, len(reactions))
	for i, r := range reactions {
		views[i] = ReactionView{Reaction: r, User: resolved.get(r.UserID)}
	}
	return views
}
