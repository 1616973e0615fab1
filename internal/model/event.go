package model

import "time"

type EventKind string

// Event kinds published to the interaction exchange
const (
	EventKindComment  EventKind = "comment"
	EventKindReply    EventKind = "reply"
	EventKindReaction EventKind = "reaction"
)

// RoutingKey returns the exchange routing key for the kind.
func (k EventKind) RoutingKey() string {
	switch k {
	case EventKindReply:
		return "post.reply"
	case EventKindReaction:
		return "post.react"
	default:
		return "post.comment"
	}
}

// InteractionEvent is the payload other services consume to build notifications.
type InteractionEvent struct {
	EventKind        EventKind `json:"eventKind"`
	PostID           string    `json:"postId"`
	ActorID          string    `json:"actorId"`
	ActorDisplayName string    `json:"actorDisplayName"`
	ActorAvatarURL   string    `json:"actorAvatarUrl"`
	PostOwnerID      string    `json:"postOwnerId"`
	CommentID        string    `json:"commentId,omitempty"`
	ParentCommentID  *string   `json:"parentCommentId,omitempty"`
	ReplyToUserID    *string   `json:"replyToUserId,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}
