package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lostmedia/interaction-service/internal/gateway"
	"github.com/lostmedia/interaction-service/internal/model"
	"github.com/lostmedia/interaction-service/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// memCommentRepo mirrors the PostgreSQL store's semantics in memory.
type memCommentRepo struct {
	mu       sync.Mutex
	comments map[string]*model.Comment
	seq      int
	base     time.Time
	err      error
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{
		comments: make(map[string]*model.Comment),
		base:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func clone(c *model.Comment) *model.Comment {
	cp := *c
	cp.LikedBy = append(pq.StringArray{}, c.LikedBy...)
	return &cp
}

func (r *memCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if c.IsReply() {
		parent, ok := r.comments[*c.ParentCommentID]
		if !ok || parent.PostID != c.PostID {
			return repository.ErrParentNotFound
		}
		parent.ReplyCount++
	}
	r.seq++
	c.ID = uuid.New().String()
	c.LikedBy = pq.StringArray{}
	c.CreatedAt = r.base.Add(time.Duration(r.seq) * time.Second)
	c.UpdatedAt = c.CreatedAt
	r.comments[c.ID] = clone(c)
	return nil
}

func (r *memCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	return clone(c), nil
}

func (r *memCommentRepo) UpdateContent(ctx context.Context, id, content string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	c.Content = content
	c.IsEdited = true
	c.UpdatedAt = c.UpdatedAt.Add(time.Second)
	return clone(c), nil
}

func (r *memCommentRepo) Delete(ctx context.Context, c *model.Comment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[c.ID]; !ok {
		return 0, repository.ErrCommentNotFound
	}
	var removed int64
	if c.IsReply() {
		if parent, ok := r.comments[*c.ParentCommentID]; ok && parent.ReplyCount > 0 {
			parent.ReplyCount--
		}
	} else {
		for id, child := range r.comments {
			if child.IsReply() && *child.ParentCommentID == c.ID {
				delete(r.comments, id)
				removed++
			}
		}
	}
	delete(r.comments, c.ID)
	return removed + 1, nil
}

func (r *memCommentRepo) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return false, repository.ErrCommentNotFound
	}
	for i, id := range c.LikedBy {
		if id == userID {
			c.LikedBy = append(c.LikedBy[:i:i], c.LikedBy[i+1:]...)
			c.LikeCount = int64(len(c.LikedBy))
			return false, nil
		}
	}
	c.LikedBy = append(c.LikedBy, userID)
	c.LikeCount = int64(len(c.LikedBy))
	return true, nil
}

func (r *memCommentRepo) filter(keep func(*model.Comment) bool, newestFirst bool) []*model.Comment {
	var out []*model.Comment
	for _, c := range r.comments {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func window(items []*model.Comment, limit, offset int) []*model.Comment {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (r *memCommentRepo) FindTopLevelByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	all := r.filter(func(c *model.Comment) bool { return c.PostID == postID && !c.IsReply() }, true)
	return window(all, limit, offset), nil
}

func (r *memCommentRepo) CountTopLevelByPost(ctx context.Context, postID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.filter(func(c *model.Comment) bool { return c.PostID == postID && !c.IsReply() }, true))), nil
}

func (r *memCommentRepo) CountByPost(ctx context.Context, postID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.filter(func(c *model.Comment) bool { return c.PostID == postID }, true))), nil
}

func (r *memCommentRepo) isChildOf(parentID string) func(*model.Comment) bool {
	return func(c *model.Comment) bool { return c.IsReply() && *c.ParentCommentID == parentID }
}

func (r *memCommentRepo) FindReplies(ctx context.Context, parentID string, limit, offset int) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return window(r.filter(r.isChildOf(parentID), false), limit, offset), nil
}

func (r *memCommentRepo) CountReplies(ctx context.Context, parentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.filter(r.isChildOf(parentID), false))), nil
}

func (r *memCommentRepo) RecountPost(ctx context.Context, postID string) (*repository.RecountResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := &repository.RecountResult{}
	for id, c := range r.comments {
		if c.PostID == postID && c.IsReply() {
			if _, ok := r.comments[*c.ParentCommentID]; !ok {
				delete(r.comments, id)
				result.OrphansDeleted++
			}
		}
	}
	for _, c := range r.comments {
		if c.PostID != postID {
			continue
		}
		if n := int64(len(r.filter(r.isChildOf(c.ID), false))); n != c.ReplyCount {
			c.ReplyCount = n
			result.RepliesFixed++
		}
		if n := int64(len(c.LikedBy)); n != c.LikeCount {
			c.LikeCount = n
			result.LikesFixed++
		}
	}
	return result, nil
}

func (r *memCommentRepo) RecountComment(ctx context.Context, id string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	c.ReplyCount = int64(len(r.filter(r.isChildOf(id), false)))
	c.LikeCount = int64(len(c.LikedBy))
	return clone(c), nil
}

// corrupt lets tests simulate counter drift.
func (r *memCommentRepo) corrupt(id string, replyCount, likeCount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments[id].ReplyCount = replyCount
	r.comments[id].LikeCount = likeCount
}

func (r *memCommentRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.comments)
}

type memReactionRepo struct {
	mu        sync.Mutex
	reactions []*model.Reaction
	seq       int
	err       error
}

func (r *memReactionRepo) indexOf(postID, userID string) int {
	for i, rc := range r.reactions {
		if rc.PostID == postID && rc.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *memReactionRepo) Toggle(ctx context.Context, postID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if i := r.indexOf(postID, userID); i >= 0 {
		r.reactions = append(r.reactions[:i], r.reactions[i+1:]...)
		return false, nil
	}
	r.seq++
	r.reactions = append(r.reactions, &model.Reaction{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    userID,
		ReactedAt: time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC),
	})
	return true, nil
}

func (r *memReactionRepo) Exists(ctx context.Context, postID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	return r.indexOf(postID, userID) >= 0, nil
}

func (r *memReactionRepo) byPost(postID string) []*model.Reaction {
	var out []*model.Reaction
	for _, rc := range r.reactions {
		if rc.PostID == postID {
			cp := *rc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReactedAt.After(out[j].ReactedAt) })
	return out
}

func (r *memReactionRepo) FindByPost(ctx context.Context, postID string, limit, offset int) ([]*model.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.byPost(postID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memReactionRepo) CountByPost(ctx context.Context, postID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.byPost(postID))), nil
}

type fakeGateway struct {
	mu         sync.Mutex
	posts      map[string]string // post id -> owner id
	users      map[string]gateway.Identity
	postErr    error
	userErr    error
	batchErr   error
	batchCalls int
	calls      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		posts: make(map[string]string),
		users: make(map[string]gateway.Identity),
	}
}

func (g *fakeGateway) addPost(postID, ownerID string) {
	g.posts[postID] = ownerID
}

func (g *fakeGateway) addUser(userID, name string) {
	g.users[userID] = gateway.Identity{
		UserID:      userID,
		DisplayName: name,
		Handle:      "@" + name,
		AvatarURL:   "https://cdn.example.com/" + name + ".png",
	}
}

func (g *fakeGateway) ValidatePost(ctx context.Context, postID string) (*gateway.PostInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.postErr != nil {
		return nil, g.postErr
	}
	owner, ok := g.posts[postID]
	return &gateway.PostInfo{Exists: ok, OwnerID: owner}, nil
}

func (g *fakeGateway) ResolveUser(ctx context.Context, userID string) (*gateway.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.userErr != nil {
		return nil, g.userErr
	}
	ident, ok := g.users[userID]
	if !ok {
		return nil, gateway.ErrUserNotFound
	}
	return &ident, nil
}

func (g *fakeGateway) ResolveUsers(ctx context.Context, userIDs []string) ([]gateway.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.batchCalls++
	if g.batchErr != nil {
		return nil, g.batchErr
	}
	var out []gateway.Identity
	for _, id := range userIDs {
		if ident, ok := g.users[id]; ok {
			out = append(out, ident)
		}
	}
	return out, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []model.InteractionEvent
}

func (e *recordingEmitter) Emit(ctx context.Context, evt model.InteractionEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) emitted() []model.InteractionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.InteractionEvent(nil), e.events...)
}
