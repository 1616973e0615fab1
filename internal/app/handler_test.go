package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lostmedia/interaction-service/internal/config"
	"github.com/lostmedia/interaction-service/internal/model"
	"github.com/lostmedia/interaction-service/internal/repository"
	"github.com/lostmedia/interaction-service/internal/service"
	"github.com/lostmedia/interaction-service/internal/util"
	"github.com/lostmedia/interaction-service/internal/validate"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "handler-test-secret"
	testUserID = "0c1f9a52-8d7e-4a8b-9c33-51b0a3a3e001"
	testPostID = "7a4c2e10-1b2d-4e5f-8a9b-0c1d2e3f4a5b"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCommentService struct {
	err       error
	lastQuery service.PageQuery
	lastUser  string
	lastReq   service.CreateCommentRequest
}

func (s *stubCommentService) CreateComment(ctx context.Context, authorID string, req service.CreateCommentRequest) (*service.CommentView, error) {
	s.lastUser, s.lastReq = authorID, req
	if s.err != nil {
		return nil, s.err
	}
	return &service.CommentView{
		Comment: &model.Comment{ID: "c1", PostID: req.PostID, AuthorID: authorID, Content: req.Content},
		Author:  service.UserSummary{UserID: authorID, DisplayName: "alice"},
	}, nil
}

func (s *stubCommentService) EditComment(ctx context.Context, requesterID, commentID string, req service.EditCommentRequest) (*model.Comment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Comment{ID: commentID, Content: req.Content, IsEdited: true}, nil
}

func (s *stubCommentService) DeleteComment(ctx context.Context, requesterID, commentID string) error {
	return s.err
}

func (s *stubCommentService) ToggleLike(ctx context.Context, userID, commentID string) (*service.LikeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.LikeResult{Liked: true}, nil
}

func (s *stubCommentService) ListPostComments(ctx context.Context, postID string, q service.PageQuery) (*service.Page[service.CommentView], error) {
	s.lastQuery = q
	if s.err != nil {
		return nil, s.err
	}
	return &service.Page[service.CommentView]{
		Items:      []service.CommentView{},
		Pagination: service.NewPagination(q, 0),
	}, nil
}

func (s *stubCommentService) ListReplies(ctx context.Context, commentID string, q service.PageQuery) (*service.Page[service.CommentView], error) {
	return s.ListPostComments(ctx, commentID, q)
}

func (s *stubCommentService) ReconcilePost(ctx context.Context, postID string) (*repository.RecountResult, error) {
	return &repository.RecountResult{}, s.err
}

func (s *stubCommentService) ReconcileComment(ctx context.Context, commentID string) (*model.Comment, error) {
	return &model.Comment{ID: commentID}, s.err
}

type stubReactionService struct {
	liked bool
	err   error
}

func (s *stubReactionService) ReactToPost(ctx context.Context, userID, postID string) (*service.LikeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.liked = !s.liked
	return &service.LikeResult{Liked: s.liked}, nil
}

func (s *stubReactionService) GetUserReaction(ctx context.Context, userID, postID string) (*service.LikeResult, error) {
	return &service.LikeResult{Liked: s.liked}, s.err
}

func (s *stubReactionService) ListReactions(ctx context.Context, postID string, q service.PageQuery) (*service.Page[service.ReactionView], error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.Page[service.ReactionView]{Items: []service.ReactionView{}, Pagination: service.NewPagination(q, 0)}, nil
}

func (s *stubReactionService) CountReactions(ctx context.Context, postID string) (*service.ReactionCount, error) {
	if s.err != nil {
		return nil, s.err
	}
	n := int64(0)
	if s.liked {
		n = 1
	}
	return &service.ReactionCount{PostID: postID, Count: n}, nil
}

type stubInteractionService struct {
	lastViewer string
	err        error
}

func (s *stubInteractionService) GetPostInteractionCounts(ctx context.Context, postID, viewerID string) (*service.InteractionCounts, error) {
	s.lastViewer = viewerID
	if s.err != nil {
		return nil, s.err
	}
	counts := &service.InteractionCounts{PostID: postID, ReactionCount: 3, CommentCount: 5}
	if viewerID != "" {
		liked := true
		counts.IsLiked = &liked
	}
	return counts, nil
}

type testEnv struct {
	router       *gin.Engine
	comments     *stubCommentService
	reactions    *stubReactionService
	interactions *stubInteractionService
	token        string
}

func newTestEnv(t *testing.T, checks map[string]func(*gin.Context) error) *testEnv {
	t.Helper()
	token, err := util.GenerateToken(util.Claims{
		UserID: testUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)
	require.NoError(t, err)

	env := &testEnv{
		comments:     &stubCommentService{},
		reactions:    &stubReactionService{},
		interactions: &stubInteractionService{},
		token:        token,
	}
	env.router = NewRouter(&config.Config{JWTSecret: testSecret}, Handlers{
		Comments:     NewCommentHandler(env.comments),
		Reactions:    NewReactionHandler(env.reactions),
		Interactions: NewInteractionHandler(env.interactions),
		HealthChecks: checks,
	})
	return env
}

func (e *testEnv) do(method, path, body string, authed bool) (*httptest.ResponseRecorder, util.Response) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp util.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestCreateComment_Handler(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"post_id":"` + testPostID + `","content":"hello"}`

	w, _ := env.do(http.MethodPost, "/api/v1/comments", body, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := env.do(http.MethodPost, "/api/v1/comments", body, true)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, testUserID, env.comments.lastUser)
	assert.Equal(t, "hello", env.comments.lastReq.Content)

	data := resp.Data.(map[string]interface{})
	comment := data["comment"].(map[string]interface{})
	assert.Equal(t, "c1", comment["id"])
	assert.Equal(t, "alice", comment["author"].(map[string]interface{})["display_name"])

	w, _ = env.do(http.MethodPost, "/api/v1/comments", `{"post_id":`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "not found",
			err:     &service.Error{Kind: service.KindNotFound, Message: service.MsgCommentNotFound},
			status:  http.StatusNotFound,
			message: service.MsgCommentNotFound,
		},
		{
			name:    "forbidden",
			err:     &service.Error{Kind: service.KindForbidden, Message: service.MsgNotCommentOwner},
			status:  http.StatusForbidden,
			message: service.MsgNotCommentOwner,
		},
		{
			name:    "dependency unavailable",
			err:     &service.Error{Kind: service.KindDependencyUnavailable, Message: service.MsgValidatePostFailed, Err: errors.New("timeout")},
			status:  http.StatusServiceUnavailable,
			message: service.MsgValidatePostFailed,
		},
		{
			name:    "internal keeps cause private",
			err:     &service.Error{Kind: service.KindInternal, Message: service.MsgDeleteCommentFailed, Err: errors.New("pq: secret detail")},
			status:  http.StatusInternalServerError,
			message: service.MsgDeleteCommentFailed,
		},
		{
			name:    "unclassified",
			err:     errors.New("raw"),
			status:  http.StatusInternalServerError,
			message: msgInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.comments.err = tt.err

			w, resp := env.do(http.MethodDelete, "/api/v1/comments/c1", "", true)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestInvalidInputListsFields(t *testing.T) {
	env := newTestEnv(t, nil)
	env.comments.err = &service.Error{
		Kind:    service.KindInvalidInput,
		Message: service.MsgInvalidInput,
		Err:     validate.ErrInvalidInput{Fields: []string{"content"}, Reasons: []string{"failed 'notblank'"}},
	}

	w, resp := env.do(http.MethodPut, "/api/v1/comments/c1", `{"content":" "}`, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgInvalidInput, resp.Message)
	assert.Equal(t, map[string]interface{}{"content": "failed 'notblank'"}, resp.Errors)
}

func TestListComments_PageQuery(t *testing.T) {
	env := newTestEnv(t, nil)

	w, resp := env.do(http.MethodGet, "/api/v1/posts/"+testPostID+"/comments", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.PageQuery{Page: 1, Limit: 10}, env.comments.lastQuery)
	pagination := resp.Data.(map[string]interface{})["pagination"].(map[string]interface{})
	assert.Equal(t, false, pagination["has_more"])

	w, _ = env.do(http.MethodGet, "/api/v1/posts/"+testPostID+"/comments?page=3&limit=25", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.PageQuery{Page: 3, Limit: 25}, env.comments.lastQuery)

	w, _ = env.do(http.MethodGet, "/api/v1/comments/c1/replies?page=two", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReactionRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	base := "/api/v1/posts/" + testPostID

	w, _ := env.do(http.MethodPost, base+"/react", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := env.do(http.MethodPost, base+"/react", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["liked"])

	w, resp = env.do(http.MethodGet, base+"/react/me", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["liked"])

	w, resp = env.do(http.MethodGet, base+"/reactions/count", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp.Data.(map[string]interface{})["count"])

	w, resp = env.do(http.MethodPost, base+"/react", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["liked"])

	w, _ = env.do(http.MethodGet, base+"/reactions?limit=5", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostInteractions_Handler(t *testing.T) {
	env := newTestEnv(t, nil)
	path := "/api/v1/posts/" + testPostID + "/interactions"

	w, resp := env.do(http.MethodGet, path, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.interactions.lastViewer)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["reaction_count"])
	assert.Equal(t, float64(5), data["comment_count"])
	assert.NotContains(t, data, "is_liked")

	w, resp = env.do(http.MethodGet, path, "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testUserID, env.interactions.lastViewer)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["is_liked"])

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToggleCommentLike_Handler(t *testing.T) {
	env := newTestEnv(t, nil)

	w, resp := env.do(http.MethodPost, "/api/v1/comments/c1/like", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Comment liked successfully", resp.Message)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, map[string]func(*gin.Context) error{
		"postgres": func(*gin.Context) error { return nil },
	})
	w, _ := env.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","postgres":"up"}`, w.Body.String())

	env = newTestEnv(t, map[string]func(*gin.Context) error{
		"postgres": func(*gin.Context) error { return nil },
		"redis":    func(*gin.Context) error { return errors.New("refused") },
	})
	w, _ = env.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","postgres":"up","redis":"down"}`, w.Body.String())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, connectBaseDelay, backoff(1))
	assert.Equal(t, 2*connectBaseDelay, backoff(2))
	assert.Equal(t, connectMaxDelay, backoff(10))
}

func TestRetryStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry(ctx, "test", func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
