// Package gateway talks to the identity/post service that owns users and posts.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/util"
)

var (
	// ErrUnavailable covers transport failures, timeouts and unexpected statuses.
	// It is never returned for a clean negative answer.
	ErrUnavailable  = errors.New("gateway unavailable")
	ErrUserNotFound = errors.New("user not found")
)

const identityCachePrefix = "identity:"

type PostInfo struct {
	Exists  bool   `json:"exists"`
	OwnerID string `json:"ownerId"`
}

type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatarUrl"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	cache      *util.RedisClient
	cacheTTL   time.Duration
}

type Option func(*Client)

// WithIdentityCache caches resolved identities in Redis for ttl.
func WithIdentityCache(cache *util.RedisClient, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient returns a client whose every call is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidatePost asks whether postID exists and who owns it.
func (c *Client) ValidatePost(ctx context.Context, postID string) (*PostInfo, error) {
	var info PostInfo
	status, err := c.post(ctx, "/internal/posts/validate", map[string]string{"postId": postID}, &info)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &PostInfo{Exists: false}, nil
	}
	return &info, nil
}

// ResolveUser returns the display identity of one user.
func (c *Client) ResolveUser(ctx context.Context, userID string) (*Identity, error) {
	if cached := c.cachedIdentities(ctx, []string{userID}); len(cached) == 1 {
		return &cached[0], nil
	}

	var ident Identity
	status, err := c.post(ctx, "/internal/users/resolve", map[string]string{"userId": userID}, &ident)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if ident.UserID == "" {
		ident.UserID = userID
	}
	c.storeIdentities(ctx, []Identity{ident})
	return &ident, nil
}

type batchResponse struct {
	Users []Identity `json:"users"`
}

// ResolveUsers resolves many users in one round trip. Unknown ids are absent from the result.
func (c *Client) ResolveUsers(ctx context.Context, userIDs []string) ([]Identity, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	found := c.cachedIdentities(ctx, userIDs)
	if len(found) == len(userIDs) {
		return found, nil
	}
	have := make(map[string]bool, len(found))
	for _, ident := range found {
		have[ident.UserID] = true
	}
	missing := make([]string, 0, len(userIDs)-len(found))
	for _, id := range userIDs {
		if !have[id] {
			missing = append(missing, id)
		}
	}

	var resp batchResponse
	if _, err := c.post(ctx, "/internal/users/resolve-batch", map[string][]string{"userIds": missing}, &resp); err != nil {
		return nil, err
	}
	c.storeIdentities(ctx, resp.Users)
	return append(found, resp.Users...), nil
}

// post sends a JSON request. 2xx bodies are decoded into out; 404 is returned as a status
// without error so callers can map it to their own negative answer.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) cachedIdentities(ctx context.Context, userIDs []string) []Identity {
	if c.cache == nil {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = identityCachePrefix + id
	}
	vals, ok, err := c.cache.MGet(ctx, keys...)
	if err != nil {
		logger.For(ctx).WithError(err).Warn("identity cache read failed")
		return nil
	}
	var out []Identity
	for i := range vals {
		if !ok[i] {
			continue
		}
		var ident Identity
		if err := json.Unmarshal([]byte(vals[i]), &ident); err == nil {
			out = append(out, ident)
		}
	}
	return out
}

func (c *Client) storeIdentities(ctx context.Context, idents []Identity) {
	if c.cache == nil {
		return
	}
	for _, ident := range idents {
		if err := c.cache.Set(ctx, identityCachePrefix+ident.UserID, ident, c.cacheTTL); err != nil {
			logger.For(ctx).WithError(err).Warn("identity cache write failed")
			return
		}
	}
}
