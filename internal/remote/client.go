package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/types"
)

// TokenFunc returns the bearer token to send, or "" for none.
type TokenFunc func() string

// Client talks to the assistant API over HTTP. It implements both Store and
// Chatter.
type Client struct {
	baseURL      string
	token        TokenFunc
	historyLimit int
	httpClient   *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHistoryLimit caps how many messages History requests.
func WithHistoryLimit(limit int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.historyLimit = limit
		}
	}
}

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs an API client.
func NewClient(baseURL string, token TokenFunc, opts ...ClientOption) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if token == nil {
		token = func() string { return "" }
	}
	c := &Client{
		baseURL:      normalized,
		token:        token,
		historyLimit: core.DefaultHistoryLimit,
		httpClient: &http.Client{
			Timeout: core.DefaultRequestTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeBaseURL normalizes an API base URL and ensures it has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("api url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("api url must include scheme (https://)")
	}
	return strings.TrimRight(value, "/"), nil
}

// ListThreads fetches the remote thread snapshot, most recent first.
func (c *Client) ListThreads(ctx context.Context) ([]types.Thread, error) {
	var resp threadsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/threads", nil, nil, &resp); err != nil {
		return nil, err
	}
	threads := make([]types.Thread, 0, len(resp.Threads))
	for _, record := range resp.Threads {
		if record.ThreadID == "" {
			continue
		}
		threads = append(threads, record.toThread())
	}
	return threads, nil
}

// History fetches the stored messages of one thread in insertion order.
func (c *Client) History(ctx context.Context, threadID string) ([]types.Message, error) {
	query := url.Values{}
	query.Set("threadId", threadID)
	query.Set("limit", strconv.Itoa(c.historyLimit))
	var resp historyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/history", query, nil, &resp); err != nil {
		return nil, err
	}
	messages := make([]types.Message, 0, len(resp.Messages))
	for _, record := range resp.Messages {
		messages = append(messages, record.toMessage())
	}
	return messages, nil
}

// DeleteThread removes one thread's messages and returns how many went.
func (c *Client) DeleteThread(ctx context.Context, threadID string) (int, error) {
	var resp deleteResponse
	path := "/api/chat/history/" + url.PathEscape(threadID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// DeleteAll removes every stored message of the workspace.
func (c *Client) DeleteAll(ctx context.Context) (int, error) {
	var resp deleteResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/chat/history", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// SetFeedback records or clears the rating of an assistant message.
func (c *Client) SetFeedback(ctx context.Context, messageID string, feedback types.Feedback) error {
	value := string(feedback)
	if feedback == types.FeedbackNone {
		value = "none"
	}
	req := feedbackRequest{MessageID: messageID, Feedback: value}
	return c.doJSON(ctx, http.MethodPost, "/api/chat/feedback", nil, req, nil)
}

// RenameThread stores a custom thread title.
func (c *Client) RenameThread(ctx context.Context, threadID, title string) error {
	path := "/api/chat/threads/" + url.PathEscape(threadID)
	return c.doJSON(ctx, http.MethodPut, path, nil, renameRequest{Title: title}, nil)
}

// Chat sends a user message and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if req.FileIDs == nil {
		req.FileIDs = []string{}
	}
	var payload chatResponsePayload
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat", nil, req, &payload); err != nil {
		return ChatResponse{}, err
	}
	return payload.toResponse(), nil
}

// RequestCode asks the server for a new workspace code.
func (c *Client) RequestCode(ctx context.Context) (string, error) {
	var resp requestCodeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/request-code", nil, struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// Verify exchanges a workspace code for a session.
func (c *Client) Verify(ctx context.Context, code string) (types.Session, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return types.Session{}, fmt.Errorf("code is required")
	}
	var resp verifyResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/verify", nil, verifyRequest{Code: code}, &resp); err != nil {
		return types.Session{}, err
	}
	session := types.Session{Token: resp.Token, ProfileID: resp.ProfileID}
	if resp.ExpiresAt > 0 {
		session.ExpiresAt = time.UnixMilli(resp.ExpiresAt).UTC()
	}
	return session, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	endpoint, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload apiErrorPayload
		if err := json.Unmarshal(respData, &payload); err == nil {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
			if apiErr.Message == "" {
				apiErr.Message = payload.Details
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(respData))
		}
		return apiErr
	}

	if respBody == nil || len(respData) == 0 {
		return nil
	}
	if err := json.Unmarshal(respData, respBody); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	endpoint := base.ResolveReference(ref)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
