package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type history struct {
	Messages     []Message    `json:"messages"`
	Participants Participants `json:"participants"`
}

func (s *Subscriber) fetchHistory(ctx context.Context, token, requestID string) (history, error) {
	var out history
	err := s.doJSON(ctx, token, http.MethodGet, "/api/messages/"+url.PathEscape(requestID), &out)
	return out, err
}

func (s *Subscriber) putMarkRead(ctx context.Context, token, requestID string) error {
	return s.doJSON(ctx, token, http.MethodPut, "/api/messages/read/"+url.PathEscape(requestID), nil)
}

func (s *Subscriber) fetchConversations(ctx context.Context, token string) ([]Conversation, error) {
	var out []Conversation
	err := s.doJSON(ctx, token, http.MethodGet, "/api/conversations", &out)
	return out, err
}

func (s *Subscriber) fetchNotifications(ctx context.Context, token string) ([]Notification, error) {
	var out []Notification
	err := s.doJSON(ctx, token, http.MethodGet, "/api/notifications", &out)
	return out, err
}

func (s *Subscriber) patchNotificationRead(ctx context.Context, token, id string) (Notification, error) {
	var out Notification
	err := s.doJSON(ctx, token, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", &out)
	return out, err
}

// doJSON performs an authenticated call and decodes the data member of the response envelope
// into out.
func (s *Subscriber) doJSON(ctx context.Context, token, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("chatclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("chatclient: read response: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("chatclient: decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("chatclient: decode data: %w", err)
	}
	return nil
}
