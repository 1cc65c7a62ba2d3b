package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gamespec-rag/internal/core/chat"
	"github.com/jinford/gamespec-rag/internal/core/conversation"
	"github.com/jinford/gamespec-rag/internal/core/retrieval"
)

type stubChatService struct {
	result     *chat.Result
	err        error
	lastParams chat.Params
}

func (s *stubChatService) Chat(ctx context.Context, params chat.Params) (*chat.Result, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubIndexStatus struct{ ready bool }

func (s *stubIndexStatus) Ready(ctx context.Context) (bool, error) {
	return s.ready, nil
}

// memStore はテスト用のインメモリ conversation.Store 実装
type memStore struct {
	sessions []*conversation.Session
	messages []*conversation.Message
}

func (s *memStore) CreateSession(ctx context.Context, title string) (*conversation.Session, error) {
	session := &conversation.Session{ID: uuid.New(), Title: title}
	s.sessions = append(s.sessions, session)
	return session, nil
}

func (s *memStore) GetSession(ctx context.Context, id uuid.UUID) (mo.Option[*conversation.Session], error) {
	for _, session := range s.sessions {
		if session.ID == id {
			return mo.Some(session), nil
		}
	}
	return mo.None[*conversation.Session](), nil
}

func (s *memStore) ListSessions(ctx context.Context) ([]*conversation.Session, error) {
	return s.sessions, nil
}

func (s *memStore) UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	for _, session := range s.sessions {
		if session.ID == id {
			session.Title = title
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) DeleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	for i, session := range s.sessions {
		if session.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, role conversation.Role, content string, metadata map[string]any) (mo.Option[*conversation.Message], error) {
	message := &conversation.Message{ID: uuid.New(), SessionID: sessionID, Role: role, Content: content, Metadata: metadata}
	s.messages = append(s.messages, message)
	return mo.Some(message), nil
}

func (s *memStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*conversation.Message, error) {
	messages := make([]*conversation.Message, 0)
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (s *memStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*conversation.Message, error) {
	return nil, nil
}

func newTestHandler(chatSvc ChatService, index IndexStatus, store conversation.Store) (*Handler, *echo.Echo) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
	handler := NewHandler(chatSvc, index, store, logger)

	e := echo.New()
	handler.RegisterRoutes(e)
	return handler, e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Health(t *testing.T) {
	_, e := newTestHandler(&stubChatService{}, &stubIndexStatus{ready: true}, &memStore{})

	rec := doRequest(e, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.True(t, resp.IndexReady)
}

func TestHandler_ChatSuccess(t *testing.T) {
	sessionID := uuid.New()
	chatSvc := &stubChatService{result: &chat.Result{
		Answer:     "回答です",
		Sources:    []chat.SourceDocument{{Content: "本文", Section: "## **1. 概要**"}},
		Confidence: 0.7,
		SessionID:  sessionID,
	}}
	_, e := newTestHandler(chatSvc, &stubIndexStatus{ready: true}, &memStore{})

	rec := doRequest(e, http.MethodPost, "/api/v1/chat", `{"question":"HPとは何ですか","max_results":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "回答です", resp.Answer)
	assert.Equal(t, sessionID.String(), resp.SessionID)
	assert.Equal(t, 0.7, resp.Confidence)

	assert.Equal(t, "HPとは何ですか", chatSvc.lastParams.Question)
	assert.Equal(t, 5, chatSvc.lastParams.MaxResults)
	assert.True(t, chatSvc.lastParams.SessionID.IsAbsent())
}

func TestHandler_ChatPassesSessionID(t *testing.T) {
	sessionID := uuid.New()
	chatSvc := &stubChatService{result: &chat.Result{SessionID: sessionID}}
	_, e := newTestHandler(chatSvc, &stubIndexStatus{ready: true}, &memStore{})

	rec := doRequest(e, http.MethodPost, "/api/v1/chat",
		`{"question":"質問","session_id":"`+sessionID.String()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	id, ok := chatSvc.lastParams.SessionID.Get()
	require.True(t, ok)
	assert.Equal(t, sessionID, id)
}

func TestHandler_ChatValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "質問が空", body: `{"question":""}`},
		{name: "max_resultsが範囲外（下限）", body: `{"question":"質問","max_results":-1}`},
		{name: "max_resultsが範囲外（上限）", body: `{"question":"質問","max_results":11}`},
		{name: "session_idが不正", body: `{"question":"質問","session_id":"not-a-uuid"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := newTestHandler(&stubChatService{}, &stubIndexStatus{}, &memStore{})
			rec := doRequest(e, http.MethodPost, "/api/v1/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandler_ChatIndexNotReady(t *testing.T) {
	chatSvc := &stubChatService{err: retrieval.ErrIndexNotReady}
	_, e := newTestHandler(chatSvc, &stubIndexStatus{}, &memStore{})

	rec := doRequest(e, http.MethodPost, "/api/v1/chat", `{"question":"質問"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_SessionLifecycle(t *testing.T) {
	store := &memStore{}
	_, e := newTestHandler(&stubChatService{}, &stubIndexStatus{}, store)

	orig := nowFunc
	nowFunc = func() time.Time { return time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC) }
	defer func() { nowFunc = orig }()

	// タイトル未指定なら自動タイトルが付く
	rec := doRequest(e, http.MethodPost, "/api/v1/sessions", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "新しい会話 - 2025/03/01 09:05", created.Title)

	// 一覧
	rec = doRequest(e, http.MethodGet, "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// タイトル更新
	rec = doRequest(e, http.MethodPut, "/api/v1/sessions/"+created.ID, `{"title":"新タイトル"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "新タイトル", updated.Title)

	// 削除
	rec = doRequest(e, http.MethodDelete, "/api/v1/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// 削除後は404
	rec = doRequest(e, http.MethodGet, "/api/v1/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_SessionNotFound(t *testing.T) {
	_, e := newTestHandler(&stubChatService{}, &stubIndexStatus{}, &memStore{})
	missing := uuid.New().String()

	rec := doRequest(e, http.MethodGet, "/api/v1/sessions/"+missing, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodPut, "/api/v1/sessions/"+missing, `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodDelete, "/api/v1/sessions/"+missing, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/sessions/"+missing+"/messages", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ListMessages(t *testing.T) {
	store := &memStore{}
	session, err := store.CreateSession(context.Background(), "会話")
	require.NoError(t, err)
	_, err = store.AppendMessage(context.Background(), session.ID, conversation.RoleUser, "質問", nil)
	require.NoError(t, err)

	_, e := newTestHandler(&stubChatService{}, &stubIndexStatus{}, store)

	rec := doRequest(e, http.MethodGet, "/api/v1/sessions/"+session.ID.String()+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []MessageResponse `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "質問", resp.Messages[0].Content)
	assert.Equal(t, "user", resp.Messages[0].Role)
}
