package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/mo"

	"github.com/jinford/gamespec-rag/internal/core/chat"
	"github.com/jinford/gamespec-rag/internal/core/conversation"
	"github.com/jinford/gamespec-rag/internal/core/retrieval"
)

// Version はAPIが返すサービスバージョン
const Version = "1.0.0"

// 検索結果件数の指定可能な範囲
const (
	minMaxResults = 1
	maxMaxResults = 10
)

// ChatService はチャット1ターンを処理するインターフェース
type ChatService interface {
	Chat(ctx context.Context, params chat.Params) (*chat.Result, error)
}

// IndexStatus はベクトルインデックスの状態を確認するインターフェース
type IndexStatus interface {
	Ready(ctx context.Context) (bool, error)
}

// Handler はHTTPリクエストを処理する
type Handler struct {
	chat   ChatService
	index  IndexStatus
	store  conversation.Store
	logger *slog.Logger
}

// NewHandler は新しいHandlerを作成する
func NewHandler(chatService ChatService, index IndexStatus, store conversation.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		chat:   chatService,
		index:  index,
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes はルーティングを登録する
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", h.Health)
	e.POST("/api/v1/chat", h.Chat)

	e.GET("/api/v1/sessions", h.ListSessions)
	e.POST("/api/v1/sessions", h.CreateSession)
	e.GET("/api/v1/sessions/:id", h.GetSession)
	e.PUT("/api/v1/sessions/:id", h.UpdateSession)
	e.DELETE("/api/v1/sessions/:id", h.DeleteSession)
	e.GET("/api/v1/sessions/:id/messages", h.ListMessages)
}

// Health はサービスとインデックスの状態を返す
func (h *Handler) Health(c echo.Context) error {
	ctx := c.Request().Context()

	ready, err := h.index.Ready(ctx)
	if err != nil {
		h.logger.Error("failed to check index readiness", "error", err)
		ready = false
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Version:    Version,
		IndexReady: ready,
	})
}

// Chat は質問に対してRAGベースの回答を返す
// POST /api/v1/chat
func (h *Handler) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストボディの形式が不正です"})
	}

	if req.Question == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "質問を入力してください"})
	}
	if req.MaxResults != 0 && (req.MaxResults < minMaxResults || req.MaxResults > maxMaxResults) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "max_resultsは1から10の間で指定してください"})
	}

	sessionID := mo.None[uuid.UUID]()
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_idの形式が不正です"})
		}
		sessionID = mo.Some(id)
	}

	result, err := h.chat.Chat(ctx, chat.Params{
		SessionID:  sessionID,
		Question:   req.Question,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrIndexNotReady) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "インデックスが構築されていません"})
		}
		h.logger.Error("chat request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Answer:     result.Answer,
		Sources:    result.Sources,
		Confidence: result.Confidence,
		SessionID:  result.SessionID.String(),
	})
}
