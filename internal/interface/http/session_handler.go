package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jinford/gamespec-rag/internal/core/conversation"
)

// ListSessions は全セッションを更新日時の降順で返す
// GET /api/v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()

	sessions, err := h.store.ListSessions(ctx)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}

	responses := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, toSessionResponse(s))
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": responses})
}

// CreateSession は新規セッションを作成する。タイトル未指定なら自動タイトルを付与する
// POST /api/v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストボディの形式が不正です"})
	}

	title := req.Title
	if title == "" {
		title = conversation.AutoTitle(nowFunc())
	}

	session, err := h.store.CreateSession(ctx, title)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}

	return c.JSON(http.StatusCreated, toSessionResponse(session))
}

// GetSession はセッションを1件取得する
// GET /api/v1/sessions/:id
func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "セッションIDの形式が不正です"})
	}

	session, err := h.store.GetSession(ctx, id)
	if err != nil {
		h.logger.Error("failed to get session", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}

	s, ok := session.Get()
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "セッションが見つかりません"})
	}

	return c.JSON(http.StatusOK, toSessionResponse(s))
}

// UpdateSession はセッションのタイトルを更新する
// PUT /api/v1/sessions/:id
func (h *Handler) UpdateSession(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "セッションIDの形式が不正です"})
	}

	var req UpdateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストボディの形式が不正です"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "タイトルを入力してください"})
	}

	updated, err := h.store.UpdateSessionTitle(ctx, id, req.Title)
	if err != nil {
		h.logger.Error("failed to update session title", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}
	if !updated {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "セッションが見つかりません"})
	}

	session, err := h.store.GetSession(ctx, id)
	if err != nil {
		h.logger.Error("failed to get session", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}

	s, ok := session.Get()
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "セッションが見つかりません"})
	}

	return c.JSON(http.StatusOK, toSessionResponse(s))
}

// DeleteSession はセッションを配下のメッセージごと削除する
// DELETE /api/v1/sessions/:id
func (h *Handler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "セッションIDの形式が不正です"})
	}

	deleted, err := h.store.DeleteSession(ctx, id)
	if err != nil {
		h.logger.Error("failed to delete session", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "セッションが見つかりません"})
	}

	return c.NoContent(http.StatusNoContent)
}

// ListMessages はセッションの全メッセージを作成日時の昇順で返す
// GET /api/v1/sessions/:id/messages
func (h *Handler) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "セッションIDの形式が不正です"})
	}

	session, err := h.store.GetSession(ctx, id)
	if err != nil {
		h.logger.Error("failed to get session", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}
	if session.IsAbsent() {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "セッションが見つかりません"})
	}

	messages, err := h.store.ListMessages(ctx, id)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "内部サーバーエラーが発生しました"})
	}

	responses := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		responses = append(responses, toMessageResponse(m))
	}

	return c.JSON(http.StatusOK, map[string]any{"messages": responses})
}
