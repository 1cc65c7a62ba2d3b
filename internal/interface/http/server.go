package http

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// テストから現在時刻を差し替えるためのフック
var nowFunc = time.Now

// Server はAPIを提供するHTTPサーバー
type Server struct {
	echo *echo.Echo
}

// NewServer は新しいServerを作成し、ルーティングを登録する
func NewServer(handler *Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler.RegisterRoutes(e)

	return &Server{echo: e}
}

// Start はHTTPサーバーを起動する。Shutdownが呼ばれるまでブロックする
func (s *Server) Start(port int) error {
	return s.echo.Start(fmt.Sprintf(":%d", port))
}

// Shutdown はサーバーを graceful に停止する
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo は内部のechoインスタンスを返す（テスト用）
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
