package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gamespec-rag/internal/core/index"
	apphttp "github.com/jinford/gamespec-rag/internal/interface/http"
)

// shutdownTimeout はサーバー停止時に処理中リクエストを待つ時間
const shutdownTimeout = 10 * time.Second

// ServerStartAction はAPIサーバー起動コマンドのアクション。
// インデックスが未構築なら起動前に構築する。
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := ensureIndex(ctx, appCtx); err != nil {
		return err
	}

	handler := apphttp.NewHandler(
		appCtx.Container.ChatService,
		appCtx.Container.IndexService,
		appCtx.Container.Store,
		appCtx.Logger(),
	)
	server := apphttp.NewServer(handler)

	port := appCtx.Config.HTTP.Port
	errCh := make(chan error, 1)
	go func() {
		slog.Info("APIサーバーを起動します", "port", port)
		if err := server.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	slog.Info("APIサーバーを停止します")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗: %w", err)
	}

	return nil
}

// ensureIndex はインデックスが未構築なら仕様書から構築する
func ensureIndex(ctx context.Context, appCtx *AppContext) error {
	ready, err := appCtx.Container.IndexService.Ready(ctx)
	if err != nil {
		return fmt.Errorf("インデックス状態の確認に失敗: %w", err)
	}
	if ready {
		slog.Info("インデックスは構築済みです")
		return nil
	}

	slog.Info("インデックスを構築します", "document", appCtx.Config.Document.Path)
	count, err := appCtx.Container.IndexService.Build(ctx, index.BuildParams{
		DocumentPath: appCtx.Config.Document.Path,
		Source:       appCtx.Config.Document.Source,
	})
	if err != nil {
		return fmt.Errorf("インデックス構築に失敗: %w", err)
	}

	slog.Info("インデックス構築が完了しました", "chunks", count)
	return nil
}
