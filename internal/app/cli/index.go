package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gamespec-rag/internal/core/index"
)

// IndexBuildAction は仕様書ドキュメントのインデックス構築コマンドのアクション
func IndexBuildAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	documentPath := cmd.String("document")
	if documentPath == "" {
		documentPath = appCtx.Config.Document.Path
	}

	slog.Info("インデックス構築を開始",
		"document", documentPath,
		"source", appCtx.Config.Document.Source,
	)

	count, err := appCtx.Container.IndexService.Build(ctx, index.BuildParams{
		DocumentPath: documentPath,
		Source:       appCtx.Config.Document.Source,
	})
	if err != nil {
		slog.Error("インデックス構築に失敗しました", "error", err)
		return err
	}

	fmt.Printf("インデックス構築が完了しました: %d チャンク\n", count)
	return nil
}
