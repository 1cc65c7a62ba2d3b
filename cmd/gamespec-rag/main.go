package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/jinford/gamespec-rag/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "gamespec-rag",
		Usage: "ゲーム仕様書向け質問応答APIサーバー",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "APIサーバー管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "APIサーバーを起動",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: appcli.ServerStartAction,
					},
				},
			},
			{
				Name:  "index",
				Usage: "インデックス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "build",
						Usage: "仕様書ドキュメントをインデックス化",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "document",
								Usage: "仕様書ファイルパス（未指定なら設定値を使用）",
							},
						},
						Action: appcli.IndexBuildAction,
					},
				},
			},
			{
				Name:  "session",
				Usage: "会話セッション管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "セッション一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: appcli.SessionListAction,
					},
					{
						Name:      "delete",
						Usage:     "セッションを削除",
						ArgsUsage: "<session-id>",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: appcli.SessionDeleteAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
