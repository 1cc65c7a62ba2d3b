package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// SessionListAction はセッション一覧表示コマンドのアクション
func SessionListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	sessions, err := appCtx.Container.Store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("セッション一覧の取得に失敗: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("セッションはありません")
		return nil
	}

	for _, s := range sessions {
		fmt.Printf("%s  %s  (更新: %s)\n",
			s.ID,
			s.Title,
			s.UpdatedAt.Format("2006/01/02 15:04"),
		)
	}

	return nil
}

// SessionDeleteAction はセッション削除コマンドのアクション
func SessionDeleteAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	idStr := cmd.Args().First()
	if idStr == "" {
		return fmt.Errorf("セッションIDを指定してください")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("セッションIDの形式が不正です: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	deleted, err := appCtx.Container.Store.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("セッションの削除に失敗: %w", err)
	}
	if !deleted {
		return fmt.Errorf("セッションが見つかりません: %s", id)
	}

	fmt.Printf("セッションを削除しました: %s\n", id)
	return nil
}
