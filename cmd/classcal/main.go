// classcal はGitHub Classroomの課題締切をGoogleカレンダーに同期するサービス。
//
// サブコマンド:
//
//	serve       APIサーバー + スイープスケジューラ（デフォルト）
//	worker      スイープスケジューラのみ（STORE_DRIVER=postgres必須）
//	migrate     データベースマイグレーションの適用
//	healthcheck コンテナヘルスチェック
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/classcal/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
