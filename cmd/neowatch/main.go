// Command neowatch は接近天体監視バックエンドのエントリーポイント。
// サブコマンド: serve（APIサーバー）、worker（定期ジョブ）、migrate（マイグレーション）、
// healthcheck（Dockerヘルスチェック用）。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/neowatch/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "neowatch: %v\n", err)
		os.Exit(1)
	}
}
