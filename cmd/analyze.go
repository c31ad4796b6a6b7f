package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/internal/pipeline"

	"github.com/spf13/cobra"
)

// analyzeCmd は、翻訳を行わずページ解析の結果だけを確認するサブコマンドなのだ。
// 場面・登場人物・ジャンルの推定が期待どおりかを事前に見たいときに使うのだ。
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "ページ画像の意味解析だけを実行してJSONで出力するのだ。",
	Long: `ビジョンAPIでページ全体を解析し、場所・雰囲気・登場キャラクター・ジャンルなどの
推定結果を JSON で出力するのだ。--output を省略すると標準出力へ書くのだ。`,
	RunE: analyzeCommand,
}

func init() {
}

// analyzeCommand は、analyze サブコマンドの実行ロジック本体なのだ。
func analyzeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.InputPath == "" {
		return fmt.Errorf("入力画像（--input）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	if cfg.VisionAPIKey == "" {
		return fmt.Errorf("ページ解析には VISION_API_KEY が必要なのだ")
	}

	slog.Info("ページ解析を起動するのだ！", "input", cfg.Options.InputPath)

	return pipeline.ExecuteAnalyze(ctx, cfg)
}
