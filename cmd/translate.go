package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/internal/pipeline"

	"github.com/spf13/cobra"
)

// translateCmd は、ページ1枚の検出から描画までを一気に実行するサブコマンドなのだ。
var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "ページ画像1枚を翻訳して保存するのだ。",
	Long: `吹き出しの検出、原文の抽出、文脈を考慮した翻訳、訳文の描き込みまでを一気に実行するのだ。
入力はローカルパスでも gs:// でも構わないのだ。`,
	RunE: translateCommand,
}

func init() {
}

// translateCommand は、translate サブコマンドの実行ロジック本体なのだ。
func translateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.InputPath == "" {
		return fmt.Errorf("入力画像（--input）を指定してほしいのだ")
	}
	if opts.OutputPath == "" {
		// 未指定なら入力名から自動で決めるのだ
		opts.OutputPath = derivedOutputPath(opts.InputPath)
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("ページ翻訳を起動するのだ！",
		"input", cfg.Options.InputPath,
		"output", cfg.Options.OutputPath,
		"source", cfg.Options.SourceLang,
		"target", cfg.Options.TargetLang,
		"mode", cfg.Options.Mode,
	)

	return pipeline.ExecuteTranslate(ctx, cfg)
}

// derivedOutputPath は入力パスから '_translated.png' 付きの出力パスを作るのだ。
func derivedOutputPath(input string) string {
	if idx := strings.LastIndex(input, "."); idx > 0 {
		return input[:idx] + "_translated.png"
	}
	return input + "_translated.png"
}
