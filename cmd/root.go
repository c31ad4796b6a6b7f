package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-comic-trans/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は各サブコマンドで共有する実行時オプションなのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 入出力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.InputPath, "input", "f", "", "ページ画像のパス（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputPath, "output", "o", "", "翻訳済み画像の保存パス（ローカル or gs://...）なのだ。")

	// --- 翻訳設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.SourceLang, "source-lang", "s", config.DefaultSourceLang, "原語の言語コード（en, ja など）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.TargetLang, "target-lang", "t", config.DefaultTargetLang, "訳語の言語コードなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Mode, "mode", "m", "parallel", "翻訳戦略（parallel または sequential）なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.Window, "context-window", 0, "プロンプトに含める直近エントリ数（0で既定値）なのだ。")

	// --- バックエンド選択 ---
	rootCmd.PersistentFlags().StringVar(&opts.TranslateBackend, "translator", "gemini", "翻訳バックエンド（gemini または openai）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ExtractBackend, "extractor", "vision", "抽出バックエンド（vision または tesseract）なのだ。")

	// --- 解析・検出 ---
	rootCmd.PersistentFlags().BoolVar(&opts.AnalyzePage, "analyze-page", false, "ページ全体の意味解析を有効にするのだ。")
	rootCmd.PersistentFlags().Float64Var(&opts.ConfThreshold, "conf-threshold", config.DefaultConfThreshold, "吹き出し検出の信頼度しきい値なのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "APIリクエストのタイムアウトなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.WorkDir, "work-dir", "", "一時切り出し画像の置き場（空でOSの一時領域）なのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// 翻訳・抽出のどちらかのAIバックエンドは必ず使うため、キーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("VISION_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY か VISION_API_KEY のどちらかが必要なのだ")
	}

	if !config.IsSupportedLanguage(opts.TargetLang) {
		return fmt.Errorf("エラー: 訳語 '%s' は対応していないのだ", opts.TargetLang)
	}

	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"comic-trans",
		addAppFlags,
		preRunAppE,
		translateCmd,
		seriesCmd,
		analyzeCmd,
	)
}
