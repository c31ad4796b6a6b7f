package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/internal/pipeline"

	"github.com/spf13/cobra"
)

// seriesCmd は、連続ページを文脈を引き継ぎながら処理するサブコマンドなのだ。
// キャラクター情報や物語の流れを覚えたまま次のページへ進むのだ。
var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "ディレクトリ内の連続ページを文脈を保って翻訳するのだ。",
	Long: `入力ディレクトリのページ画像を名前順に処理し、キャラクター・場面・物語要約を
ページ間で引き継ぎながら翻訳するのだ。文脈はページごとに保存され、途中から再開できるのだ。`,
	RunE: seriesCommand,
}

// init は、series コマンド固有のフラグを定義するのだ。
func init() {
	seriesCmd.Flags().StringVarP(&opts.InputDir, "input-dir", "d", "", "ページ画像が並ぶ入力ディレクトリなのだ。")
	seriesCmd.Flags().StringVar(&opts.OutputDir, "output-dir", config.DefaultOutputDir, "翻訳済み画像の保存ディレクトリなのだ。")
	seriesCmd.Flags().StringVar(&opts.SeriesKey, "series", "", "シリーズ識別キー（文脈の保存名）なのだ。")
	seriesCmd.Flags().StringVar(&opts.StoreBackend, "store", "file", "文脈の保存方式（file または sqlite）なのだ。")
	seriesCmd.Flags().StringVar(&opts.ContextDir, "context-dir", config.DefaultContextDir, "fileストアの保存先ディレクトリなのだ。")
	seriesCmd.Flags().StringVar(&opts.ContextDB, "context-db", config.DefaultContextDB, "sqliteストアのDBパスなのだ。")
	seriesCmd.Flags().BoolVar(&opts.FreshContext, "fresh", false, "保存済みの文脈を無視して新規に始めるのだ。")
}

// seriesCommand は、series サブコマンドの実行ロジック本体なのだ。
func seriesCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.InputDir == "" {
		return fmt.Errorf("入力ディレクトリ（--input-dir）を指定してほしいのだ")
	}
	if opts.SeriesKey == "" {
		return fmt.Errorf("シリーズ識別キー（--series）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("シリーズ翻訳を起動するのだ！",
		"input_dir", cfg.Options.InputDir,
		"output_dir", cfg.Options.OutputDir,
		"series", cfg.Options.SeriesKey,
		"store", cfg.Options.StoreBackend,
	)

	return pipeline.ExecuteSeries(ctx, cfg)
}
