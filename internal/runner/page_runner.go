package runner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	_ "image/jpeg" // ページ画像のデコード用

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/pipeline"
	"github.com/shouni/go-comic-trans/pkg/translate"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// PageRunner は1ページ翻訳処理のインターフェースなのだ。
type PageRunner interface {
	// Run はページ画像の読み込みから翻訳済み画像の保存までを実行するのだ。
	Run(ctx context.Context) error
}

// PageProcessor はページ1枚を検出から描画まで処理するパイプラインの入口なのだ。
type PageProcessor interface {
	ProcessPage(ctx context.Context, img image.Image, pageNumber int, tc *contextstore.TranslationContext, opts pipeline.Options) (*pipeline.PageResult, error)
}

// ComicPageRunner はページ1枚を検出から描画まで処理する核となる構造体なのだ。
type ComicPageRunner struct {
	options      config.GenerateOptions
	orchestrator *pipeline.Orchestrator
	reader       remoteio.InputReader
	writer       remoteio.OutputWriter
	logger       *slog.Logger
}

// NewComicPageRunner は ComicPageRunner の新しいインスタンスを生成して返すのだ。
func NewComicPageRunner(
	options config.GenerateOptions,
	orchestrator *pipeline.Orchestrator,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	logger *slog.Logger,
) *ComicPageRunner {
	return &ComicPageRunner{
		options:      options,
		orchestrator: orchestrator,
		reader:       reader,
		writer:       writer,
		logger:       logger,
	}
}

// Run は、入力画像の読み込み、ページ処理、翻訳済み画像の保存を一気に行うのだ。
func (r *ComicPageRunner) Run(ctx context.Context) error {
	img, err := loadImage(ctx, r.reader, r.options.InputPath)
	if err != nil {
		return err
	}

	tc := contextstore.New()
	result, err := r.orchestrator.ProcessPage(ctx, img, 1, tc, PipelineOptions(r.options))
	if err != nil {
		return err
	}

	if err := saveImage(ctx, r.writer, r.options.OutputPath, result.Image); err != nil {
		return err
	}

	r.logger.Info("翻訳済みページを保存したのだ！",
		"output", r.options.OutputPath,
		"bubbles", len(result.Records),
		"rendered", result.Report.Rendered,
	)
	return nil
}

// PipelineOptions は CLI のオプションをページ処理用の指定へ詰め替えるのだ。
// プロンプトへは言語コードではなく英語名を埋め込む。
func PipelineOptions(opts config.GenerateOptions) pipeline.Options {
	mode := translate.ModeParallel
	if opts.Mode == "sequential" {
		mode = translate.ModeSequential
	}
	return pipeline.Options{
		SourceLang:  config.LanguageName(opts.SourceLang),
		TargetLang:  config.LanguageName(opts.TargetLang),
		Mode:        mode,
		Window:      opts.Window,
		AnalyzePage: opts.AnalyzePage,
	}
}

// loadImage は入力元（ローカル or GCS）からページ画像を読み込むのだ。
func loadImage(ctx context.Context, reader remoteio.InputReader, path string) (image.Image, error) {
	rc, err := reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ページ画像 '%s' の読み込みに失敗したのだ: %w", path, err)
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("ページ画像 '%s' のデコードに失敗したのだ: %w", path, err)
	}
	return img, nil
}

// saveImage は翻訳済み画像を PNG として保存するのだ。
func saveImage(ctx context.Context, writer remoteio.OutputWriter, path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("翻訳済み画像のエンコードに失敗したのだ: %w", err)
	}
	if err := writer.Write(ctx, path, &buf, "image/png"); err != nil {
		return fmt.Errorf("翻訳済み画像 '%s' の保存に失敗したのだ: %w", path, err)
	}
	return nil
}
