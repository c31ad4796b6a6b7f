package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/pipeline"
	"github.com/shouni/go-comic-trans/pkg/prompt"
	"github.com/shouni/go-comic-trans/pkg/publisher"
	"github.com/shouni/go-comic-trans/pkg/translate"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// summaryWindow は物語要約の更新に使う直近エントリ数なのだ。
const summaryWindow = 12

// ComicSeriesRunner は連続ページを文脈を引き継ぎながら処理する構造体なのだ。
// ページごとにスナップショットを保存するため、途中で落ちても続きから再開できる。
type ComicSeriesRunner struct {
	options      config.GenerateOptions
	orchestrator PageProcessor
	reader       remoteio.InputReader
	writer       remoteio.OutputWriter
	store        contextstore.Store
	summarizer   translate.TextGenerator // nil の場合は要約を更新しない
	publisher    *publisher.ComicPublisher
	logger       *slog.Logger
}

// NewComicSeriesRunner は ComicSeriesRunner の新しいインスタンスを生成して返すのだ。
func NewComicSeriesRunner(
	options config.GenerateOptions,
	orchestrator PageProcessor,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	store contextstore.Store,
	summarizer translate.TextGenerator,
	pub *publisher.ComicPublisher,
	logger *slog.Logger,
) *ComicSeriesRunner {
	return &ComicSeriesRunner{
		options:      options,
		orchestrator: orchestrator,
		reader:       reader,
		writer:       writer,
		store:        store,
		summarizer:   summarizer,
		publisher:    pub,
		logger:       logger,
	}
}

// Run は入力ディレクトリのページを名前順に処理するのだ。
func (r *ComicSeriesRunner) Run(ctx context.Context) error {
	pages, err := listPageFiles(r.options.InputDir)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("入力ディレクトリ '%s' に処理対象のページがないのだ", r.options.InputDir)
	}

	tc, err := r.loadContext(ctx)
	if err != nil {
		return err
	}
	// スナップショットの CurrentPage は処理済みの最終ページ番号なので、
	// その枚数ぶん先頭のファイルを飛ばして続きから再開する
	startPage := tc.CurrentPage()
	if tc.EntryCount() == 0 {
		startPage = 0
	}
	if startPage >= len(pages) {
		r.logger.Info("すべてのページが処理済みなのだ",
			"series", r.options.SeriesKey,
			"pages", len(pages),
		)
		return nil
	}

	r.logger.Info("シリーズ処理を開始するのだ",
		"series", r.options.SeriesKey,
		"pages", len(pages),
		"start_page", startPage+1,
	)

	for i, pagePath := range pages[startPage:] {
		pageNumber := startPage + i + 1

		img, err := loadImage(ctx, r.reader, pagePath)
		if err != nil {
			return err
		}

		result, err := r.orchestrator.ProcessPage(ctx, img, pageNumber, tc, PipelineOptions(r.options))
		if err != nil {
			return err
		}

		outPath := r.outputPathFor(pagePath)
		if err := saveImage(ctx, r.writer, outPath, result.Image); err != nil {
			return err
		}

		r.publishReport(ctx, result, pagePath)
		r.refreshStoryArc(ctx, tc)

		if err := r.store.Save(ctx, r.options.SeriesKey, tc.Snapshot()); err != nil {
			return fmt.Errorf("ページ %d の文脈保存に失敗したのだ: %w", pageNumber, err)
		}

		r.logger.Info("ページを保存したのだ",
			"page", pageNumber,
			"output", outPath,
			"rendered", result.Report.Rendered,
			"overflowed", result.Report.Overflowed,
		)
	}

	r.logger.Info("シリーズ処理が完了したのだ！",
		"series", r.options.SeriesKey,
		"total_entries", tc.EntryCount(),
	)
	return nil
}

// loadContext はシリーズの文脈スナップショットを復元するのだ。
// 途中再開のつもりでスナップショットが見つからないのは事故の可能性が高いので、
// --fresh の明示がない限りエラーにして、黙って最初からやり直したりはしない。
func (r *ComicSeriesRunner) loadContext(ctx context.Context) (*contextstore.TranslationContext, error) {
	if r.options.FreshContext {
		r.logger.Info("新規の文脈で始めるのだ", "series", r.options.SeriesKey)
		return contextstore.New(), nil
	}

	snap, err := r.store.Load(ctx, r.options.SeriesKey)
	switch {
	case errors.Is(err, contextstore.ErrSnapshotNotFound):
		return nil, fmt.Errorf("シリーズ '%s' の文脈が見つからないのだ。新規に始めるなら --fresh を付けてほしいのだ: %w",
			r.options.SeriesKey, err)
	case err != nil:
		return nil, fmt.Errorf("文脈スナップショットの読み込みに失敗したのだ: %w", err)
	}

	r.logger.Info("文脈スナップショットを復元したのだ",
		"series", r.options.SeriesKey,
		"page", snap.CurrentPage,
		"entries", len(snap.BubbleContexts),
	)
	return contextstore.FromSnapshot(snap), nil
}

// refreshStoryArc はページ境界で物語要約を更新するのだ。失敗しても処理は続ける。
func (r *ComicSeriesRunner) refreshStoryArc(ctx context.Context, tc *contextstore.TranslationContext) {
	if r.summarizer == nil || tc.EntryCount() == 0 {
		return
	}

	summaryPrompt := prompt.BuildSummaryPrompt(tc.StoryArc(), tc.Recent(summaryWindow))
	summary, err := r.summarizer.Generate(ctx, summaryPrompt)
	if err != nil {
		r.logger.Warn("物語要約の更新に失敗したのだ", "error", err)
		return
	}
	if summary != "" {
		tc.SetStoryArc(summary)
	}
}

// publishReport はページごとの翻訳レポートを書き出すのだ。
// レポートは副産物なので、失敗しても翻訳画像の処理は止めない。
func (r *ComicSeriesRunner) publishReport(ctx context.Context, result *pipeline.PageResult, pagePath string) {
	if r.publisher == nil {
		return
	}

	res, err := r.publisher.PublishPage(ctx, result, pageBaseName(pagePath), publisher.Options{
		OutputDir: r.options.OutputDir,
	})
	if err != nil {
		r.logger.Warn("翻訳レポートの出力に失敗したのだ", "page", result.PageNumber, "error", err)
		return
	}
	r.logger.Info("翻訳レポートを出力したのだ", "report", res.ReportPath)
}

func (r *ComicSeriesRunner) outputPathFor(pagePath string) string {
	return path.Join(r.options.OutputDir, pageBaseName(pagePath)+"_translated.png")
}

// pageBaseName は拡張子を除いたページのファイル名を返すのだ。
func pageBaseName(pagePath string) string {
	base := filepath.Base(pagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// listPageFiles は入力ディレクトリの画像ファイルを名前順で返すのだ。
func listPageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("入力ディレクトリ '%s' の読み込みに失敗したのだ: %w", dir, err)
	}

	var pages []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			pages = append(pages, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(pages)
	return pages, nil
}
