package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"time"

	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/domain"
	"github.com/shouni/go-comic-trans/pkg/geometry"
	"github.com/shouni/go-comic-trans/pkg/render"
	"github.com/shouni/go-comic-trans/pkg/translate"
)

// Options はページ処理1回分の指定です。
type Options struct {
	SourceLang  string
	TargetLang  string
	Mode        translate.Mode
	Window      int
	AnalyzePage bool // ページ全体の意味解析を行うか
}

// PageResult はページ処理の成果物です。
type PageResult struct {
	PageNumber int
	Image      *image.RGBA
	Records    []domain.BubbleRecord
	Report     render.Report
}

// Orchestrator は検出・抽出・翻訳・描画の各段を順に駆動します。
//
// 文脈ストア (TranslationContext) を書き換えるのは Orchestrator と、
// その依頼を受けた Translator だけです。ファンアウト中の書き換えはありません。
type Orchestrator struct {
	detector   Detector
	analyzer   PageAnalyzer // nil の場合ページ解析を行わない
	normalizer *geometry.Normalizer
	extractor  Extractor
	translator Translator
	renderer   Renderer
	logger     *slog.Logger
}

// NewOrchestrator は新しい Orchestrator を生成します。analyzer は nil 可です。
func NewOrchestrator(
	detector Detector,
	analyzer PageAnalyzer,
	normalizer *geometry.Normalizer,
	extractor Extractor,
	translator Translator,
	renderer Renderer,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		detector:   detector,
		analyzer:   analyzer,
		normalizer: normalizer,
		extractor:  extractor,
		translator: translator,
		renderer:   renderer,
		logger:     logger,
	}
}

// ProcessPage はページ1枚を処理して翻訳済み画像を返します。
//
// 検出の失敗だけが致命的です。吹き出しが1つもなければ元画像を
// そのまま返します。ページ解析の失敗は中立文脈で続行します。
func (o *Orchestrator) ProcessPage(ctx context.Context, img image.Image, pageNumber int, tc *contextstore.TranslationContext, opts Options) (*PageResult, error) {
	startTime := time.Now()
	logger := o.logger.With("page", pageNumber)
	tc.BeginPage(pageNumber)

	dets, err := o.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("ページ %d の吹き出し検出に失敗しました: %w", pageNumber, err)
	}

	if len(dets) == 0 {
		logger.Info("吹き出しが検出されなかったため元画像を返します")
		return &PageResult{
			PageNumber: pageNumber,
			Image:      cloneToRGBA(img),
		}, nil
	}

	o.analyzePage(ctx, img, pageNumber, tc, opts, logger)

	bounds := img.Bounds()
	regions := o.normalizer.Normalize(dets, bounds.Dx(), bounds.Dy())
	logger.Info("吹き出しを検出しました", "count", len(regions))

	records, err := o.extractor.ExtractAll(ctx, img, regions)
	if err != nil {
		return nil, fmt.Errorf("ページ %d のテキスト抽出に失敗しました: %w", pageNumber, err)
	}

	// 読み順どおりに原文を文脈へ積む。番兵は文脈を汚すので積まない。
	for i := range records {
		if !records[i].Translatable() {
			continue
		}
		ratio := float64(records[i].Region.CenterX) / float64(bounds.Dx())
		tc.IngestOriginal(records[i].Region.ID, records[i].OriginalText, ratio)
	}

	records, err = o.translator.TranslateAll(ctx, records, tc, translate.Options{
		SourceLang: opts.SourceLang,
		TargetLang: opts.TargetLang,
		Mode:       opts.Mode,
		Window:     opts.Window,
	})
	if err != nil {
		return nil, fmt.Errorf("ページ %d の翻訳に失敗しました: %w", pageNumber, err)
	}

	ptrs := make([]*domain.BubbleRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	out, report := o.renderer.Render(img, ptrs, opts.TargetLang)

	logger.Info("ページ処理が完了しました",
		"rendered", report.Rendered,
		"overflowed", report.Overflowed,
		"skipped", report.Skipped,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)

	return &PageResult{
		PageNumber: pageNumber,
		Image:      out,
		Records:    records,
		Report:     report,
	}, nil
}

// analyzePage はページ解析を実行し結果を文脈へ取り込みます。
// 解析が無効・失敗の場合は中立文脈で続行します。
func (o *Orchestrator) analyzePage(ctx context.Context, img image.Image, pageNumber int, tc *contextstore.TranslationContext, opts Options, logger *slog.Logger) {
	if !opts.AnalyzePage || o.analyzer == nil {
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logger.Warn("ページ画像のエンコードに失敗したため中立文脈で続行します", "error", err)
		tc.ApplyPageAnalysis(contextstore.NeutralPageContext(pageNumber), nil)
		return
	}

	pc, sightings, err := o.analyzer.AnalyzePage(ctx, buf.Bytes(), pageNumber)
	if err != nil {
		logger.Warn("ページ解析に失敗したため中立文脈で続行します", "error", err)
		tc.ApplyPageAnalysis(contextstore.NeutralPageContext(pageNumber), nil)
		return
	}
	tc.ApplyPageAnalysis(pc, sightings)
	logger.Debug("ページ解析を取り込みました",
		"characters", len(sightings),
		"genre", pc.Genre,
	)
}

func cloneToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		out := image.NewRGBA(rgba.Bounds())
		copy(out.Pix, rgba.Pix)
		return out
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
