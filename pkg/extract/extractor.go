// Package extract は検出済み領域ごとの原文テキスト抽出を並列で実行します。
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-comic-trans/pkg/domain"
)

// TextExtractor は切り出した吹き出し画像からテキストを読み取ります。
// AI ビジョン API とローカル OCR の両実装があります。
type TextExtractor interface {
	ExtractText(ctx context.Context, imageData []byte) (string, error)
}

// Extractor は領域群の切り出しとテキスト抽出を束ねます。
type Extractor struct {
	backend TextExtractor
	limiter *rate.Limiter
	workDir string
	logger  *slog.Logger
}

// NewExtractor は新しい Extractor を生成します。
// workDir が空の場合は OS の一時ディレクトリを使います。
func NewExtractor(backend TextExtractor, limiter *rate.Limiter, workDir string, logger *slog.Logger) *Extractor {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Extractor{
		backend: backend,
		limiter: limiter,
		workDir: workDir,
		logger:  logger,
	}
}

// subImager は標準ライブラリの各画像型が持つ部分画像インターフェースです。
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// ExtractAll は全領域のテキスト抽出を並列で実行し、読み順のままレコードを返します。
//
// 個々の領域の失敗は ERROR 番兵として記録し、他領域の処理は継続します。
// エラーで中断するのはコンテキストの取り消しだけです。
func (e *Extractor) ExtractAll(ctx context.Context, pageImg image.Image, regions []domain.Region) ([]domain.BubbleRecord, error) {
	runID := uuid.NewString()
	records := make([]domain.BubbleRecord, len(regions))
	for i, r := range regions {
		records[i] = domain.BubbleRecord{Region: r}
	}

	eg, egCtx := errgroup.WithContext(ctx)

	for i := range regions {
		i := i // ループ変数のキャプチャ
		eg.Go(func() error {
			region := records[i].Region
			logger := e.logger.With("bubble_id", region.ID, "run_id", runID)

			if region.CropBox.IsEmpty() {
				logger.Warn("切り出し範囲が空のため抽出をスキップします")
				records[i].OriginalText = domain.TextError
				return nil
			}

			cropData, cropPath, err := e.cropToTempFile(pageImg, region, runID)
			if err != nil {
				logger.Warn("領域の切り出しに失敗しました", "error", err)
				records[i].OriginalText = domain.TextError
				return nil
			}
			// 成否にかかわらず一時ファイルは必ず消す
			defer func() {
				if err := os.Remove(cropPath); err != nil {
					logger.Warn("一時ファイルの削除に失敗しました", "path", cropPath, "error", err)
				}
			}()

			if err := e.limiter.Wait(egCtx); err != nil {
				return err
			}

			startTime := time.Now()
			text, err := e.backend.ExtractText(egCtx, cropData)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				logger.Warn("テキスト抽出に失敗しました", "error", err)
				records[i].OriginalText = domain.TextError
				return nil
			}

			if text == "" {
				text = domain.TextEmpty
			}
			records[i].OriginalText = text
			logger.Debug("テキスト抽出が完了しました",
				"duration", time.Since(startTime).Round(time.Millisecond),
				"chars", len(text),
			)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("テキスト抽出が中断されました: %w", err)
	}
	return records, nil
}

// cropToTempFile は領域を PNG に切り出して一時ファイルへ書き出します。
// バイト列とファイルパスを返します。ファイルの削除は呼び出し側の責務です。
func (e *Extractor) cropToTempFile(pageImg image.Image, region domain.Region, runID string) ([]byte, string, error) {
	si, ok := pageImg.(subImager)
	if !ok {
		return nil, "", fmt.Errorf("画像型 %T は部分画像に対応していません", pageImg)
	}

	rect := image.Rect(
		region.CropBox.X,
		region.CropBox.Y,
		region.CropBox.X+region.CropBox.Width,
		region.CropBox.Y+region.CropBox.Height,
	).Intersect(pageImg.Bounds())
	if rect.Empty() {
		return nil, "", fmt.Errorf("切り出し範囲が画像外です: %v", region.CropBox)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, si.SubImage(rect)); err != nil {
		return nil, "", fmt.Errorf("PNGエンコードに失敗しました: %w", err)
	}

	path := filepath.Join(e.workDir, fmt.Sprintf("bubble_%s_%d.png", runID, region.ID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, "", fmt.Errorf("一時ファイルの書き出しに失敗しました: %w", err)
	}

	return buf.Bytes(), path, nil
}
