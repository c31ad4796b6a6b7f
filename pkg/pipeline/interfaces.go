// Package pipeline はページ1枚の検出から描画までの処理系列を編成します。
package pipeline

import (
	"context"
	"image"

	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/domain"
	"github.com/shouni/go-comic-trans/pkg/render"
	"github.com/shouni/go-comic-trans/pkg/translate"
)

// Detector はページ画像から吹き出し候補を検出します。
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]domain.Detection, error)
}

// PageAnalyzer はページ全体の意味的文脈を推定します。
type PageAnalyzer interface {
	AnalyzePage(ctx context.Context, imageData []byte, pageNumber int) (contextstore.PageContext, []contextstore.CharacterSighting, error)
}

// Extractor は領域群の原文テキストを抽出します。
type Extractor interface {
	ExtractAll(ctx context.Context, pageImg image.Image, regions []domain.Region) ([]domain.BubbleRecord, error)
}

// Translator は抽出済みレコード群を翻訳します。
type Translator interface {
	TranslateAll(ctx context.Context, records []domain.BubbleRecord, tc *contextstore.TranslationContext, opts translate.Options) ([]domain.BubbleRecord, error)
}

// Renderer は訳文をページ画像へ描き込みます。
type Renderer interface {
	Render(src image.Image, records []*domain.BubbleRecord, targetLang string) (*image.RGBA, render.Report)
}
