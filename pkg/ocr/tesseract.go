// Package ocr はローカル Tesseract による吹き出しテキスト抽出を提供します。
//
// AI ビジョン API を使わずオフラインで処理したい場合の代替バックエンドです。
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// langCodes は ISO 639-1 言語コードから Tesseract の学習データ名への対応表です。
var langCodes = map[string]string{
	"en": "eng",
	"ja": "jpn",
	"zh": "chi_sim",
	"ko": "kor",
	"fr": "fra",
	"de": "deu",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"ru": "rus",
}

// TesseractExtractor は gosseract クライアントで画像からテキストを認識します。
type TesseractExtractor struct {
	clientFactory func() *gosseract.Client
	language      string // Tesseract 形式の言語名
}

// NewTesseractExtractor は新しい TesseractExtractor を生成します。
// lang には ISO 639-1 コードを渡します。未知のコードは英語として扱います。
func NewTesseractExtractor(lang string) *TesseractExtractor {
	code, ok := langCodes[strings.ToLower(lang)]
	if !ok {
		code = "eng"
	}
	return &TesseractExtractor{
		clientFactory: gosseract.NewClient,
		language:      code,
	}
}

// ExtractText は吹き出し画像のテキストを認識します。
// クライアントは呼び出しごとに生成するため、並行呼び出しに対して安全です。
func (e *TesseractExtractor) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("画像の設定に失敗しました: %w", err)
	}
	if err := c.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("言語 %s の設定に失敗しました: %w", e.language, err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("テキスト認識に失敗しました: %w", err)
	}

	// 改行をスペースへ潰して1本の台詞として返す
	return strings.Join(strings.Fields(text), " "), nil
}
