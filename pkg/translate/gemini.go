package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/go-gemini-client/pkg/gemini"
)

// GeminiGenerator は Gemini クライアントを TextGenerator に適合させるアダプタです。
type GeminiGenerator struct {
	client gemini.GenerativeModel
	model  string
}

// NewGeminiGenerator は新しい GeminiGenerator を生成します。
func NewGeminiGenerator(client gemini.GenerativeModel, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// Generate はプロンプト1本を Gemini モデルへ送って補完を得ます。
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.GenerateContent(ctx, prompt, g.model)
	if err != nil {
		return "", fmt.Errorf("Gemini の呼び出しに失敗しました: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
