// Package vision は OpenAI 互換 API 経由の画像理解とテキスト生成を提供します。
//
// 吹き出しのテキスト抽出、ページ全体の状況分析、および翻訳などの
// テキスト生成を同一クライアントで扱います。
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shouni/go-comic-trans/pkg/prompt"
)

// DefaultRequestTimeout は1リクエストあたりの上限時間です。
const DefaultRequestTimeout = 2 * time.Minute

// Config はクライアントの接続設定です。
type Config struct {
	APIKey      string
	BaseURL     string // 空の場合は OpenAI 公式エンドポイント
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Client は OpenAI 互換 API のラッパーです。
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// NewClient は新しい Client を生成します。
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vision: APIキーが設定されていません")
	}
	if cfg.Model == "" {
		return nil, errors.New("vision: モデル名が設定されていません")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

// ExtractText は吹き出し画像からテキストを抽出します。
// テキストが存在しない場合、モデルは 'EMPTY' を返す契約です。
func (c *Client) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	resp, err := c.completeWithImage(ctx, prompt.ExtractionPrompt, imageData)
	if err != nil {
		return "", fmt.Errorf("テキスト抽出に失敗しました: %w", err)
	}
	return strings.TrimSpace(resp), nil
}

// Generate はテキストのみのプロンプトで補完を実行します。翻訳バックエンドが利用します。
func (c *Client) Generate(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("テキスト生成に失敗しました: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("APIから選択肢が返されませんでした")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// completeWithImage は画像1枚とテキスト指示を base64 データURIで送信します。
func (c *Client) completeWithImage(ctx context.Context, instruction string, imageData []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: instruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURI,
						},
					},
				},
			},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("APIから選択肢が返されませんでした")
	}
	return resp.Choices[0].Message.Content, nil
}
