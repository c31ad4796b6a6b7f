package builder

import (
	"context"
	"fmt"

	"github.com/shouni/go-comic-trans/internal/config"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、モデルパスなど）。
	Options config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です（言語、モード、バックエンドなど）。
	Reader  remoteio.InputReader   // Readerは、ページ画像や文脈スナップショットの読み込みに使用する入力元です。
	Writer  remoteio.OutputWriter  // Writerは、翻訳済み画像や文脈の保存に使用する出力先です。
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}

	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	return &AppContext{
		Config:  cfg,
		Options: cfg.Options,
		Reader:  reader,
		Writer:  writer,
	}, nil
}
