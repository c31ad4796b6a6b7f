package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/pkg/pipeline"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// ComicAnalyzeRunner はページ解析の結果だけを JSON で出力する構造体なのだ。
// 翻訳前に文脈の当たりを確認したいときのデバッグ用コマンドが使う。
type ComicAnalyzeRunner struct {
	options  config.GenerateOptions
	analyzer pipeline.PageAnalyzer
	reader   remoteio.InputReader
	writer   remoteio.OutputWriter
	logger   *slog.Logger
}

// NewComicAnalyzeRunner は ComicAnalyzeRunner の新しいインスタンスを生成して返すのだ。
func NewComicAnalyzeRunner(
	options config.GenerateOptions,
	analyzer pipeline.PageAnalyzer,
	reader remoteio.InputReader,
	writer remoteio.OutputWriter,
	logger *slog.Logger,
) *ComicAnalyzeRunner {
	return &ComicAnalyzeRunner{
		options:  options,
		analyzer: analyzer,
		reader:   reader,
		writer:   writer,
		logger:   logger,
	}
}

// analysisOutput は解析結果の出力形なのだ。
type analysisOutput struct {
	PageContext any `json:"page_context"`
	Characters  any `json:"characters"`
}

// Run はページ画像を解析し、結果を標準出力または指定先へ書き出すのだ。
func (r *ComicAnalyzeRunner) Run(ctx context.Context) error {
	rc, err := r.reader.Open(ctx, r.options.InputPath)
	if err != nil {
		return fmt.Errorf("ページ画像 '%s' の読み込みに失敗したのだ: %w", r.options.InputPath, err)
	}
	imageData, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("ページ画像の読み取りに失敗したのだ: %w", err)
	}

	pc, sightings, err := r.analyzer.AnalyzePage(ctx, imageData, 1)
	if err != nil {
		return fmt.Errorf("ページ解析に失敗したのだ: %w", err)
	}

	out, err := json.MarshalIndent(analysisOutput{PageContext: pc, Characters: sightings}, "", "  ")
	if err != nil {
		return fmt.Errorf("解析結果のエンコードに失敗したのだ: %w", err)
	}

	if r.options.OutputPath == "" {
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}
	if err := r.writer.Write(ctx, r.options.OutputPath, bytes.NewReader(out), "application/json"); err != nil {
		return fmt.Errorf("解析結果 '%s' の保存に失敗したのだ: %w", r.options.OutputPath, err)
	}
	r.logger.Info("解析結果を保存したのだ", "output", r.options.OutputPath, "characters", len(sightings))
	return nil
}
