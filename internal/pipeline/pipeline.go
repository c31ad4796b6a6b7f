package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-trans/internal/builder"
	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/internal/runner"
	"github.com/shouni/go-comic-trans/pkg/publisher"
)

// ExecuteTranslate は、ページ1枚の翻訳処理（Phase 1〜4）を一気に実行するのだ。
func ExecuteTranslate(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	orchestrator, closer, err := builder.BuildOrchestrator(ctx, appCtx, slog.Default())
	if err != nil {
		return err
	}
	defer closer()

	pageRunner := runner.NewComicPageRunner(
		cfg.Options,
		orchestrator,
		appCtx.Reader,
		appCtx.Writer,
		slog.Default(),
	)
	if err := pageRunner.Run(ctx); err != nil {
		return err
	}

	slog.Info("ページ翻訳が完了したのだ！")
	return nil
}

// ExecuteSeries は、文脈を引き継ぎながら連続ページを処理するのだ。
// ページごとにスナップショットを保存するため、途中再開が可能なのだ。
func ExecuteSeries(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	orchestrator, closer, err := builder.BuildOrchestrator(ctx, appCtx, slog.Default())
	if err != nil {
		return err
	}
	defer closer()

	store, storeCloser, err := builder.BuildContextStore(appCtx)
	if err != nil {
		return err
	}
	defer func() {
		if err := storeCloser(); err != nil {
			slog.Warn("文脈ストアのクローズに失敗したのだ", "error", err)
		}
	}()

	// 物語要約の更新には翻訳と同じ生成バックエンドを使い回すのだ
	summarizer, err := builder.BuildTextGenerator(ctx, appCtx)
	if err != nil {
		return fmt.Errorf("要約バックエンドの初期化に失敗したのだ: %w", err)
	}

	seriesRunner := runner.NewComicSeriesRunner(
		cfg.Options,
		orchestrator,
		appCtx.Reader,
		appCtx.Writer,
		store,
		summarizer,
		publisher.NewComicPublisher(appCtx.Writer),
		slog.Default(),
	)
	if err := seriesRunner.Run(ctx); err != nil {
		return err
	}

	slog.Info("シリーズ翻訳が完了したのだ！")
	return nil
}

// ExecuteAnalyze は、翻訳せずにページ解析の結果だけを出力するのだ。
func ExecuteAnalyze(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	visionClient, err := builder.BuildVisionClient(appCtx)
	if err != nil {
		return err
	}

	analyzeRunner := runner.NewComicAnalyzeRunner(
		cfg.Options,
		visionClient,
		appCtx.Reader,
		appCtx.Writer,
		slog.Default(),
	)
	return analyzeRunner.Run(ctx)
}
