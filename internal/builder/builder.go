package builder

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/detect"
	"github.com/shouni/go-comic-trans/pkg/extract"
	"github.com/shouni/go-comic-trans/pkg/geometry"
	"github.com/shouni/go-comic-trans/pkg/ocr"
	"github.com/shouni/go-comic-trans/pkg/pipeline"
	"github.com/shouni/go-comic-trans/pkg/render"
	"github.com/shouni/go-comic-trans/pkg/translate"
	"github.com/shouni/go-comic-trans/pkg/vision"

	"github.com/shouni/go-gemini-client/pkg/gemini"
)

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultGeminiTemperature = float32(0.2)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// BuildVisionClient は OpenAI 互換のビジョンクライアントを初期化するのだ。
func BuildVisionClient(appCtx *AppContext) (*vision.Client, error) {
	client, err := vision.NewClient(vision.Config{
		APIKey:  appCtx.Config.VisionAPIKey,
		BaseURL: appCtx.Config.VisionBaseURL,
		Model:   appCtx.Config.VisionModel,
		Timeout: appCtx.Options.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ビジョンクライアントの初期化に失敗したのだ: %w", err)
	}
	return client, nil
}

// BuildTextGenerator は翻訳に使うテキスト生成バックエンドを選ぶのだ。
// 既定は Gemini で、--translator openai のときだけビジョンAPI側を使う。
func BuildTextGenerator(ctx context.Context, appCtx *AppContext) (translate.TextGenerator, error) {
	if appCtx.Options.TranslateBackend == "openai" {
		return BuildVisionClient(appCtx)
	}

	aiClient, err := InitializeAIClient(ctx, appCtx.Config.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	return translate.NewGeminiGenerator(aiClient, appCtx.Config.GeminiModel), nil
}

// BuildTextExtractor はテキスト抽出バックエンドを選ぶのだ。
// --extractor tesseract でローカル OCR、それ以外はビジョンAPIを使う。
func BuildTextExtractor(appCtx *AppContext) (extract.TextExtractor, error) {
	if appCtx.Options.ExtractBackend == "tesseract" {
		return ocr.NewTesseractExtractor(appCtx.Options.SourceLang), nil
	}
	return BuildVisionClient(appCtx)
}

// BuildContextStore は文脈スナップショットの保存先を構築するのだ。
// 返される closer は SQLite のときだけ実体があり、必ず呼ぶこと。
func BuildContextStore(appCtx *AppContext) (contextstore.Store, func() error, error) {
	noop := func() error { return nil }

	if appCtx.Options.StoreBackend == "sqlite" {
		dbPath := appCtx.Options.ContextDB
		if dbPath == "" {
			dbPath = config.DefaultContextDB
		}
		store, err := contextstore.OpenSQLiteStore(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("SQLiteストアの初期化に失敗したのだ: %w", err)
		}
		return store, store.Close, nil
	}

	dir := appCtx.Options.ContextDir
	if dir == "" {
		dir = config.DefaultContextDir
	}
	return contextstore.NewFileStore(appCtx.Reader, appCtx.Writer, dir), noop, nil
}

// BuildDetector は吹き出し検出器を初期化するのだ。Close は呼び出し側の責務。
func BuildDetector(appCtx *AppContext, logger *slog.Logger) (*detect.Detector, error) {
	detector, err := detect.NewDetector(detect.Config{
		ModelPath:     appCtx.Config.DetectorModelPath,
		LibraryPath:   appCtx.Config.OnnxLibraryPath,
		ConfThreshold: float32(appCtx.Options.ConfThreshold),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("検出器の初期化に失敗したのだ: %w", err)
	}
	return detector, nil
}

// BuildRenderer は描画器を初期化するのだ。フォント解決は起動時のここで一度だけ行う。
func BuildRenderer(logger *slog.Logger) (*render.Renderer, error) {
	fonts, err := render.NewFontResolver(config.FontCandidates(), config.GenericFontCandidates())
	if err != nil {
		return nil, fmt.Errorf("フォント解決器の初期化に失敗したのだ: %w", err)
	}
	return render.NewRenderer(fonts, render.DefaultConfig()), nil
}

// newAPILimiter は外部API1系統ぶんの呼び出しレートを作るのだ。
func newAPILimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(config.DefaultRateInterval), config.DefaultRateBurst)
}

// BuildOrchestrator はページ処理パイプライン全体を組み上げるのだ。
// 返される closer は検出器などの後始末をまとめたもので、必ず呼ぶこと。
func BuildOrchestrator(ctx context.Context, appCtx *AppContext, logger *slog.Logger) (*pipeline.Orchestrator, func() error, error) {
	detector, err := BuildDetector(appCtx, logger)
	if err != nil {
		return nil, nil, err
	}

	extractBackend, err := BuildTextExtractor(appCtx)
	if err != nil {
		detector.Close()
		return nil, nil, err
	}

	generator, err := BuildTextGenerator(ctx, appCtx)
	if err != nil {
		detector.Close()
		return nil, nil, err
	}

	// ページ解析はビジョンAPIが設定済みのときだけ有効にする
	var analyzer pipeline.PageAnalyzer
	if appCtx.Options.AnalyzePage {
		visionClient, err := BuildVisionClient(appCtx)
		if err != nil {
			detector.Close()
			return nil, nil, fmt.Errorf("ページ解析にはビジョンAPIの設定が必要なのだ: %w", err)
		}
		analyzer = visionClient
	}

	renderer, err := BuildRenderer(logger)
	if err != nil {
		detector.Close()
		return nil, nil, err
	}

	// 抽出と翻訳は別サービスへの呼び出しなので、レート制限も能力ごとに分ける
	extractor := extract.NewExtractor(extractBackend, newAPILimiter(), appCtx.Options.WorkDir, logger)
	translator := translate.New(generator, newAPILimiter(), logger)
	normalizer := geometry.NewNormalizer(0, 0)

	orchestrator := pipeline.NewOrchestrator(
		detector,
		analyzer,
		normalizer,
		extractor,
		translator,
		renderer,
		logger,
	)
	return orchestrator, detector.Close, nil
}
