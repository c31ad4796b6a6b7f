package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultGeminiModel   = "gemini-3-flash-preview"
	DefaultVisionModel   = "gpt-4o"
	DefaultModelPath     = "weights/comic-speech-bubble-detector.onnx"
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultRateInterval  = 500 * time.Millisecond // API呼び出しの最小間隔
	DefaultRateBurst     = 2
	DefaultContextDir    = "output/context" // 文脈スナップショットの保存先なのだ
	DefaultContextDB     = "output/context/context.db"
	DefaultOutputDir     = "output/pages"
	DefaultSourceLang    = "en"
	DefaultTargetLang    = "ja"
	DefaultConfThreshold = 0.3
)

// supportedLanguages は対応言語コードと英語名の対応表なのだ。
// プロンプトには言語名を埋め込むため、ここで解決する。
var supportedLanguages = map[string]string{
	"en": "English",
	"ja": "Japanese",
	"zh": "Chinese (Simplified)",
	"ko": "Korean",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
}

// LanguageName は言語コードを英語名へ解決するのだ。未知のコードはそのまま返す。
func LanguageName(code string) string {
	if name, ok := supportedLanguages[code]; ok {
		return name
	}
	return code
}

// IsSupportedLanguage は対応言語かどうかを返すのだ。
func IsSupportedLanguage(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// Config はアプリケーション全体の環境設定（APIキーや接続先）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey string
	GeminiModel  string

	// OpenAI 互換のビジョンAPI設定なのだ（Z.AI や Llama サーバも可）
	VisionAPIKey  string
	VisionBaseURL string
	VisionModel   string

	// 吹き出し検出モデル
	DetectorModelPath string
	OnnxLibraryPath   string

	Options GenerateOptions
}

// LoadConfig は .env と環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:       envutil.GetEnv("GEMINI_MODEL", DefaultGeminiModel),
		VisionAPIKey:      envutil.GetEnv("VISION_API_KEY", ""),
		VisionBaseURL:     envutil.GetEnv("VISION_BASE_URL", ""),
		VisionModel:       envutil.GetEnv("VISION_MODEL", DefaultVisionModel),
		DetectorModelPath: envutil.GetEnv("DETECTOR_MODEL_PATH", DefaultModelPath),
		OnnxLibraryPath:   envutil.GetEnv("ONNXRUNTIME_LIB_PATH", ""),
	}
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 入出力関連
	InputPath  string // --input: ページ画像のパス（ローカル or gs://）
	OutputPath string // --output: 翻訳済み画像の保存先
	InputDir   string // --input-dir: シリーズ処理の入力ディレクトリ
	OutputDir  string // --output-dir

	// 翻訳設定
	SourceLang string // --source-lang
	TargetLang string // --target-lang
	Mode       string // --mode: parallel または sequential
	Window     int    // --context-window

	// バックエンド選択
	TranslateBackend string // --translator: gemini または openai
	ExtractBackend   string // --extractor: vision または tesseract

	// 文脈の永続化
	StoreBackend string // --store: file または sqlite
	SeriesKey    string // --series: シリーズ識別キー
	ContextDir   string // --context-dir
	ContextDB    string // --context-db
	FreshContext bool   // --fresh: 既存の文脈を無視して新規に始める

	// 解析・検出
	AnalyzePage   bool    // --analyze-page
	ConfThreshold float64 // --conf-threshold

	// 実行制御
	HTTPTimeout time.Duration // --http-timeout
	WorkDir     string        // --work-dir: 一時切り出し画像の置き場
}

// FontCandidates は描画に使う言語別フォント候補なのだ。
// 先頭から順に探し、最初に読めたものを採用する。全滅しても
// 埋め込みフォントがあるため描画が止まることはない。
func FontCandidates() map[string][]string {
	return map[string][]string{
		"ja": {
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
		},
		"zh": {
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/truetype/arphic/uming.ttc",
		},
		"ko": {
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/truetype/nanum/NanumGothic.ttf",
		},
	}
}

// GenericFontCandidates はラテン文字系の共通フォント候補なのだ。
func GenericFontCandidates() []string {
	return []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	}
}
