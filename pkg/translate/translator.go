// Package translate は蓄積文脈を利用した吹き出し単位の翻訳を実行します。
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/domain"
	"github.com/shouni/go-comic-trans/pkg/prompt"
)

// DefaultContextWindow は翻訳プロンプトへ含める直近エントリ数です。
const DefaultContextWindow = 8

// Mode は翻訳の実行戦略です。
type Mode string

const (
	// ModeParallel はファンアウト前に文脈を固定し、全吹き出しを並列翻訳します。
	ModeParallel Mode = "parallel"
	// ModeSequential は読み順に1件ずつ翻訳し、直前の訳文を次の文脈へ反映します。
	ModeSequential Mode = "sequential"
)

// TextGenerator はプロンプト1本からテキスト補完を生成します。
// Gemini と OpenAI 互換 API の両実装があります。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options は1ページ分の翻訳指定です。
type Options struct {
	SourceLang string
	TargetLang string
	Mode       Mode
	Window     int // 0 の場合は DefaultContextWindow
}

// Translator は吹き出し群の翻訳を束ねます。
type Translator struct {
	gen     TextGenerator
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New は新しい Translator を生成します。
func New(gen TextGenerator, limiter *rate.Limiter, logger *slog.Logger) *Translator {
	return &Translator{gen: gen, limiter: limiter, logger: logger}
}

// TranslateAll は全レコードを翻訳し、訳文を書き込んだスライスを返します。
//
// 番兵（EMPTY / ERROR）はそのまま訳文へ伝播します。個別の翻訳失敗は
// 原文をそのまま訳文に採用して処理を続けます。完了後、訳文は tc の
// 対応エントリへ書き戻されます。tc を並行して触るのは呼び出し側の契約違反です。
func (t *Translator) TranslateAll(ctx context.Context, records []domain.BubbleRecord, tc *contextstore.TranslationContext, opts Options) ([]domain.BubbleRecord, error) {
	window := opts.Window
	if window <= 0 {
		window = DefaultContextWindow
	}

	var err error
	switch opts.Mode {
	case ModeSequential:
		err = t.translateSequential(ctx, records, tc, opts, window)
	default:
		err = t.translateParallel(ctx, records, tc, opts, window)
	}
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.Translatable() {
			tc.RecordTranslation(rec.Region.ID, rec.TranslatedText)
		}
	}
	return records, nil
}

// translateSequential は読み順の1件ずつを翻訳します。
// 各件の訳文はその場でエントリへ書き戻し、後続の文脈ウィンドウに乗せます。
func (t *Translator) translateSequential(ctx context.Context, records []domain.BubbleRecord, tc *contextstore.TranslationContext, opts Options, window int) error {
	for i := range records {
		if !records[i].Translatable() {
			records[i].TranslatedText = records[i].OriginalText
			continue
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("翻訳が中断されました: %w", err)
		}
		records[i].TranslatedText = t.translateOne(ctx, records[i], tc, opts, window)
		tc.RecordTranslation(records[i].Region.ID, records[i].TranslatedText)
	}
	return nil
}

// translateParallel はプロンプトを先に固定してから全件を並列翻訳します。
func (t *Translator) translateParallel(ctx context.Context, records []domain.BubbleRecord, tc *contextstore.TranslationContext, opts Options, window int) error {
	// ファンアウト前にプロンプトを組み立てて文脈を固定する
	prompts := make([]string, len(records))
	for i := range records {
		if records[i].Translatable() {
			prompts[i] = t.buildPrompt(records[i], tc, opts, window)
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range records {
		i := i // ループ変数のキャプチャ
		if !records[i].Translatable() {
			records[i].TranslatedText = records[i].OriginalText
			continue
		}
		eg.Go(func() error {
			if err := t.limiter.Wait(egCtx); err != nil {
				return err
			}
			records[i].TranslatedText = t.generate(egCtx, prompts[i], records[i])
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("翻訳が中断されました: %w", err)
	}
	return nil
}

func (t *Translator) translateOne(ctx context.Context, rec domain.BubbleRecord, tc *contextstore.TranslationContext, opts Options, window int) string {
	return t.generate(ctx, t.buildPrompt(rec, tc, opts, window), rec)
}

// generate は1件分の補完を実行します。失敗時は原文をそのまま返します。
func (t *Translator) generate(ctx context.Context, promptText string, rec domain.BubbleRecord) string {
	logger := t.logger.With("bubble_id", rec.Region.ID)

	startTime := time.Now()
	translated, err := t.gen.Generate(ctx, promptText)
	if err != nil {
		logger.Warn("翻訳に失敗したため原文を採用します", "error", err)
		return rec.OriginalText
	}
	if translated == "" {
		logger.Warn("空の訳文が返されたため原文を採用します")
		return rec.OriginalText
	}

	logger.Debug("翻訳が完了しました", "duration", time.Since(startTime).Round(time.Millisecond))
	return translated
}

func (t *Translator) buildPrompt(rec domain.BubbleRecord, tc *contextstore.TranslationContext, opts Options, window int) string {
	// 逐次翻訳は自分より前の対訳だけを見る。並列翻訳はプロンプト固定時点で
	// 同一ページの原文が全件積まれているため、前後の原文を両方向とも見せる。
	ctxWindow := tc.WindowAround(rec.Region.ID, window)
	if opts.Mode == ModeSequential {
		ctxWindow = tc.WindowBefore(rec.Region.ID, window)
	}

	data := prompt.TranslationData{
		Text:       rec.OriginalText,
		SourceLang: opts.SourceLang,
		TargetLang: opts.TargetLang,
		Genre:      tc.Genre(),
		StoryArc:   tc.StoryArc(),
		Window:     ctxWindow,
	}
	if pc, ok := tc.CurrentPageContext(); ok {
		data.Page = &pc
	}
	if entry, ok := tc.EntryFor(rec.Region.ID); ok {
		data.Speaker = entry.Speaker
	}
	for _, name := range tc.CharacterNames() {
		if info, ok := tc.Character(name); ok {
			data.Characters = append(data.Characters, info)
		}
	}
	return prompt.BuildTranslationPrompt(data)
}
