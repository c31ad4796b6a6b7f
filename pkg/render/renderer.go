// Package render は訳文を吹き出しジオメトリへ流し込む適応描画器です。
package render

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strings"

	"github.com/shouni/go-comic-trans/pkg/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// 縮小フィットループの既定パラメータです。値はいずれも調整済みの定数で、
// 設定で上書きできます。
const (
	DefaultMaxFontSize     = 40
	DefaultMinFontSize     = 8
	DefaultFontStep        = 2
	DefaultHeightFitRatio  = 0.8 // 吹き出し高さに対する許容割合
	DefaultWidthFitRatio   = 0.8
	DefaultLineSpacing     = 1.2
	DefaultGlyphWidthRatio = 0.6 // 平均字幅 ≒ 0.6 × フォントサイズ
	overflowFragmentRunes  = 20
)

// Config は描画器の調整パラメータ一式です。
type Config struct {
	MaxFontSize     int
	MinFontSize     int
	FontStep        int
	HeightFitRatio  float64
	WidthFitRatio   float64
	LineSpacing     float64
	GlyphWidthRatio float64
	CoverColor      color.Color // 被覆楕円の塗り色
	TextColor       color.Color // 本文の塗り色
	OutlineColor    color.Color // 8近傍アウトラインの色（本文と対比する色）
}

// DefaultConfig は白塗り・黒文字・白縁取りの推奨設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxFontSize:     DefaultMaxFontSize,
		MinFontSize:     DefaultMinFontSize,
		FontStep:        DefaultFontStep,
		HeightFitRatio:  DefaultHeightFitRatio,
		WidthFitRatio:   DefaultWidthFitRatio,
		LineSpacing:     DefaultLineSpacing,
		GlyphWidthRatio: DefaultGlyphWidthRatio,
		CoverColor:      color.White,
		TextColor:       color.Black,
		OutlineColor:    color.White,
	}
}

// Report は1ページ分の描画結果の集計です。失敗はカウントとフラグで報告し、
// 例外としては扱いません。
type Report struct {
	Rendered    int   // 完全に収まった吹き出し数
	Overflowed  int   // 最小サイズでも収まらず切り詰めた吹き出し数
	Skipped     int   // センチネルのため描画対象外だった吹き出し数
	OverflowIDs []int // 切り詰めが起きた吹き出しのID
}

// Renderer は被覆楕円の上へ訳文を縮小フィットで描画します。
type Renderer struct {
	fonts *FontResolver
	cfg   Config
}

// NewRenderer は解決済みフォントと設定から描画器を生成します。
func NewRenderer(fonts *FontResolver, cfg Config) *Renderer {
	if cfg.MaxFontSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Renderer{fonts: fonts, cfg: cfg}
}

// Render は原画像のコピーに全吹き出しの被覆と訳文を描き、結果を返します。
//
// 描画は必ず2パスです。まず原文がセンチネルでない全吹き出しの被覆楕円を描き
// （原文を完全に消すため）、その後に全訳文を描きます。テキストは隣の吹き出しの
// 被覆より先に描かれると塗り潰されてしまうため、この順序は入れ替えられません。
func (r *Renderer) Render(src image.Image, records []*domain.BubbleRecord, targetLang string) (*image.RGBA, Report) {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	var report Report

	// パス1: 被覆楕円
	for _, rec := range records {
		if !rec.Translatable() {
			continue
		}
		fillEllipse(dst, rec.Region.Cover, r.cfg.CoverColor)
	}

	// パス2: 訳文
	for _, rec := range records {
		if !rec.Renderable() {
			report.Skipped++
			continue
		}
		if r.drawTextInBubble(dst, rec.TranslatedText, rec.Region.Box, targetLang) {
			report.Rendered++
		} else {
			report.Overflowed++
			report.OverflowIDs = append(report.OverflowIDs, rec.Region.ID)
			slog.Warn("訳文が吹き出しに収まりませんでした", "bubble_id", rec.Region.ID)
		}
	}

	return dst, report
}

// drawTextInBubble は縮小フィットループで訳文を描画し、収まったかどうかを返します。
//
// 最大サイズから開始し、平均字幅ヒューリスティックで折り返し幅を見積もり、
// 行数×行高が吹き出し高さの許容割合以下になった時点で確定します。
// 最小サイズまで縮めても収まらない場合は先頭約20文字を切り詰めて描く
// ベストエフォートの overflow 終端状態になります。
func (r *Renderer) drawTextInBubble(dst *image.RGBA, text string, box domain.Box, lang string) bool {
	for size := r.cfg.MaxFontSize; size >= r.cfg.MinFontSize; size -= r.cfg.FontStep {
		avgGlyphWidth := float64(size) * r.cfg.GlyphWidthRatio
		maxCharsPerLine := int(float64(box.Width) * r.cfg.WidthFitRatio / avgGlyphWidth)
		if maxCharsPerLine < 1 {
			maxCharsPerLine = 1
		}

		lines := wrapGreedy(text, maxCharsPerLine)
		lineHeight := float64(size) * r.cfg.LineSpacing
		totalHeight := float64(len(lines)) * lineHeight

		if totalHeight > float64(box.Height)*r.cfg.HeightFitRatio {
			continue
		}

		face, err := r.fonts.Face(lang, float64(size))
		if err != nil {
			return false
		}

		// ブロックを垂直センタリングし、各行を水平センタリングします
		y := float64(box.Y) + (float64(box.Height)-totalHeight)/2
		ascent := face.Metrics().Ascent.Ceil()
		for _, line := range lines {
			lineWidth := font.MeasureString(face, line).Ceil()
			x := box.X + (box.Width-lineWidth)/2
			r.drawOutlinedString(dst, face, line, x, int(y)+ascent)
			y += lineHeight
		}
		return true
	}

	// overflow 終端状態: 切り詰めた断片を固定オフセットに描きます
	face, err := r.fonts.Face(lang, float64(r.cfg.MinFontSize))
	if err != nil {
		return false
	}
	fragment := truncateRunes(text, overflowFragmentRunes) + "..."
	r.drawOutlinedString(dst, face, fragment, box.X+5, box.Y+5+face.Metrics().Ascent.Ceil())
	return false
}

// drawOutlinedString は可読性確保のため、8近傍へずらしたアウトラインを描いてから
// 本文色で上書きします。
func (r *Renderer) drawOutlinedString(dst *image.RGBA, face font.Face, s string, x, baseline int) {
	outline := &font.Drawer{Dst: dst, Src: image.NewUniform(r.cfg.OutlineColor), Face: face}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			outline.Dot = fixed.P(x+dx, baseline+dy)
			outline.DrawString(s)
		}
	}

	body := &font.Drawer{Dst: dst, Src: image.NewUniform(r.cfg.TextColor), Face: face}
	body.Dot = fixed.P(x, baseline)
	body.DrawString(s)
}

// wrapGreedy は単語単位の貪欲法でテキストを折り返します。
// 1単語が上限を超える場合はルーン単位で分割します。空白のみの入力は空になります。
func wrapGreedy(text string, maxChars int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			lines = append(lines, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range words {
		runes := []rune(word)
		for len(runes) > maxChars {
			flush()
			lines = append(lines, string(runes[:maxChars]))
			runes = runes[maxChars:]
		}
		wordLen := len(runes)
		if wordLen == 0 {
			continue
		}
		// 行頭以外では区切りスペース分を加味します
		needed := wordLen
		if currentLen > 0 {
			needed++
		}
		if currentLen+needed > maxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(string(runes))
		currentLen += wordLen
	}
	flush()
	return lines
}

// truncateRunes はルーン数で安全に切り詰めます。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
