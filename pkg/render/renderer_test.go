package render

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/shouni/go-comic-trans/pkg/domain"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	fonts, err := NewFontResolver(nil, nil)
	if err != nil {
		t.Fatalf("フォントリゾルバの生成に失敗しました: %v", err)
	}
	return NewRenderer(fonts, DefaultConfig())
}

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	return img
}

func record(id, x, y, w, h int, original, translated string) *domain.BubbleRecord {
	return &domain.BubbleRecord{
		Region: domain.Region{
			ID:  id,
			Box: domain.Box{X: x, Y: y, Width: w, Height: h},
			Cover: domain.CoverShape{
				CenterX:   float64(x) + float64(w)/2,
				CenterY:   float64(y) + float64(h)/2,
				SemiMajor: float64(w) / 2 * 0.98,
				SemiMinor: float64(h) / 2 * 0.98,
			},
		},
		OriginalText:   original,
		TranslatedText: translated,
	}
}

func TestWrapGreedy(t *testing.T) {
	t.Run("上限以内の単語は1行にまとまること", func(t *testing.T) {
		lines := wrapGreedy("the quick fox", 20)
		if len(lines) != 1 || lines[0] != "the quick fox" {
			t.Errorf("期待 1 行, 実際 %v", lines)
		}
	})

	t.Run("上限を超えたら折り返すこと", func(t *testing.T) {
		lines := wrapGreedy("aaa bbb ccc ddd", 7)
		for _, line := range lines {
			if len([]rune(line)) > 7 {
				t.Errorf("行 '%s' が上限を超えています", line)
			}
		}
	})

	t.Run("上限より長い単語はルーン単位で分割されること", func(t *testing.T) {
		lines := wrapGreedy("abcdefghij", 4)
		if len(lines) != 3 {
			t.Fatalf("期待 3 行, 実際 %v", lines)
		}
		if lines[0] != "abcd" || lines[1] != "efgh" || lines[2] != "ij" {
			t.Errorf("分割結果が不正です: %v", lines)
		}
	})

	t.Run("空白のみの入力は空になること", func(t *testing.T) {
		if lines := wrapGreedy("   \t  ", 10); lines != nil {
			t.Errorf("期待 nil, 実際 %v", lines)
		}
	})
}

func TestDrawTextInBubble(t *testing.T) {
	r := newTestRenderer(t)

	t.Run("十分な広さなら収まること", func(t *testing.T) {
		img := whiteImage(400, 300)
		if !r.drawTextInBubble(img, "Hello!", domain.Box{X: 50, Y: 50, Width: 300, Height: 200}, "English") {
			t.Error("短いテキストが収まりませんでした")
		}
	})

	t.Run("最小サイズでも収まらなければoverflowになること", func(t *testing.T) {
		img := whiteImage(100, 60)
		long := strings.Repeat("incomprehensibilities ", 40)
		if r.drawTextInBubble(img, long, domain.Box{X: 10, Y: 10, Width: 40, Height: 20}, "English") {
			t.Error("収まるはずのないテキストが fits と報告されました")
		}
	})

	t.Run("空文字・空白のみでもパニックしないこと", func(t *testing.T) {
		img := whiteImage(200, 200)
		for _, text := range []string{"", "   ", "\n\t "} {
			if !r.drawTextInBubble(img, text, domain.Box{X: 10, Y: 10, Width: 100, Height: 100}, "English") {
				t.Errorf("空相当のテキスト %q が fits になりませんでした", text)
			}
		}
	})
}

func TestRenderTwoPass(t *testing.T) {
	r := newTestRenderer(t)
	src := whiteImage(600, 400)

	records := []*domain.BubbleRecord{
		record(1, 20, 20, 200, 100, "Hello", "こんにちは"),
		record(2, 20, 150, 200, 100, domain.TextEmpty, domain.TextEmpty),
		record(3, 300, 20, 200, 100, domain.TextError, domain.TextError),
	}

	out, report := r.Render(src, records, "Japanese")

	t.Run("翻訳済み吹き出しの被覆が描かれること", func(t *testing.T) {
		cx, cy := 120, 70 // 吹き出し1の中心は被覆色になっているはず
		if out.RGBAAt(cx, cy) != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
			t.Errorf("中心画素が被覆色ではありません: %+v", out.RGBAAt(cx, cy))
		}
	})

	t.Run("センチネルの吹き出しは元画素が残ること", func(t *testing.T) {
		for _, pt := range []image.Point{{X: 120, Y: 200}, {X: 400, Y: 70}} {
			if out.RGBAAt(pt.X, pt.Y) != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
				t.Errorf("(%d,%d) の画素が変更されています: %+v", pt.X, pt.Y, out.RGBAAt(pt.X, pt.Y))
			}
		}
	})

	t.Run("集計が正しいこと", func(t *testing.T) {
		if report.Rendered != 1 || report.Skipped != 2 || report.Overflowed != 0 {
			t.Errorf("集計が不正です: %+v", report)
		}
	})

	t.Run("元画像が変更されていないこと", func(t *testing.T) {
		if src.RGBAAt(120, 70) != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
			t.Error("描画が入力画像を破壊しています")
		}
	})
}

func TestRenderOverflowReported(t *testing.T) {
	r := newTestRenderer(t)
	src := whiteImage(300, 200)
	long := strings.Repeat("unquestionably ", 60)
	records := []*domain.BubbleRecord{record(7, 10, 10, 50, 24, "src", long)}

	_, report := r.Render(src, records, "English")
	if report.Overflowed != 1 {
		t.Fatalf("overflow が報告されていません: %+v", report)
	}
	if len(report.OverflowIDs) != 1 || report.OverflowIDs[0] != 7 {
		t.Errorf("overflow した吹き出しIDが不正です: %v", report.OverflowIDs)
	}
}

func TestFontResolverNeverFails(t *testing.T) {
	fonts, err := NewFontResolver(map[string][]string{
		"Japanese": {"/no/such/font.ttc"},
	}, []string{"/also/missing.ttf"})
	if err != nil {
		t.Fatalf("候補が全滅でもリゾルバ生成は成功すべきです: %v", err)
	}

	t.Run("未解決言語には埋め込みフォントが返ること", func(t *testing.T) {
		if fonts.Font("Japanese") == nil || fonts.Font("Klingon") == nil {
			t.Error("フォント解決が nil を返しました")
		}
	})

	t.Run("フェイスがサイズごとにキャッシュされること", func(t *testing.T) {
		f1, err := fonts.Face("English", 24)
		if err != nil {
			t.Fatalf("フェイス生成に失敗しました: %v", err)
		}
		f2, _ := fonts.Face("English", 24)
		if f1 != f2 {
			t.Error("同一キーのフェイスがキャッシュされていません")
		}
	})
}
