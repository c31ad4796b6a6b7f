package render

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/patrickmn/go-cache"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontResolver は対象言語ごとのフォントを起動時に一度だけ解決して保持します。
// 描画呼び出しのたびにパスを探索することはありません。
//
// 解決順は、言語ごとの候補リスト → 汎用候補リスト → 埋め込みの最終フォント。
// 最終フォントはバイナリに同梱されているため、解決が失敗することはありません。
// 最悪でも字形が劣化するだけで、パイプラインは止まりません。
type FontResolver struct {
	resolved map[string]*opentype.Font
	fallback *opentype.Font
	faces    *cache.Cache // "lang/size" -> font.Face
}

// NewFontResolver は候補リストを解決してリゾルバを生成します。
// languages は対象言語名 → フォントファイル候補（優先順）のマップ、
// generic は全言語共通のフォールバック候補です。
func NewFontResolver(languages map[string][]string, generic []string) (*FontResolver, error) {
	fallback, err := opentype.Parse(goregular.TTF)
	if err != nil {
		// goregular は埋め込み定数なので、ここで落ちるのはビルド異常だけです
		return nil, fmt.Errorf("埋め込みフォントのパースに失敗しました: %w", err)
	}

	r := &FontResolver{
		resolved: make(map[string]*opentype.Font, len(languages)),
		fallback: fallback,
		faces:    cache.New(cache.NoExpiration, 0),
	}

	for lang, candidates := range languages {
		if ft := loadFirstAvailable(append(append([]string{}, candidates...), generic...)); ft != nil {
			r.resolved[lang] = ft
			continue
		}
		slog.Warn("言語用フォントが見つからないため埋め込みフォントを使います", "language", lang)
	}
	return r, nil
}

// Font は言語に対して解決済みのフォントを返します。未解決なら最終フォントです。
func (r *FontResolver) Font(lang string) *opentype.Font {
	if ft, ok := r.resolved[lang]; ok {
		return ft
	}
	return r.fallback
}

// Face は指定サイズのフェイスを返します。フェイス生成はサイズごとにキャッシュされます。
func (r *FontResolver) Face(lang string, size float64) (font.Face, error) {
	key := fmt.Sprintf("%s/%.1f", lang, size)
	if cached, ok := r.faces.Get(key); ok {
		return cached.(font.Face), nil
	}

	face, err := opentype.NewFace(r.Font(lang), &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("フェイス生成に失敗しました (lang=%s size=%.1f): %w", lang, size, err)
	}
	r.faces.Set(key, face, cache.NoExpiration)
	return face, nil
}

// loadFirstAvailable は候補リストの中で最初にパースできたフォントを返します。
func loadFirstAvailable(paths []string) *opentype.Font {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if ft, err := opentype.Parse(data); err == nil {
			return ft
		}
		// .ttc はコレクションとしてパースし、先頭のフォントを使います
		if coll, err := opentype.ParseCollection(data); err == nil && coll.NumFonts() > 0 {
			if ft, err := coll.Font(0); err == nil {
				return ft
			}
		}
	}
	return nil
}
