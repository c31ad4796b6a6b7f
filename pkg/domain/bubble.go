package domain

// テキスト欄に入るセンチネル値の定義です。
// 通常の文字列の代わりに格納され、「文字なし」と「呼び出し失敗」を区別します。
const (
	// TextEmpty はモデルが吹き出し内に文字を見つけられなかったことを示します。
	TextEmpty = "EMPTY"
	// TextError は抽出・翻訳呼び出しが失敗（タイムアウト等）したことを示します。
	TextError = "ERROR"
)

// IsSentinel は文字列がセンチネル値かどうかを返します。
func IsSentinel(s string) bool {
	return s == TextEmpty || s == TextError
}

// BubbleRecord は Region にページ内の処理状態を加えたレコードです。
// 抽出完了時に生成され、抽出で1回・翻訳で1回だけ書き換えられます。
// ページ処理中に削除されることはありません。
type BubbleRecord struct {
	Region Region `json:"region"`

	// OriginalText は抽出されたテキスト、または TextEmpty / TextError。
	OriginalText string `json:"original_text"`

	// TranslatedText は翻訳結果。翻訳完了まで空文字列で、完了後は
	// 翻訳文・原文フォールバック・センチネルのいずれかになります。
	TranslatedText string `json:"translated_text"`
}

// Translatable は翻訳リクエストの対象にしてよいレコードかどうかを返します。
// センチネルの原文は翻訳に送らず、翻訳欄へそのまま伝播させます。
func (b *BubbleRecord) Translatable() bool {
	return b.OriginalText != "" && !IsSentinel(b.OriginalText)
}

// Renderable は被覆楕円と訳文の描画対象になるレコードかどうかを返します。
// 原文がセンチネルの吹き出しは元のピクセルを一切触りません。
func (b *BubbleRecord) Renderable() bool {
	return b.Translatable() && b.TranslatedText != "" && !IsSentinel(b.TranslatedText)
}
