package ocr

import "testing"

func TestNewTesseractExtractorLanguage(t *testing.T) {
	tests := []struct {
		name string
		lang string
		want string
	}{
		{"英語", "en", "eng"},
		{"日本語", "ja", "jpn"},
		{"簡体字中国語", "zh", "chi_sim"},
		{"大文字でも解決できる", "JA", "jpn"},
		{"未知のコードは英語へフォールバック", "xx", "eng"},
		{"空文字も英語へフォールバック", "", "eng"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewTesseractExtractor(tt.lang)
			if e.language != tt.want {
				t.Errorf("language = %q, want %q", e.language, tt.want)
			}
		})
	}
}
