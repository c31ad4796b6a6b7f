// Package prompt は各AI呼び出しへ渡す指示文のテンプレートと組み立てを担います。
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shouni/go-comic-trans/pkg/contextstore"
)

//go:embed extract.md
var ExtractionPrompt string

//go:embed analyze_page.md
var PageAnalysisPrompt string

// TranslationData は翻訳プロンプト1件分の材料です。
type TranslationData struct {
	Text       string // 翻訳対象の原文
	SourceLang string // 申告された原語
	TargetLang string // 訳語
	Speaker    string // 推定話者（unknown 可）
	Genre      string // 確定済みジャンル（空可）
	StoryArc   string // 物語要約（空可）
	Page       *contextstore.PageContext
	Characters []contextstore.CharacterInfo
	Window     []contextstore.BubbleContext // 直近の対訳エントリ
}

// BuildTranslationPrompt は蓄積済み文脈を織り込んだ翻訳指示文を組み立てます。
//
// 申告された原語と実際の言語が食い違うことがあるため、実物の言語を
// 自動判定して翻訳するよう必ず指示します。
func BuildTranslationPrompt(d TranslationData) string {
	var sb strings.Builder

	if d.Genre != "" {
		fmt.Fprintf(&sb, "Comic Genre: %s\n", d.Genre)
	}
	if d.StoryArc != "" {
		fmt.Fprintf(&sb, "Story so far: %s\n", d.StoryArc)
	}

	if d.Page != nil {
		sb.WriteString("\nCurrent Page Context:\n")
		fmt.Fprintf(&sb, "- Location: %s\n", d.Page.Location)
		fmt.Fprintf(&sb, "- Scene: %s\n", d.Page.SceneDescription)
		fmt.Fprintf(&sb, "- Mood/Atmosphere: %s\n", d.Page.Mood)
		fmt.Fprintf(&sb, "- Time context: %s\n", d.Page.TimeContext)
		if len(d.Page.CharactersPresent) > 0 {
			fmt.Fprintf(&sb, "- Characters present: %s\n", strings.Join(d.Page.CharactersPresent, ", "))
		}
		if len(d.Page.KeyEvents) > 0 {
			fmt.Fprintf(&sb, "- Key events: %s\n", strings.Join(d.Page.KeyEvents, ", "))
		}
	}

	if len(d.Characters) > 0 {
		sb.WriteString("\nKnown Characters:\n")
		for _, c := range d.Characters {
			fmt.Fprintf(&sb, "- %s: %s\n", c.Name, c.VisualDescription)
			if len(c.SpeechPatterns) > 0 {
				limit := len(c.SpeechPatterns)
				if limit > 3 {
					limit = 3
				}
				fmt.Fprintf(&sb, "  Speech style: %s\n", strings.Join(c.SpeechPatterns[:limit], ", "))
			}
		}
	}

	if len(d.Window) > 0 {
		sb.WriteString("\nRecent dialogue context:\n")
		for _, e := range d.Window {
			speaker := ""
			if e.Speaker != "" && e.Speaker != "unknown" {
				speaker = fmt.Sprintf(" (%s)", e.Speaker)
			}
			fmt.Fprintf(&sb, "- %s%s\n", e.OriginalText, speaker)
			if e.TranslatedText != "" {
				fmt.Fprintf(&sb, "  → %s\n", e.TranslatedText)
			}
		}
	}

	sb.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&sb, "Now translate the following text to %s.\n", d.TargetLang)
	fmt.Fprintf(&sb, "The declared source language is %s, but auto-detect the actual language of the text and translate from that language if it differs.\n", d.SourceLang)
	fmt.Fprintf(&sb, "Text: %q\n", d.Text)

	if d.Speaker != "" && d.Speaker != "unknown" {
		fmt.Fprintf(&sb, "\nLikely speaker: %s\n", d.Speaker)
	}

	sb.WriteString("\nConsider:\n")
	sb.WriteString("- Consistency with character names and previous dialogue\n")
	sb.WriteString("- The current scene, mood and situation\n")
	fmt.Fprintf(&sb, "- Comic book dialogue style appropriate for %s\n", d.TargetLang)
	sb.WriteString("\nReturn ONLY the translated text, no explanations.")

	return sb.String()
}

// BuildSummaryPrompt はページ境界で物語要約を更新するための指示文を組み立てます。
func BuildSummaryPrompt(currentArc string, window []contextstore.BubbleContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current story context: %s\n\n", currentArc)
	sb.WriteString("New dialogue from the latest page:\n")
	for _, e := range window {
		fmt.Fprintf(&sb, "- %s\n", e.OriginalText)
	}
	sb.WriteString("\nProvide a brief (2-3 sentences) summary of the most important current context for the story, including key character states and ongoing plot points. Return only the summary.")
	return sb.String()
}
