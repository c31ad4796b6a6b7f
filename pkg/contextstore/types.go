// Package contextstore は、吹き出し横断・ページ横断で翻訳文脈を蓄積するストアです。
//
// ストアの変更はオーケストレータがファンアウトの合間に逐次行う契約のため、
// 内部にロックは持ちません。
package contextstore

// CharacterInfo は作中に登場するキャラクターについて推定された情報です。
// 自由文のメモではなく、フィールドの定まったレコードとして保持します。
type CharacterInfo struct {
	Name                string            `json:"name"`
	VisualDescription   string            `json:"visual_description"`
	SpeechPatterns      []string          `json:"speech_patterns"`
	Relationships       map[string]string `json:"relationships"`
	EmotionsShown       []string          `json:"emotions_shown"`
	FirstAppearancePage int               `json:"first_appearance_page"`
}

// PageContext はマルチモーダル解析で得られる1ページ分の意味的文脈です。
type PageContext struct {
	PageNumber        int      `json:"page_number"`
	Location          string   `json:"location"`
	Mood              string   `json:"mood"`
	VisualElements    []string `json:"visual_elements"`
	TimeContext       string   `json:"time_context"`
	CharactersPresent []string `json:"characters_present"`
	SceneDescription  string   `json:"scene_description"`
	Genre             string   `json:"genre"`
	PanelLayout       string   `json:"panel_layout"`
	KeyEvents         []string `json:"key_events"`
}

// NeutralPageContext は解析に失敗したページへ充てる既定の文脈を返します。
func NeutralPageContext(pageNumber int) PageContext {
	return PageContext{
		PageNumber:  pageNumber,
		Location:    "unknown",
		Mood:        "neutral",
		Genre:       "unknown",
		PanelLayout: "standard",
	}
}

// CharacterSighting はページ解析が報告するキャラクターの観測1件です。
type CharacterSighting struct {
	Name              string `json:"name"`
	VisualDescription string `json:"visual_description"`
	Emotion           string `json:"emotion"`
}

// BubbleContext は吹き出し1個分の対訳エントリです。ストア内では読み順に並びます。
type BubbleContext struct {
	BubbleID       int    `json:"bubble_id"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	Speaker        string `json:"speaker"`
	Emotion        string `json:"emotion"`
	PageNumber     int    `json:"page_number"`
}

// Snapshot はストアの全状態を JSON 形で永続化するためのレコードです。
// Save → Load の往復でストアが公開する全フィールドが無損失に復元されます。
type Snapshot struct {
	Characters     map[string]CharacterInfo `json:"characters"`
	PageContexts   []PageContext            `json:"page_contexts"`
	BubbleContexts []BubbleContext          `json:"bubble_contexts"`
	StoryArc       string                   `json:"story_arc"`
	Genre          string                   `json:"genre"`
	CurrentPage    int                      `json:"current_page"`
}
