package contextstore

import (
	"sort"
	"strings"
)

// TranslationContext はページ内・ページ間で翻訳文脈を積み上げるアキュムレータです。
// キャラクター集合は実行中に増えるだけで、ページ処理の途中で刈り込まれることはありません。
type TranslationContext struct {
	characters     map[string]*CharacterInfo
	pageContexts   []PageContext
	entries        []BubbleContext
	storyArc       string
	genre          string
	currentPage    int
	currentPageCtx *PageContext
}

// New は空の TranslationContext を生成します。
func New() *TranslationContext {
	return &TranslationContext{
		characters:  make(map[string]*CharacterInfo),
		currentPage: 1,
	}
}

// FromSnapshot は永続化されたスナップショットからストアを復元します。
func FromSnapshot(snap *Snapshot) *TranslationContext {
	tc := New()
	for name, info := range snap.Characters {
		c := info
		tc.characters[name] = &c
	}
	tc.pageContexts = append(tc.pageContexts, snap.PageContexts...)
	tc.entries = append(tc.entries, snap.BubbleContexts...)
	tc.storyArc = snap.StoryArc
	tc.genre = snap.Genre
	tc.currentPage = snap.CurrentPage
	if len(tc.pageContexts) > 0 {
		last := tc.pageContexts[len(tc.pageContexts)-1]
		tc.currentPageCtx = &last
	}
	return tc
}

// Snapshot はストアの全状態を永続化用レコードとして書き出します。
func (tc *TranslationContext) Snapshot() *Snapshot {
	snap := &Snapshot{
		Characters:     make(map[string]CharacterInfo, len(tc.characters)),
		PageContexts:   append([]PageContext(nil), tc.pageContexts...),
		BubbleContexts: append([]BubbleContext(nil), tc.entries...),
		StoryArc:       tc.storyArc,
		Genre:          tc.genre,
		CurrentPage:    tc.currentPage,
	}
	for name, info := range tc.characters {
		snap.Characters[name] = *info
	}
	return snap
}

// BeginPage は新しいページの処理開始を宣言します。
func (tc *TranslationContext) BeginPage(pageNumber int) {
	tc.currentPage = pageNumber
	tc.currentPageCtx = nil
}

// ApplyPageAnalysis はページ解析の結果を取り込みます。
// ジャンルは未設定のときだけ確定し、新顔のキャラクターを登録します。
func (tc *TranslationContext) ApplyPageAnalysis(pc PageContext, sightings []CharacterSighting) {
	pc.PageNumber = tc.currentPage
	tc.pageContexts = append(tc.pageContexts, pc)
	tc.currentPageCtx = &tc.pageContexts[len(tc.pageContexts)-1]

	if tc.genre == "" && pc.Genre != "" && pc.Genre != "unknown" {
		tc.genre = pc.Genre
	}

	for _, s := range sightings {
		if s.Name == "" {
			continue
		}
		if _, ok := tc.characters[s.Name]; ok {
			continue
		}
		tc.characters[s.Name] = &CharacterInfo{
			Name:                s.Name,
			VisualDescription:   s.VisualDescription,
			Relationships:       map[string]string{},
			EmotionsShown:       []string{s.Emotion},
			FirstAppearancePage: tc.currentPage,
		}
	}
}

// IngestOriginal は抽出済みの原文を読み順どおりにエントリへ追加します。
// ファンアウト前の種まき（seed）にも、逐次モードの途中追記にも使われます。
func (tc *TranslationContext) IngestOriginal(bubbleID int, original string, centerXRatio float64) {
	speaker, emotion := tc.IdentifySpeaker(centerXRatio)
	tc.entries = append(tc.entries, BubbleContext{
		BubbleID:     bubbleID,
		OriginalText: original,
		Speaker:      speaker,
		Emotion:      emotion,
		PageNumber:   tc.currentPage,
	})
	if speaker != "" && speaker != "unknown" {
		tc.observeSpeech(speaker, original)
	}
}

// RecordTranslation は現ページの該当エントリへ訳文を書き戻します。
func (tc *TranslationContext) RecordTranslation(bubbleID int, translated string) {
	for i := len(tc.entries) - 1; i >= 0; i-- {
		e := &tc.entries[i]
		if e.BubbleID == bubbleID && e.PageNumber == tc.currentPage {
			e.TranslatedText = translated
			return
		}
	}
}

// EntryFor は現ページの該当エントリを返します（未登録なら false）。
func (tc *TranslationContext) EntryFor(bubbleID int) (BubbleContext, bool) {
	for i := len(tc.entries) - 1; i >= 0; i-- {
		if tc.entries[i].BubbleID == bubbleID && tc.entries[i].PageNumber == tc.currentPage {
			return tc.entries[i], true
		}
	}
	return BubbleContext{}, false
}

// WindowBefore は現ページの該当エントリより前の、直近 n 件を返します。
// 該当エントリが見つからない場合は Recent(n) と同じ結果になります。
func (tc *TranslationContext) WindowBefore(bubbleID, n int) []BubbleContext {
	if n <= 0 {
		return nil
	}
	end := len(tc.entries)
	for i := len(tc.entries) - 1; i >= 0; i-- {
		if tc.entries[i].BubbleID == bubbleID && tc.entries[i].PageNumber == tc.currentPage {
			end = i
			break
		}
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	out := make([]BubbleContext, end-start)
	copy(out, tc.entries[start:end])
	return out
}

// WindowAround は現ページの該当エントリを除いた、その前後で近い順の n 件を返します。
// 同一ページの原文が全件積まれた状態で、後続の吹き出しの原文も文脈として
// 見せたいときに使います。該当エントリが見つからない場合は Recent(n) と同じです。
func (tc *TranslationContext) WindowAround(bubbleID, n int) []BubbleContext {
	if n <= 0 {
		return nil
	}
	idx := -1
	for i := len(tc.entries) - 1; i >= 0; i-- {
		if tc.entries[i].BubbleID == bubbleID && tc.entries[i].PageNumber == tc.currentPage {
			idx = i
			break
		}
	}
	if idx < 0 {
		return tc.Recent(n)
	}

	rest := make([]BubbleContext, 0, len(tc.entries)-1)
	rest = append(rest, tc.entries[:idx]...)
	rest = append(rest, tc.entries[idx+1:]...)
	if n >= len(rest) {
		return rest
	}

	// 除外した位置を境に、前後のバランスを取った連続範囲を切り出す
	start := idx - n/2
	if start < 0 {
		start = 0
	}
	if start+n > len(rest) {
		start = len(rest) - n
	}
	out := make([]BubbleContext, n)
	copy(out, rest[start:start+n])
	return out
}

// Recent は直近 n 件の対訳エントリ（文脈ウィンドウ）を返します。
func (tc *TranslationContext) Recent(n int) []BubbleContext {
	if n <= 0 || len(tc.entries) == 0 {
		return nil
	}
	if n > len(tc.entries) {
		n = len(tc.entries)
	}
	out := make([]BubbleContext, n)
	copy(out, tc.entries[len(tc.entries)-n:])
	return out
}

// IdentifySpeaker は吹き出しの水平位置からもっともらしい話者を推定します。
// ratio は画像幅で正規化した中心X座標です。2人のときだけ左右で振り分ける
// 素朴なヒューリスティックです。
func (tc *TranslationContext) IdentifySpeaker(ratio float64) (string, string) {
	if tc.currentPageCtx == nil {
		return "unknown", "neutral"
	}
	present := tc.currentPageCtx.CharactersPresent
	switch {
	case len(present) == 1:
		return present[0], "neutral"
	case len(present) == 2:
		if ratio < 0.5 {
			return present[0], "neutral"
		}
		return present[1], "neutral"
	case len(present) > 2:
		return present[0], "neutral"
	}
	return "unknown", "neutral"
}

// CharacterNames は既知のキャラクター名をソート済みで返します。
func (tc *TranslationContext) CharacterNames() []string {
	names := make([]string, 0, len(tc.characters))
	for name := range tc.characters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Character は名前で1人分の情報を引きます。
func (tc *TranslationContext) Character(name string) (CharacterInfo, bool) {
	if c, ok := tc.characters[name]; ok {
		return *c, true
	}
	return CharacterInfo{}, false
}

// CurrentPageContext は処理中ページの意味的文脈を返します（未解析なら false）。
func (tc *TranslationContext) CurrentPageContext() (PageContext, bool) {
	if tc.currentPageCtx == nil {
		return PageContext{}, false
	}
	return *tc.currentPageCtx, true
}

// StoryArc はページ境界で更新される物語の要約を返します。
func (tc *TranslationContext) StoryArc() string { return tc.storyArc }

// SetStoryArc は物語要約を置き換えます。
func (tc *TranslationContext) SetStoryArc(s string) { tc.storyArc = s }

// Genre は確定済みのジャンルを返します。
func (tc *TranslationContext) Genre() string { return tc.genre }

// CurrentPage は処理中のページ番号を返します。
func (tc *TranslationContext) CurrentPage() int { return tc.currentPage }

// EntryCount は蓄積済みの対訳エントリ数を返します。
func (tc *TranslationContext) EntryCount() int { return len(tc.entries) }

// observeSpeech はセリフからキャラクターの話し方の傾向を更新します。
func (tc *TranslationContext) observeSpeech(speaker, text string) {
	info, ok := tc.characters[speaker]
	if !ok {
		info = &CharacterInfo{
			Name:                speaker,
			Relationships:       map[string]string{},
			FirstAppearancePage: tc.currentPage,
		}
		tc.characters[speaker] = info
	}

	add := func(pattern string) {
		for _, p := range info.SpeechPatterns {
			if p == pattern {
				return
			}
		}
		info.SpeechPatterns = append(info.SpeechPatterns, pattern)
	}

	if strings.Contains(text, "!") {
		add("exclamatory")
	}
	if strings.Contains(text, "?") {
		add("questioning")
	}
	if len(strings.Fields(text)) > 20 {
		add("verbose")
	}
	if text != "" && text == strings.ToUpper(text) && text != strings.ToLower(text) {
		add("shouting")
	}
}
