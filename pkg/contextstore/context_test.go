package contextstore

import (
	"reflect"
	"testing"
)

func TestIngestAndRecent(t *testing.T) {
	tc := New()
	tc.BeginPage(1)

	for i := 1; i <= 10; i++ {
		tc.IngestOriginal(i, "line", 0.3)
	}

	t.Run("ウィンドウは直近n件だけ返すこと", func(t *testing.T) {
		recent := tc.Recent(8)
		if len(recent) != 8 {
			t.Fatalf("期待 8 件, 実際 %d 件", len(recent))
		}
		if recent[0].BubbleID != 3 || recent[7].BubbleID != 10 {
			t.Errorf("ウィンドウの範囲が不正です: %d..%d", recent[0].BubbleID, recent[7].BubbleID)
		}
	})

	t.Run("件数より大きいウィンドウ指定は全件になること", func(t *testing.T) {
		if got := len(tc.Recent(100)); got != 10 {
			t.Errorf("期待 10 件, 実際 %d 件", got)
		}
	})

	t.Run("訳文の書き戻しが該当エントリに入ること", func(t *testing.T) {
		tc.RecordTranslation(5, "translated five")
		for _, e := range tc.Recent(100) {
			if e.BubbleID == 5 && e.TranslatedText != "translated five" {
				t.Errorf("書き戻しが反映されていません: %+v", e)
			}
		}
	})
}

func TestApplyPageAnalysis(t *testing.T) {
	tc := New()
	tc.BeginPage(3)
	tc.ApplyPageAnalysis(PageContext{
		Location: "rooftop", Mood: "tense", Genre: "action",
		CharactersPresent: []string{"Aang", "Katara"},
	}, []CharacterSighting{
		{Name: "Aang", VisualDescription: "bald kid with arrow tattoo", Emotion: "determined"},
		{Name: "Katara", VisualDescription: "girl in blue", Emotion: "worried"},
	})

	t.Run("ジャンルは最初の解析で確定すること", func(t *testing.T) {
		if tc.Genre() != "action" {
			t.Errorf("期待 'action', 実際 '%s'", tc.Genre())
		}
		tc.ApplyPageAnalysis(PageContext{Genre: "comedy"}, nil)
		if tc.Genre() != "action" {
			t.Errorf("後続ページでジャンルが上書きされました: '%s'", tc.Genre())
		}
	})

	t.Run("初登場ページが記録されること", func(t *testing.T) {
		c, ok := tc.Character("Aang")
		if !ok {
			t.Fatal("キャラクターが登録されていません")
		}
		if c.FirstAppearancePage != 3 {
			t.Errorf("期待 3, 実際 %d", c.FirstAppearancePage)
		}
	})
}

func TestCharacterSetOnlyGrows(t *testing.T) {
	tc := New()
	tc.BeginPage(1)
	tc.ApplyPageAnalysis(PageContext{CharactersPresent: []string{"Zuko"}},
		[]CharacterSighting{{Name: "Zuko"}})

	before := tc.CharacterNames()
	tc.IngestOriginal(1, "HELLO THERE!", 0.2)
	tc.IngestOriginal(2, "who are you?", 0.8)
	tc.BeginPage(2)
	tc.ApplyPageAnalysis(PageContext{}, nil)

	after := tc.CharacterNames()
	for _, name := range before {
		found := false
		for _, n := range after {
			if n == name {
				found = true
			}
		}
		if !found {
			t.Errorf("キャラクター '%s' が実行中に消えました", name)
		}
	}
}

func TestIdentifySpeaker(t *testing.T) {
	tc := New()
	tc.BeginPage(1)

	t.Run("ページ解析前はunknownであること", func(t *testing.T) {
		speaker, emotion := tc.IdentifySpeaker(0.5)
		if speaker != "unknown" || emotion != "neutral" {
			t.Errorf("期待 (unknown, neutral), 実際 (%s, %s)", speaker, emotion)
		}
	})

	t.Run("2人のときは左右で振り分けること", func(t *testing.T) {
		tc.ApplyPageAnalysis(PageContext{CharactersPresent: []string{"Left", "Right"}}, nil)
		if s, _ := tc.IdentifySpeaker(0.2); s != "Left" {
			t.Errorf("期待 'Left', 実際 '%s'", s)
		}
		if s, _ := tc.IdentifySpeaker(0.8); s != "Right" {
			t.Errorf("期待 'Right', 実際 '%s'", s)
		}
	})
}

func TestSpeechPatternObservation(t *testing.T) {
	tc := New()
	tc.BeginPage(1)
	tc.ApplyPageAnalysis(PageContext{CharactersPresent: []string{"Sokka"}}, nil)

	tc.IngestOriginal(1, "WATCH OUT!", 0.5)
	tc.IngestOriginal(2, "really?", 0.5)

	c, ok := tc.Character("Sokka")
	if !ok {
		t.Fatal("話者がキャラクターとして登録されていません")
	}
	want := map[string]bool{"exclamatory": true, "shouting": true, "questioning": true}
	for _, p := range c.SpeechPatterns {
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("検出されなかったパターン: %v (実際 %v)", want, c.SpeechPatterns)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	tc := New()
	tc.BeginPage(1)
	tc.ApplyPageAnalysis(PageContext{
		Location: "ship deck", Mood: "cheerful", Genre: "adventure",
		CharactersPresent: []string{"Aang"},
	}, []CharacterSighting{{Name: "Aang", Emotion: "happy"}})
	tc.IngestOriginal(1, "Let's go!", 0.4)
	tc.RecordTranslation(1, "行くよ！")
	tc.SetStoryArc("The crew sets sail.")

	restored := FromSnapshot(tc.Snapshot())

	if restored.EntryCount() != tc.EntryCount() {
		t.Errorf("エントリ数が一致しません: %d != %d", restored.EntryCount(), tc.EntryCount())
	}
	if !reflect.DeepEqual(restored.CharacterNames(), tc.CharacterNames()) {
		t.Errorf("キャラクター集合が一致しません: %v != %v", restored.CharacterNames(), tc.CharacterNames())
	}
	if !reflect.DeepEqual(restored.Recent(100), tc.Recent(100)) {
		t.Errorf("エントリ順序が往復で保存されていません")
	}
	if restored.StoryArc() != tc.StoryArc() || restored.Genre() != tc.Genre() {
		t.Errorf("要約/ジャンルが往復で失われました")
	}
	if restored.CurrentPage() != tc.CurrentPage() {
		t.Errorf("ページ番号が往復で失われました: %d != %d", restored.CurrentPage(), tc.CurrentPage())
	}
	if _, ok := restored.CurrentPageContext(); !ok {
		t.Error("復元後に現ページ文脈が失われています")
	}
}

func TestEntryFor(t *testing.T) {
	tc := New()
	tc.BeginPage(3)
	tc.IngestOriginal(1, "Hello", 0.4)
	tc.RecordTranslation(1, "こんにちは")

	t.Run("現ページのエントリを引ける", func(t *testing.T) {
		entry, ok := tc.EntryFor(1)
		if !ok {
			t.Fatal("エントリが見つかりません")
		}
		if entry.OriginalText != "Hello" || entry.TranslatedText != "こんにちは" {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("未登録IDはfalse", func(t *testing.T) {
		if _, ok := tc.EntryFor(99); ok {
			t.Error("存在しないIDでtrueが返りました")
		}
	})

	t.Run("前ページの同じIDは引かない", func(t *testing.T) {
		tc.BeginPage(4)
		if _, ok := tc.EntryFor(1); ok {
			t.Error("前ページのエントリが現ページとして返りました")
		}
	})
}

func TestWindowBefore(t *testing.T) {
	tc := New()
	tc.BeginPage(1)
	for i := 1; i <= 5; i++ {
		tc.IngestOriginal(i, string(rune('a'+i-1)), 0.4)
	}

	t.Run("該当エントリより前だけを返す", func(t *testing.T) {
		window := tc.WindowBefore(4, 8)
		if len(window) != 3 {
			t.Fatalf("窓の長さ = %d, want 3", len(window))
		}
		for i, e := range window {
			if e.BubbleID != i+1 {
				t.Errorf("window[%d].BubbleID = %d, want %d", i, e.BubbleID, i+1)
			}
		}
	})

	t.Run("窓の大きさで切り詰める", func(t *testing.T) {
		window := tc.WindowBefore(5, 2)
		if len(window) != 2 {
			t.Fatalf("窓の長さ = %d, want 2", len(window))
		}
		if window[0].BubbleID != 3 || window[1].BubbleID != 4 {
			t.Errorf("window = %+v", window)
		}
	})

	t.Run("先頭エントリの窓は空", func(t *testing.T) {
		if window := tc.WindowBefore(1, 8); len(window) != 0 {
			t.Errorf("窓の長さ = %d, want 0", len(window))
		}
	})

	t.Run("未登録IDはRecentと同じ範囲", func(t *testing.T) {
		window := tc.WindowBefore(99, 3)
		if len(window) != 3 {
			t.Fatalf("窓の長さ = %d, want 3", len(window))
		}
		if window[2].BubbleID != 5 {
			t.Errorf("末尾のBubbleID = %d, want 5", window[2].BubbleID)
		}
	})
}

func TestWindowAround(t *testing.T) {
	tc := New()
	tc.BeginPage(1)
	for i := 1; i <= 5; i++ {
		tc.IngestOriginal(i, string(rune('a'+i-1)), 0.4)
	}

	t.Run("自分を除いた前後のエントリを返す", func(t *testing.T) {
		window := tc.WindowAround(3, 8)
		if len(window) != 4 {
			t.Fatalf("窓の長さ = %d, want 4", len(window))
		}
		want := []int{1, 2, 4, 5}
		for i, e := range window {
			if e.BubbleID != want[i] {
				t.Errorf("window[%d].BubbleID = %d, want %d", i, e.BubbleID, want[i])
			}
		}
	})

	t.Run("先頭エントリは後続だけが窓に入る", func(t *testing.T) {
		window := tc.WindowAround(1, 8)
		if len(window) != 4 {
			t.Fatalf("窓の長さ = %d, want 4", len(window))
		}
		if window[0].BubbleID != 2 || window[3].BubbleID != 5 {
			t.Errorf("window = %+v", window)
		}
	})

	t.Run("窓の大きさで前後バランスよく切り詰める", func(t *testing.T) {
		window := tc.WindowAround(3, 2)
		if len(window) != 2 {
			t.Fatalf("窓の長さ = %d, want 2", len(window))
		}
		if window[0].BubbleID != 2 || window[1].BubbleID != 4 {
			t.Errorf("window = %+v", window)
		}
	})

	t.Run("未登録IDはRecentと同じ範囲", func(t *testing.T) {
		window := tc.WindowAround(99, 3)
		if len(window) != 3 {
			t.Fatalf("窓の長さ = %d, want 3", len(window))
		}
		if window[2].BubbleID != 5 {
			t.Errorf("末尾のBubbleID = %d, want 5", window[2].BubbleID)
		}
	})
}
