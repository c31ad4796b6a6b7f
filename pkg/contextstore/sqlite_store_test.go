package contextstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "ctx.db"))
	if err != nil {
		t.Fatalf("ストアのオープンに失敗しました: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	t.Run("未保存キーはErrSnapshotNotFoundを返すこと", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-series")
		if !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("期待 ErrSnapshotNotFound, 実際 %v", err)
		}
	})

	t.Run("保存と読み戻しが無損失であること", func(t *testing.T) {
		tc := New()
		tc.BeginPage(2)
		tc.ApplyPageAnalysis(PageContext{Location: "cave", Genre: "fantasy",
			CharactersPresent: []string{"Toph"}},
			[]CharacterSighting{{Name: "Toph", Emotion: "smug"}})
		tc.IngestOriginal(1, "I can see with my feet.", 0.5)
		tc.RecordTranslation(1, "足で見えるんだ。")

		if err := store.Save(ctx, "avatar", tc.Snapshot()); err != nil {
			t.Fatalf("保存に失敗しました: %v", err)
		}
		snap, err := store.Load(ctx, "avatar")
		if err != nil {
			t.Fatalf("読み戻しに失敗しました: %v", err)
		}

		restored := FromSnapshot(snap)
		if restored.EntryCount() != 1 || restored.Genre() != "fantasy" {
			t.Errorf("復元結果が不正です: entries=%d genre=%s", restored.EntryCount(), restored.Genre())
		}
		if restored.Recent(1)[0].TranslatedText != "足で見えるんだ。" {
			t.Errorf("訳文が往復で失われました: %+v", restored.Recent(1)[0])
		}
	})

	t.Run("同一キーへの保存は上書きになること", func(t *testing.T) {
		tc := New()
		tc.BeginPage(9)
		if err := store.Save(ctx, "avatar", tc.Snapshot()); err != nil {
			t.Fatalf("上書き保存に失敗しました: %v", err)
		}
		snap, err := store.Load(ctx, "avatar")
		if err != nil {
			t.Fatalf("読み戻しに失敗しました: %v", err)
		}
		if snap.CurrentPage != 9 {
			t.Errorf("上書きが反映されていません: page=%d", snap.CurrentPage)
		}
	})
}
