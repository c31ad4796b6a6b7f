package runner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-comic-trans/internal/config"
	"github.com/shouni/go-comic-trans/pkg/contextstore"
	"github.com/shouni/go-comic-trans/pkg/pipeline"
)

// fakeProcessor は処理したページ番号を記録するのだ。
type fakeProcessor struct {
	pages []int
}

func (f *fakeProcessor) ProcessPage(ctx context.Context, img image.Image, pageNumber int, tc *contextstore.TranslationContext, opts pipeline.Options) (*pipeline.PageResult, error) {
	f.pages = append(f.pages, pageNumber)
	tc.BeginPage(pageNumber)
	tc.IngestOriginal(1, fmt.Sprintf("page %d text", pageNumber), 0.3)
	return &pipeline.PageResult{
		PageNumber: pageNumber,
		Image:      image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}, nil
}

// pngReader はどのパスにも同じ小さなPNGを返すのだ。
type pngReader struct{}

func (pngReader) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

// recordWriter は書き込まれたパスだけ覚えて中身は捨てるのだ。
type recordWriter struct {
	paths []string
}

func (w *recordWriter) Write(ctx context.Context, path string, data io.Reader, mimeType string) error {
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	return nil
}

// memStore はインメモリの文脈ストアなのだ。
type memStore struct {
	snaps map[string]*contextstore.Snapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]*contextstore.Snapshot)}
}

func (s *memStore) Save(ctx context.Context, key string, snap *contextstore.Snapshot) error {
	s.snaps[key] = snap
	return nil
}

func (s *memStore) Load(ctx context.Context, key string) (*contextstore.Snapshot, error) {
	snap, ok := s.snaps[key]
	if !ok {
		return nil, contextstore.ErrSnapshotNotFound
	}
	return snap, nil
}

func seriesDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newSeriesRunner(opts config.GenerateOptions, proc *fakeProcessor, store contextstore.Store) (*ComicSeriesRunner, *recordWriter) {
	writer := &recordWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewComicSeriesRunner(opts, proc, pngReader{}, writer, store, nil, nil, logger), writer
}

func TestSeriesRunnerResume(t *testing.T) {
	dir := seriesDir(t, "p1.png", "p2.png", "p3.png")
	store := newMemStore()
	store.snaps["vol1"] = &contextstore.Snapshot{
		BubbleContexts: []contextstore.BubbleContext{{BubbleID: 1, OriginalText: "x", PageNumber: 2}},
		CurrentPage:    2,
	}

	opts := config.GenerateOptions{InputDir: dir, OutputDir: t.TempDir(), SeriesKey: "vol1"}
	proc := &fakeProcessor{}
	runner, writer := newSeriesRunner(opts, proc, store)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 処理済みの2ページは飛ばし、3枚目だけをページ3として処理する
	if len(proc.pages) != 1 || proc.pages[0] != 3 {
		t.Errorf("処理されたページ = %v, want [3]", proc.pages)
	}
	var sawThird bool
	for _, p := range writer.paths {
		if strings.Contains(p, "p1_translated") || strings.Contains(p, "p2_translated") {
			t.Errorf("処理済みページが再保存されています: %s", p)
		}
		if strings.Contains(p, "p3_translated") {
			sawThird = true
		}
	}
	if !sawThird {
		t.Error("3枚目の翻訳済み画像が保存されていません")
	}
	if snap := store.snaps["vol1"]; snap.CurrentPage != 3 {
		t.Errorf("保存されたCurrentPage = %d, want 3", snap.CurrentPage)
	}
}

func TestSeriesRunnerAllPagesDone(t *testing.T) {
	dir := seriesDir(t, "p1.png", "p2.png")
	store := newMemStore()
	store.snaps["vol1"] = &contextstore.Snapshot{
		BubbleContexts: []contextstore.BubbleContext{{BubbleID: 1, OriginalText: "x", PageNumber: 2}},
		CurrentPage:    2,
	}

	opts := config.GenerateOptions{InputDir: dir, OutputDir: t.TempDir(), SeriesKey: "vol1"}
	proc := &fakeProcessor{}
	runner, writer := newSeriesRunner(opts, proc, store)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(proc.pages) != 0 {
		t.Errorf("処理されたページ = %v, want なし", proc.pages)
	}
	if len(writer.paths) != 0 {
		t.Errorf("書き込みが発生しています: %v", writer.paths)
	}
}

func TestSeriesRunnerFresh(t *testing.T) {
	dir := seriesDir(t, "p1.png", "p2.png")
	store := newMemStore()
	store.snaps["vol1"] = &contextstore.Snapshot{
		BubbleContexts: []contextstore.BubbleContext{{BubbleID: 1, OriginalText: "x", PageNumber: 5}},
		CurrentPage:    5,
	}

	opts := config.GenerateOptions{InputDir: dir, OutputDir: t.TempDir(), SeriesKey: "vol1", FreshContext: true}
	proc := &fakeProcessor{}
	runner, _ := newSeriesRunner(opts, proc, store)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(proc.pages) != 2 || proc.pages[0] != 1 || proc.pages[1] != 2 {
		t.Errorf("処理されたページ = %v, want [1 2]", proc.pages)
	}
}

func TestSeriesRunnerMissingSnapshot(t *testing.T) {
	dir := seriesDir(t, "p1.png")
	opts := config.GenerateOptions{InputDir: dir, OutputDir: t.TempDir(), SeriesKey: "vol1"}
	proc := &fakeProcessor{}
	runner, _ := newSeriesRunner(opts, proc, newMemStore())

	err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("スナップショットなしでエラーになりません")
	}
	if !strings.Contains(err.Error(), "--fresh") {
		t.Errorf("エラーに --fresh の案内がありません: %v", err)
	}
	if len(proc.pages) != 0 {
		t.Errorf("処理されたページ = %v, want なし", proc.pages)
	}
}
