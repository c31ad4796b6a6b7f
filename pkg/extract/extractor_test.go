package extract

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"golang.org/x/time/rate"

	"github.com/shouni/go-comic-trans/pkg/domain"
)

type fakeBackend struct {
	calls int64
	fn    func(int64) (string, error)
}

func (f *fakeBackend) ExtractText(_ context.Context, _ []byte) (string, error) {
	n := atomic.AddInt64(&f.calls, 1)
	return f.fn(n)
}

func testRegions(n int) []domain.Region {
	regions := make([]domain.Region, n)
	for i := range regions {
		regions[i] = domain.Region{
			ID:      i + 1,
			Box:     domain.Box{X: 10 * i, Y: 10, Width: 30, Height: 20},
			CropBox: domain.Box{X: 10 * i, Y: 10, Width: 30, Height: 20},
		}
	}
	return regions
}

func newTestExtractor(t *testing.T, backend TextExtractor) *Extractor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewExtractor(backend, rate.NewLimiter(rate.Inf, 1), t.TempDir(), logger)
}

func TestExtractAll(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 200, 100))

	t.Run("全領域が読み順のまま抽出される", func(t *testing.T) {
		backend := &fakeBackend{fn: func(int64) (string, error) { return "hello", nil }}
		e := newTestExtractor(t, backend)

		records, err := e.ExtractAll(context.Background(), page, testRegions(3))
		if err != nil {
			t.Fatalf("ExtractAll() error = %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("レコード数 = %d, want 3", len(records))
		}
		for i, rec := range records {
			if rec.Region.ID != i+1 {
				t.Errorf("records[%d].Region.ID = %d, want %d", i, rec.Region.ID, i+1)
			}
			if rec.OriginalText != "hello" {
				t.Errorf("records[%d].OriginalText = %q", i, rec.OriginalText)
			}
		}
	})

	t.Run("空文字はEMPTY番兵になる", func(t *testing.T) {
		backend := &fakeBackend{fn: func(int64) (string, error) { return "", nil }}
		e := newTestExtractor(t, backend)

		records, err := e.ExtractAll(context.Background(), page, testRegions(1))
		if err != nil {
			t.Fatalf("ExtractAll() error = %v", err)
		}
		if records[0].OriginalText != domain.TextEmpty {
			t.Errorf("OriginalText = %q, want %q", records[0].OriginalText, domain.TextEmpty)
		}
	})

	t.Run("個別の失敗はERROR番兵になり他領域は継続する", func(t *testing.T) {
		backend := &fakeBackend{fn: func(n int64) (string, error) {
			if n == 1 {
				return "", errors.New("api down")
			}
			return "ok", nil
		}}
		e := newTestExtractor(t, backend)

		records, err := e.ExtractAll(context.Background(), page, testRegions(3))
		if err != nil {
			t.Fatalf("ExtractAll() error = %v", err)
		}
		var errCount, okCount int
		for _, rec := range records {
			switch rec.OriginalText {
			case domain.TextError:
				errCount++
			case "ok":
				okCount++
			}
		}
		if errCount != 1 || okCount != 2 {
			t.Errorf("errCount = %d, okCount = %d, want 1/2", errCount, okCount)
		}
	})

	t.Run("切り出し範囲が空ならバックエンドを呼ばずERRORになる", func(t *testing.T) {
		backend := &fakeBackend{fn: func(int64) (string, error) { return "ok", nil }}
		e := newTestExtractor(t, backend)

		regions := testRegions(1)
		regions[0].CropBox = domain.Box{}
		records, err := e.ExtractAll(context.Background(), page, regions)
		if err != nil {
			t.Fatalf("ExtractAll() error = %v", err)
		}
		if records[0].OriginalText != domain.TextError {
			t.Errorf("OriginalText = %q, want %q", records[0].OriginalText, domain.TextError)
		}
		if atomic.LoadInt64(&backend.calls) != 0 {
			t.Errorf("バックエンド呼び出し回数 = %d, want 0", backend.calls)
		}
	})

	t.Run("コンテキスト取り消しで中断する", func(t *testing.T) {
		backend := &fakeBackend{fn: func(int64) (string, error) { return "ok", nil }}
		e := newTestExtractor(t, backend)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := e.ExtractAll(ctx, page, testRegions(2)); err == nil {
			t.Error("取り消し済みコンテキストではエラーが返るべき")
		}
	})

	t.Run("一時ファイルは処理後に残らない", func(t *testing.T) {
		backend := &fakeBackend{fn: func(int64) (string, error) { return "ok", nil }}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		workDir := t.TempDir()
		e := NewExtractor(backend, rate.NewLimiter(rate.Inf, 1), workDir, logger)

		if _, err := e.ExtractAll(context.Background(), page, testRegions(3)); err != nil {
			t.Fatalf("ExtractAll() error = %v", err)
		}
		entries, err := os.ReadDir(workDir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("作業ディレクトリに %d 件のファイルが残っています", len(entries))
		}
	})
}
