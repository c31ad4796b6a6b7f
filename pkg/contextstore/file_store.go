package contextstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// FileStore はスナップショットを1キー1ファイルの JSON として保存します。
// remoteio 経由なので、保存先はローカルパスでも gs:// でも構いません。
type FileStore struct {
	reader  remoteio.InputReader
	writer  remoteio.OutputWriter
	baseDir string
}

// NewFileStore はベースディレクトリ配下にスナップショットを置くストアを生成します。
func NewFileStore(reader remoteio.InputReader, writer remoteio.OutputWriter, baseDir string) *FileStore {
	return &FileStore{reader: reader, writer: writer, baseDir: baseDir}
}

// Save はスナップショットをインデント付き JSON で書き出します。
func (s *FileStore) Save(ctx context.Context, key string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("スナップショットのエンコードに失敗しました: %w", err)
	}
	if err := s.writer.Write(ctx, s.pathFor(key), bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("スナップショット '%s' の保存に失敗しました: %w", key, err)
	}
	return nil
}

// Load はスナップショットを読み戻します。ファイルが無い場合は ErrSnapshotNotFound です。
func (s *FileStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	rc, err := s.reader.Open(ctx, s.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("キー '%s': %w", key, ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("スナップショット '%s' を開けませんでした: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("スナップショット '%s' の読み込みに失敗しました: %w", key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("スナップショット '%s' が壊れています: %w", key, err)
	}
	return &snap, nil
}

func (s *FileStore) pathFor(key string) string {
	return path.Join(s.baseDir, key+".json")
}
