package contextstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore はスナップショットを SQLite に保存する Store 実装です。
// ファイル散乱を避けたい長期シリーズや、複数シリーズの同居に向きます。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore はデータベースを開き、スキーマを用意して返します。
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=1", path))
	if err != nil {
		return nil, fmt.Errorf("SQLiteのオープンに失敗しました: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	const schema = `CREATE TABLE IF NOT EXISTS context_snapshots (
		series_key  TEXT PRIMARY KEY,
		snapshot    TEXT NOT NULL,
		updated_at  DATETIME NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ作成に失敗しました: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close はデータベース接続を閉じます。
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save はスナップショットを UPSERT で保存します。
func (s *SQLiteStore) Save(ctx context.Context, key string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("スナップショットのエンコードに失敗しました: %w", err)
	}

	const stmt = `INSERT INTO context_snapshots (series_key, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(series_key) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, stmt, key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("スナップショット '%s' の保存に失敗しました: %w", key, err)
	}
	return nil
}

// Load はキーに対応するスナップショットを読み戻します。
func (s *SQLiteStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM context_snapshots WHERE series_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("キー '%s': %w", key, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("スナップショット '%s' の読み込みに失敗しました: %w", key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("スナップショット '%s' が壊れています: %w", key, err)
	}
	return &snap, nil
}
