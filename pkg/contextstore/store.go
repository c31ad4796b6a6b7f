package contextstore

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound は指定キーのスナップショットが存在しないことを示します。
// シリーズ継続時にこれを黙殺すると訳語が不整合になるため、
// 呼び出し側が「新規に始めるか中断するか」を明示的に判断します。
var ErrSnapshotNotFound = errors.New("contextstore: snapshot not found")

// Store は文脈スナップショットの永続化先です。
// キーはページまたはシリーズの識別子で、値は JSON 形の構造化レコードです。
type Store interface {
	// Save はスナップショットをキーに紐付けて保存します。
	Save(ctx context.Context, key string, snap *Snapshot) error
	// Load はキーに対応するスナップショットを読み戻します。
	// 見つからない場合は ErrSnapshotNotFound を、壊れている場合はパースエラーを返します。
	Load(ctx context.Context, key string) (*Snapshot, error)
}
