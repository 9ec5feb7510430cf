// Package file 以單一 JSON 檔保存帳本快照。
// 寫入採 tmp 檔 + fsync + rename，當機時檔案只會是舊版或新版，不會是兩者混合。
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/codec"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-pin-ledger/pkg/wal"
)

// Store 檔案快照儲存
type Store struct {
	path   string
	hash   func(pin string) (string, error)
	now    func() time.Time
	logger *slog.Logger
}

// Option 設定 Store 的選項函數
type Option func(*Store)

// WithLegacyHasher 允許匯入舊版 ATM 格式，PIN 以 hash 重新雜湊
func WithLegacyHasher(hash func(pin string) (string, error)) Option {
	return func(s *Store) {
		s.hash = hash
	}
}

// WithClock 測試用，固定快照時間
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(path string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		path:   path,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load 讀取快照。
// 檔案不存在、為空或無法解析時回傳空快照；損毀的檔案會先改名保留，避免下次寫入時蓋掉。
func (s *Store) Load(ctx context.Context) (*domain.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.InfoContext(ctx, "snapshot file not found, starting with an empty ledger", "path", s.path)
			return &domain.Snapshot{}, nil
		}
		return nil, domain.NewPersistenceError("load", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.logger.WarnContext(ctx, "snapshot file is empty, starting with an empty ledger", "path", s.path)
		return &domain.Snapshot{}, nil
	}

	if codec.IsLegacy(data) && s.hash != nil {
		snap, skipped, err := codec.UnmarshalLegacy(data, s.hash)
		if err == nil {
			for _, line := range skipped {
				s.logger.WarnContext(ctx, "skipped unreadable legacy history line", "username", line.Username, "line", line.Line)
			}
			s.logger.InfoContext(ctx, "imported legacy snapshot", "path", s.path, "accounts", len(snap.Accounts))
			return snap, nil
		}
		if !errors.Is(err, codec.ErrCorrupt) {
			return nil, domain.NewPersistenceError("load", err)
		}
		return s.quarantine(ctx, err)
	}

	snap, err := codec.Unmarshal(data)
	if err != nil {
		return s.quarantine(ctx, err)
	}
	return snap, nil
}

// quarantine 把無法解析的檔案改名保留，回傳空快照
func (s *Store) quarantine(ctx context.Context, cause error) (*domain.Snapshot, error) {
	aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().UnixNano())
	if err := os.Rename(s.path, aside); err != nil {
		s.logger.ErrorContext(ctx, "failed to move corrupt snapshot aside", "path", s.path, "error", err)
	}
	s.logger.WarnContext(ctx, "snapshot file is corrupt, starting with an empty ledger",
		"path", s.path, "moved_to", aside, "error", cause)
	return &domain.Snapshot{}, nil
}

// Save 原子寫入快照
//
// 流程:
//  1. 寫入 path+".tmp" 並 fsync
//  2. rename 取代正式檔
//  3. fsync 目錄，讓 rename 本身也落地
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	raw, err := codec.Marshal(snap, s.now())
	if err != nil {
		return domain.NewPersistenceError("encode", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return domain.NewPersistenceError("encode", err)
	}
	pretty.WriteByte('\n')

	// 內含 PIN 雜湊，權限只給擁有者
	if err := wal.WriteFileAtomic(s.path, pretty.Bytes(), wal.FileModePrivate); err != nil {
		return domain.NewPersistenceError("save", err)
	}
	s.logger.DebugContext(ctx, "snapshot saved", "path", s.path, "accounts", len(snap.Accounts))
	return nil
}

var _ usecase.SnapshotStore = (*Store)(nil)
