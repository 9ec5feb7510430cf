// Package journal 把每次的快照追加到 WAL。
// 讀取時以最後一筆完整的快照為準，寫到一半的殘段會被丟棄；
// 每 compactEvery 次寫入就把日誌壓縮成只剩最新一筆。
package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/codec"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-pin-ledger/pkg/wal"
)

type Store struct {
	wal          *wal.WAL
	compactEvery int
	// entries 日誌目前的筆數
	entries int
	mu      sync.Mutex
	now     func() time.Time
	logger  *slog.Logger
}

// Open 開啟 (或建立) 日誌檔
//
// 參數:
//
//	path: 日誌檔路徑
//	compactEvery: 累積幾筆後壓縮，<= 0 代表不壓縮
//	logger: 結構化日誌
func Open(path string, compactEvery int, logger *slog.Logger) (*Store, error) {
	w, err := wal.NewWAL(path)
	if err != nil {
		return nil, domain.NewPersistenceError("open journal", err)
	}
	return &Store{
		wal:          w,
		compactEvery: compactEvery,
		now:          time.Now,
		logger:       logger,
	}, nil
}

// Load 重放日誌，回傳最後一筆可解析的快照
func (s *Store) Load(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		last    *domain.Snapshot
		lastRaw []byte
		lines   int
		corrupt int
	)
	torn, err := s.wal.ReadAll(func(jsonRaw []byte) error {
		lines++
		snap, err := codec.Unmarshal(jsonRaw)
		if err != nil {
			corrupt++
			return nil
		}
		last = snap
		lastRaw = append(lastRaw[:0], jsonRaw...)
		return nil
	})
	if err != nil {
		return nil, domain.NewPersistenceError("replay journal", err)
	}
	s.entries = lines

	if corrupt > 0 {
		s.logger.WarnContext(ctx, "journal contains unreadable entries", "entries", lines, "unreadable", corrupt)
	}
	// 殘段或壞行留在檔尾會讓下一筆追加黏在後面，先重寫成乾淨的日誌
	if torn || corrupt > 0 {
		s.logger.WarnContext(ctx, "journal has a torn or unreadable tail, rewriting", "torn", torn)
		records := []any{}
		if lastRaw != nil {
			records = append(records, json.RawMessage(lastRaw))
		}
		if err := s.wal.Rewrite(records...); err != nil {
			return nil, domain.NewPersistenceError("repair journal", err)
		}
		s.entries = len(records)
	}

	if last == nil {
		s.logger.InfoContext(ctx, "journal is empty, starting with an empty ledger")
		return &domain.Snapshot{}, nil
	}
	return last, nil
}

// Save 追加一筆快照並 fsync
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	raw, err := codec.Marshal(snap, s.now())
	if err != nil {
		return domain.NewPersistenceError("encode", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(json.RawMessage(raw)); err != nil {
		return domain.NewPersistenceError("append journal", err)
	}
	s.entries++

	if s.compactEvery > 0 && s.entries >= s.compactEvery {
		// 壓縮失敗不影響這次寫入，最新快照已經落地
		if err := s.wal.Rewrite(json.RawMessage(raw)); err != nil {
			s.logger.WarnContext(ctx, "journal compaction failed", "entries", s.entries, "error", err)
			return nil
		}
		s.logger.DebugContext(ctx, "journal compacted", "entries", s.entries)
		s.entries = 1
	}
	return nil
}

// Close 關閉日誌檔
func (s *Store) Close() error {
	return s.wal.Close()
}

var _ usecase.SnapshotStore = (*Store)(nil)
