package usecase

import (
	"context"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
)

// SnapshotStore 持久化層的介面，只認得純資料格式，不含業務規則
type SnapshotStore interface {
	// Load 讀取快照；不存在或無法解析時回傳空快照 (首次啟動)
	Load(ctx context.Context) (*domain.Snapshot, error)
	// Save 以原子方式寫入完整快照
	Save(ctx context.Context, snap *domain.Snapshot) error
}

// AccountStore 帳戶的記憶體集合，負責唯一性
type AccountStore interface {
	// Candidate 檢查名稱後建立尚未加入集合的帳戶
	Candidate(username, secret string) (*domain.Account, error)
	// Add 把 Candidate 產生的帳戶加入集合
	Add(account *domain.Account) error
	// Create 等同 Candidate + Add
	Create(username, secret string) (*domain.Account, error)
	// Find 不分大小寫查詢，回傳副本
	Find(username string) (*domain.Account, error)
	// All 依註冊順序列出使用者名稱
	All() []string
	// Acquire 依固定順序鎖定帳戶，回傳帳戶本體與解鎖函式
	Acquire(usernames ...string) ([]*domain.Account, func(), error)
	// Range 依註冊順序走訪帳戶本體
	Range(fn func(*domain.Account) bool)
	// Restore 以快照重建集合
	Restore(snap *domain.Snapshot) error
}
