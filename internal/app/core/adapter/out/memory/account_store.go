package memory

import (
	"sync"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
)

// entry 帳戶本體加上該帳戶專屬的鎖
type entry struct {
	mu      sync.Mutex
	account *domain.Account
}

// AccountStore 以 Mutex 保護的帳戶集合
//
// 結構:
//
//	accounts: 正規化名稱 -> 帳戶
//	order: 註冊順序
//	mu: 保護 accounts 與 order (不保護帳戶內容)
//	openingBalance: 新帳戶的開戶金額
type AccountStore struct {
	accounts       map[string]*entry
	order          []string
	mu             sync.RWMutex
	openingBalance int64
}

// NewAccountStore 建立一個新的 AccountStore 實例
//
// 參數:
//
//	openingBalance: 註冊時給予的預設餘額
//
// 回傳:
//
//	*AccountStore: AccountStore 實例
func NewAccountStore(openingBalance int64) *AccountStore {
	return &AccountStore{
		accounts:       make(map[string]*entry),
		order:          make([]string, 0),
		mu:             sync.RWMutex{},
		openingBalance: openingBalance,
	}
}

// Candidate 檢查名稱是否可用並建立新帳戶，但不加入集合
//
// 參數:
//
//	username: 使用者名稱 (不分大小寫)
//	secret: PIN 雜湊
//
// 回傳:
//
//	*domain.Account: 尚未加入集合的帳戶
//	error: ErrInvalidUsername 或 ErrDuplicateUser
func (s *AccountStore) Candidate(username, secret string) (*domain.Account, error) {
	key := domain.NormalizeUsername(username)
	if key == "" {
		return nil, domain.ErrInvalidUsername
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[key]; ok {
		return nil, domain.ErrDuplicateUser
	}
	return domain.NewAccount(key, secret, s.openingBalance), nil
}

// Add 將帳戶加入集合，名稱重複時回傳 ErrDuplicateUser
func (s *AccountStore) Add(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(account)
}

func (s *AccountStore) addLocked(account *domain.Account) error {
	key := domain.NormalizeUsername(account.Username)
	if key == "" {
		return domain.ErrInvalidUsername
	}
	if _, ok := s.accounts[key]; ok {
		return domain.ErrDuplicateUser
	}
	account.Username = key
	s.accounts[key] = &entry{account: account}
	s.order = append(s.order, key)
	return nil
}

// Create 建立並加入帳戶
func (s *AccountStore) Create(username, secret string) (*domain.Account, error) {
	account, err := s.Candidate(username, secret)
	if err != nil {
		return nil, err
	}
	if err := s.Add(account); err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// Find 不分大小寫查詢帳戶，回傳副本避免呼叫端越權修改
//
// 參數:
//
//	username: 使用者名稱
//
// 回傳:
//
//	*domain.Account: 帳戶副本
//	error: 查詢錯誤 (如帳戶不存在)
func (s *AccountStore) Find(username string) (*domain.Account, error) {
	e, ok := s.lookup(username)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Clone(), nil
}

func (s *AccountStore) lookup(username string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[domain.NormalizeUsername(username)]
	return e, ok
}

// All 依註冊順序回傳所有使用者名稱 (轉帳選收款人用)
func (s *AccountStore) All() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Acquire 依 domain.LockOrder 的順序鎖定帳戶
//
// 參數:
//
//	usernames: 要鎖定的帳戶，順序不拘，重複的只鎖一次
//
// 回傳:
//
//	[]*domain.Account: 帳戶本體，順序與傳入的 usernames 相同
//	func(): 解鎖函式，必須呼叫
//	error: 任一帳戶不存在時回傳 ErrAccountNotFound，且不持有任何鎖
func (s *AccountStore) Acquire(usernames ...string) ([]*domain.Account, func(), error) {
	ids := domain.LockOrder(usernames...)
	entries := make(map[string]*entry, len(ids))
	for _, id := range ids {
		e, ok := s.lookup(id)
		if !ok {
			return nil, nil, domain.ErrAccountNotFound
		}
		entries[id] = e
	}

	locked := make([]*entry, 0, len(ids))
	for _, id := range ids {
		e := entries[id]
		e.mu.Lock()
		locked = append(locked, e)
	}
	unlock := func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}

	out := make([]*domain.Account, len(usernames))
	for i, u := range usernames {
		out[i] = entries[domain.NormalizeUsername(u)].account
	}
	return out, unlock, nil
}

// Range 依註冊順序走訪帳戶本體，fn 回傳 false 時停止。
// 不會鎖定個別帳戶，呼叫端必須確保期間沒有寫入 (LedgerService 以 commit 鎖保證)
func (s *AccountStore) Range(fn func(*domain.Account) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.order {
		if !fn(s.accounts[key].account) {
			return
		}
	}
}

// Restore 以快照重建集合 (只在啟動時呼叫)
//
// 參數:
//
//	snap: 持久化層讀出的快照
//
// 回傳:
//
//	error: 快照內有重複名稱時回傳 ErrDuplicateUser
func (s *AccountStore) Restore(snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]*entry)
	s.order = make([]string, 0)
	if snap == nil {
		return nil
	}
	for i := range snap.Accounts {
		account := snap.Accounts[i].Clone()
		if err := s.addLocked(account); err != nil {
			return err
		}
	}
	return nil
}

var _ usecase.AccountStore = (*AccountStore)(nil)
