package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
)

// SessionResolver 把 session 換成帳號名稱
type SessionResolver interface {
	Resolve(session domain.Session) (string, error)
}

// LedgerService 業務規則層：存款、提款、轉帳、查詢。
//
// 鎖的順序: 帳戶鎖 (依名稱排序) -> commitMu -> AccountStore 內部鎖。
// 帳戶內容只會在同時持有帳戶鎖與 commitMu 時被改寫，
// 所以持有 commitMu 建立的快照一定是同一時間點的狀態。
type LedgerService struct {
	store     AccountStore
	snapshots SnapshotStore
	sessions  SessionResolver
	commitMu  sync.Mutex
	now       func() time.Time
	logger    *slog.Logger
}

func NewLedgerService(store AccountStore, snapshots SnapshotStore, sessions SessionResolver, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		snapshots: snapshots,
		sessions:  sessions,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Recover 啟動時從持久化層載入快照並重建帳戶集合
//
// 回傳:
//
//	error: 讀取失敗 (檔案不存在或損毀不算失敗，會得到空帳本)
func (s *LedgerService) Recover(ctx context.Context) error {
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Restore(snap); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "ledger recovered", "accounts", len(s.store.All()))
	return nil
}

// Register 建立帳戶；快照寫入成功後帳戶才會出現在集合中
func (s *LedgerService) Register(ctx context.Context, username, secretHash string) (*domain.Account, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	account, err := s.store.Candidate(username, secretHash)
	if err != nil {
		s.logger.WarnContext(ctx, "registration rejected", "username", domain.NormalizeUsername(username), "error", err)
		return nil, err
	}
	if err := s.saveLocked(ctx, nil, []*domain.Account{account}); err != nil {
		return nil, err
	}
	if err := s.store.Add(account); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account registered", "username", account.Username, "balance", account.Balance)
	return account.Clone(), nil
}

// Withdraw 提款，回傳新餘額
func (s *LedgerService) Withdraw(ctx context.Context, session domain.Session, amount int64) (int64, error) {
	username, err := s.sessions.Resolve(session)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	accounts, unlock, err := s.store.Acquire(username)
	if err != nil {
		return 0, err
	}
	defer unlock()

	staged := accounts[0].Clone()
	if err := staged.Withdraw(s.newRecord(uuid.New(), domain.KindWithdrawal, amount, "")); err != nil {
		s.logger.WarnContext(ctx, "withdraw rejected", "username", username, "amount", amount, "balance", accounts[0].Balance, "error", err)
		return 0, err
	}
	if err := s.commit(ctx, accounts, []*domain.Account{staged}); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "withdraw committed", "username", username, "amount", amount, "balance", staged.Balance)
	return staged.Balance, nil
}

// Deposit 存款，回傳新餘額
func (s *LedgerService) Deposit(ctx context.Context, session domain.Session, amount int64) (int64, error) {
	username, err := s.sessions.Resolve(session)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	accounts, unlock, err := s.store.Acquire(username)
	if err != nil {
		return 0, err
	}
	defer unlock()

	staged := accounts[0].Clone()
	if err := staged.Deposit(s.newRecord(uuid.New(), domain.KindDeposit, amount, "")); err != nil {
		s.logger.WarnContext(ctx, "deposit rejected", "username", username, "amount", amount, "balance", accounts[0].Balance, "error", err)
		return 0, err
	}
	if err := s.commit(ctx, accounts, []*domain.Account{staged}); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "deposit committed", "username", username, "amount", amount, "balance", staged.Balance)
	return staged.Balance, nil
}

// Transfer 轉帳，回傳自己的新餘額。
// 檢查順序: 收款人 -> 金額 -> 餘額；兩個帳戶的變更只寫一次快照。
func (s *LedgerService) Transfer(ctx context.Context, session domain.Session, recipient string, amount int64) (int64, error) {
	username, err := s.sessions.Resolve(session)
	if err != nil {
		return 0, err
	}
	to := domain.NormalizeUsername(recipient)
	if to == "" || to == username {
		s.logger.WarnContext(ctx, "transfer rejected", "username", username, "recipient", to, "error", domain.ErrInvalidRecipient)
		return 0, domain.ErrInvalidRecipient
	}

	accounts, unlock, err := s.store.Acquire(username, to)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.logger.WarnContext(ctx, "transfer rejected", "username", username, "recipient", to, "error", domain.ErrInvalidRecipient)
			return 0, domain.ErrInvalidRecipient
		}
		return 0, err
	}
	defer unlock()

	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	from, dest := accounts[0].Clone(), accounts[1].Clone()
	id := uuid.New()
	if err := from.Withdraw(s.newRecord(id, domain.KindTransferOut, amount, dest.Username)); err != nil {
		s.logger.WarnContext(ctx, "transfer rejected", "username", username, "recipient", to, "amount", amount, "balance", accounts[0].Balance, "error", err)
		return 0, err
	}
	if err := dest.Deposit(s.newRecord(id, domain.KindTransferIn, amount, from.Username)); err != nil {
		s.logger.WarnContext(ctx, "transfer rejected", "username", username, "recipient", to, "amount", amount, "error", err)
		return 0, err
	}
	if err := s.commit(ctx, accounts, []*domain.Account{from, dest}); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "transfer committed", "transaction_id", id, "from", from.Username, "to", dest.Username, "amount", amount)
	return from.Balance, nil
}

// Balance 目前餘額，沒有副作用
func (s *LedgerService) Balance(ctx context.Context, session domain.Session) (int64, error) {
	username, err := s.sessions.Resolve(session)
	if err != nil {
		return 0, err
	}
	accounts, unlock, err := s.store.Acquire(username)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return accounts[0].Balance, nil
}

// History 依時間排序的交易紀錄副本
func (s *LedgerService) History(ctx context.Context, session domain.Session) ([]domain.TransactionRecord, error) {
	username, err := s.sessions.Resolve(session)
	if err != nil {
		return nil, err
	}
	accounts, unlock, err := s.store.Acquire(username)
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]domain.TransactionRecord, len(accounts[0].History))
	copy(out, accounts[0].History)
	return out, nil
}

// ListUsers 依註冊順序列出所有使用者 (轉帳選收款人用)
func (s *LedgerService) ListUsers(ctx context.Context) []string {
	return s.store.All()
}

// commit 寫入包含暫存變更的快照，成功後才把變更套用回帳戶本體。
// 呼叫端必須持有 live 中每個帳戶的鎖。
func (s *LedgerService) commit(ctx context.Context, live, staged []*domain.Account) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.saveLocked(ctx, staged, nil); err != nil {
		return err
	}
	for i := range live {
		*live[i] = *staged[i]
	}
	return nil
}

// saveLocked 建立快照並寫入，呼叫端必須持有 commitMu
//
// 參數:
//
//	overrides: 取代集合中同名帳戶的暫存版本
//	added: 尚未加入集合的新帳戶 (註冊)
func (s *LedgerService) saveLocked(ctx context.Context, overrides, added []*domain.Account) error {
	byName := make(map[string]*domain.Account, len(overrides))
	for _, a := range overrides {
		byName[a.Username] = a
	}

	snap := &domain.Snapshot{Accounts: make([]domain.Account, 0, len(s.store.All())+len(added))}
	s.store.Range(func(a *domain.Account) bool {
		if staged, ok := byName[a.Username]; ok {
			a = staged
		}
		snap.Accounts = append(snap.Accounts, *a.Clone())
		return true
	})
	for _, a := range added {
		snap.Accounts = append(snap.Accounts, *a.Clone())
	}

	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.ErrorContext(ctx, "snapshot save failed, changes discarded", "error", err)
		if errors.Is(err, domain.ErrPersistence) {
			return err
		}
		return domain.NewPersistenceError("save", err)
	}
	return nil
}

func (s *LedgerService) newRecord(id uuid.UUID, kind domain.TransactionKind, amount int64, counterparty string) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:           id,
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		CreatedAt:    s.now(),
	}
}
