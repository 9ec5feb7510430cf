package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-pin-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 ledger_accounts 表
type sqlAccount struct {
	// Seq 註冊順序
	Seq       int64  `gorm:"primaryKey;autoIncrement:false"`
	Username  string `gorm:"size:64;uniqueIndex"`
	Secret    string `gorm:"size:100"`
	Balance   int64
	UpdatedAt int64 `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "ledger_accounts"
}

// sqlTransaction 對應資料庫的 ledger_transactions 表
type sqlTransaction struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"size:64;index:idx_account_position,priority:1"`
	// Position 在該帳戶紀錄中的位置
	Position     int    `gorm:"index:idx_account_position,priority:2"`
	RefID        []byte `gorm:"column:ref_id;type:binary(16)"` // 對應 domain.TransactionRecord.ID
	Kind         uint8
	Amount       int64
	Counterparty string `gorm:"size:64"`
	// RecordedAt 交易時間 (UnixNano)，不用 CreatedAt 以免被 GORM 自動覆寫
	RecordedAt int64
}

func (*sqlTransaction) TableName() string {
	return "ledger_transactions"
}

// Store 以 MySQL 保存快照，每次 Save 在同一個交易內整批取代
type Store struct {
	client *mysql.Client
	logger *slog.Logger
}

// NewStore 建立 Store 並確保資料表存在
func NewStore(client *mysql.Client, logger *slog.Logger) (*Store, error) {
	if err := client.DB().AutoMigrate(&sqlAccount{}, &sqlTransaction{}); err != nil {
		return nil, domain.NewPersistenceError("migrate", err)
	}
	return &Store{
		client: client,
		logger: logger,
	}, nil
}

// Load 讀出所有帳戶與紀錄；資料表為空代表首次啟動
func (s *Store) Load(ctx context.Context) (*domain.Snapshot, error) {
	var accounts []sqlAccount
	if err := s.client.DB().WithContext(ctx).Order("seq").Find(&accounts).Error; err != nil {
		return nil, domain.NewPersistenceError("load accounts", err)
	}
	var transactions []sqlTransaction
	if err := s.client.DB().WithContext(ctx).Order("username").Order("position").Find(&transactions).Error; err != nil {
		return nil, domain.NewPersistenceError("load transactions", err)
	}

	snap, err := fromRows(accounts, transactions)
	if err != nil {
		// 內容不合法視同損毀，以空帳本啟動
		s.logger.WarnContext(ctx, "mysql snapshot is corrupt, starting with an empty ledger", "error", err)
		return &domain.Snapshot{}, nil
	}
	return snap, nil
}

// Save 在單一交易內清空並重寫兩張表，失敗時整批 rollback
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	accounts, transactions := toRows(snap)
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&sqlTransaction{}).Error; err != nil {
			return err
		}
		if err := global.Delete(&sqlAccount{}).Error; err != nil {
			return err
		}
		if len(accounts) > 0 {
			if err := tx.CreateInBatches(accounts, 500).Error; err != nil {
				return err
			}
		}
		if len(transactions) > 0 {
			if err := tx.CreateInBatches(transactions, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.NewPersistenceError("save", err)
	}
	return nil
}

func toRows(snap *domain.Snapshot) ([]sqlAccount, []sqlTransaction) {
	if snap == nil {
		return nil, nil
	}
	accounts := make([]sqlAccount, 0, len(snap.Accounts))
	var transactions []sqlTransaction
	for i, a := range snap.Accounts {
		accounts = append(accounts, sqlAccount{
			Seq:      int64(i + 1),
			Username: a.Username,
			Secret:   a.Secret,
			Balance:  a.Balance,
		})
		for pos, r := range a.History {
			ref := r.ID
			transactions = append(transactions, sqlTransaction{
				Username:     a.Username,
				Position:     pos,
				RefID:        ref[:],
				Kind:         uint8(r.Kind),
				Amount:       r.Amount,
				Counterparty: r.Counterparty,
				RecordedAt:   unixNano(r.CreatedAt),
			})
		}
	}
	return accounts, transactions
}

func fromRows(accounts []sqlAccount, transactions []sqlTransaction) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{Accounts: make([]domain.Account, 0, len(accounts))}
	index := make(map[string]int, len(accounts))
	for _, row := range accounts {
		if row.Balance < 0 {
			return nil, fmt.Errorf("negative balance for %q", row.Username)
		}
		if _, dup := index[row.Username]; dup {
			return nil, fmt.Errorf("duplicate username %q", row.Username)
		}
		index[row.Username] = len(snap.Accounts)
		snap.Accounts = append(snap.Accounts, domain.Account{
			Username: row.Username,
			Secret:   row.Secret,
			Balance:  row.Balance,
			History:  make([]domain.TransactionRecord, 0),
		})
	}
	for _, row := range transactions {
		i, ok := index[row.Username]
		if !ok {
			return nil, fmt.Errorf("transaction for unknown account %q", row.Username)
		}
		if row.Position != len(snap.Accounts[i].History) {
			return nil, fmt.Errorf("history gap for %q at position %d", row.Username, row.Position)
		}
		id, err := uuid.FromBytes(row.RefID)
		if err != nil {
			return nil, fmt.Errorf("bad ref_id for %q: %w", row.Username, err)
		}
		snap.Accounts[i].History = append(snap.Accounts[i].History, domain.TransactionRecord{
			ID:           id,
			Kind:         domain.TransactionKind(row.Kind),
			Amount:       row.Amount,
			Counterparty: row.Counterparty,
			CreatedAt:    fromUnixNano(row.RecordedAt),
		})
	}
	return snap, nil
}

// 舊版匯入的紀錄沒有時間，以 0 表示
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var _ usecase.SnapshotStore = (*Store)(nil)
