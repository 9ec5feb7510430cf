// Package codec 定義快照在檔案與 WAL 中的 JSON 格式。
// 只處理序列化，不含業務規則。
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
)

// FormatVersion 目前的格式版本
const FormatVersion = 1

// ErrCorrupt 內容無法解析或違反不變量
var ErrCorrupt = errors.New("snapshot is corrupt")

type accountRecord struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
	Balance  int64  `json:"balance"`
}

// document 磁碟上的格式: 帳戶清單 + username -> 交易紀錄
type document struct {
	Version   int                                   `json:"version"`
	SavedAt   time.Time                             `json:"saved_at"`
	Accounts  []accountRecord                       `json:"accounts"`
	Histories map[string][]domain.TransactionRecord `json:"histories"`
}

// Marshal 將快照序列化為單行 JSON
func Marshal(snap *domain.Snapshot, savedAt time.Time) ([]byte, error) {
	doc := document{
		Version:   FormatVersion,
		SavedAt:   savedAt.UTC(),
		Accounts:  make([]accountRecord, 0),
		Histories: make(map[string][]domain.TransactionRecord),
	}
	if snap != nil {
		for _, a := range snap.Accounts {
			doc.Accounts = append(doc.Accounts, accountRecord{
				Username: a.Username,
				Secret:   a.Secret,
				Balance:  a.Balance,
			})
			history := a.History
			if history == nil {
				history = make([]domain.TransactionRecord, 0)
			}
			doc.Histories[a.Username] = history
		}
	}
	return json.Marshal(doc)
}

// Unmarshal 解析目前格式的快照，並檢查名稱唯一、餘額非負、紀錄合法
func Unmarshal(data []byte) (*domain.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, doc.Version)
	}

	snap := &domain.Snapshot{Accounts: make([]domain.Account, 0, len(doc.Accounts))}
	seen := make(map[string]struct{}, len(doc.Accounts))
	for _, rec := range doc.Accounts {
		name := domain.NormalizeUsername(rec.Username)
		if name == "" || name != rec.Username {
			return nil, fmt.Errorf("%w: bad username %q", ErrCorrupt, rec.Username)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate username %q", ErrCorrupt, name)
		}
		seen[name] = struct{}{}
		if rec.Balance < 0 {
			return nil, fmt.Errorf("%w: negative balance for %q", ErrCorrupt, name)
		}
		history := doc.Histories[name]
		if history == nil {
			history = make([]domain.TransactionRecord, 0)
		}
		for _, r := range history {
			if err := validateRecord(r); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
			}
		}
		snap.Accounts = append(snap.Accounts, domain.Account{
			Username: name,
			Secret:   rec.Secret,
			Balance:  rec.Balance,
			History:  history,
		})
	}
	for name := range doc.Histories {
		if _, ok := seen[name]; !ok {
			return nil, fmt.Errorf("%w: history for unknown account %q", ErrCorrupt, name)
		}
	}
	return snap, nil
}

func validateRecord(r domain.TransactionRecord) error {
	if r.Amount <= 0 {
		return fmt.Errorf("non-positive amount %d", r.Amount)
	}
	switch r.Kind {
	case domain.KindDeposit, domain.KindWithdrawal:
		if r.Counterparty != "" {
			return fmt.Errorf("%s must not have a counterparty", r.Kind)
		}
	case domain.KindTransferOut, domain.KindTransferIn:
		if r.Counterparty == "" {
			return fmt.Errorf("%s requires a counterparty", r.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %d", uint8(r.Kind))
	}
	return nil
}
