package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TransactionKind 交易類型
type TransactionKind uint8

const (
	// 存款
	KindDeposit TransactionKind = 1
	// 提款
	KindWithdrawal TransactionKind = 2
	// 轉出
	KindTransferOut TransactionKind = 3
	// 轉入
	KindTransferIn TransactionKind = 4
)

var kindNames = map[TransactionKind]string{
	KindDeposit:     "deposit",
	KindWithdrawal:  "withdrawal",
	KindTransferOut: "transfer_out",
	KindTransferIn:  "transfer_in",
}

func (k TransactionKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseTransactionKind 把持久化用的字串轉回 TransactionKind
func ParseTransactionKind(s string) (TransactionKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction kind %q", s)
}

// MarshalText 讓 JSON 以名稱而非數字保存
func (k TransactionKind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown transaction kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *TransactionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TransactionRecord 單筆帳戶異動，追加後不可修改
type TransactionRecord struct {
	// ID 同一筆轉帳的兩側共用同一個 ID
	ID     uuid.UUID       `json:"id"`
	Kind   TransactionKind `json:"kind"`
	Amount int64           `json:"amount"`
	// Counterparty 只有轉帳才有
	Counterparty string    `json:"counterparty,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// String 沿用 ATM 畫面上的文字
func (r TransactionRecord) String() string {
	switch r.Kind {
	case KindDeposit:
		return fmt.Sprintf("Deposited: %d", r.Amount)
	case KindWithdrawal:
		return fmt.Sprintf("Withdrawn: %d", r.Amount)
	case KindTransferOut:
		return fmt.Sprintf("Transferred %d to %s", r.Amount, r.Counterparty)
	case KindTransferIn:
		return fmt.Sprintf("Received %d from %s", r.Amount, r.Counterparty)
	default:
		return fmt.Sprintf("%s: %d", r.Kind, r.Amount)
	}
}

// LockOrder 回傳需要鎖定的帳號，排序後再上鎖以避免死鎖
func LockOrder(usernames ...string) []string {
	ids := make([]string, 0, len(usernames))
	seen := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		n := NormalizeUsername(u)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		ids = append(ids, n)
	}
	sort.Strings(ids)
	return ids
}
