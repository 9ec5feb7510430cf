package domain

import (
	"math"
	"strings"
)

// Account 帳戶聚合：身分、PIN 雜湊、餘額與交易紀錄放在同一個結構，
// 不再像舊版用三個平行陣列以 index 對應。
type Account struct {
	// Username 正規化後的使用者名稱 (小寫、去除前後空白)
	Username string
	// Secret PIN 的 bcrypt 雜湊，絕不存明文
	Secret string
	// Balance 餘額，永遠 >= 0
	Balance int64
	// History 依時間排序，只能追加
	History []TransactionRecord
}

// NewAccount 建立新帳戶 (只應由 AccountStore 呼叫)
func NewAccount(username, secret string, balance int64) *Account {
	return &Account{
		Username: NormalizeUsername(username),
		Secret:   secret,
		Balance:  balance,
		History:  make([]TransactionRecord, 0),
	}
}

// NormalizeUsername 使用者名稱不分大小寫
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Deposit 存款並追加紀錄，餘額會溢位時帳戶不變
func (a *Account) Deposit(rec TransactionRecord) error {
	if rec.Amount <= 0 {
		return ErrInvalidAmount
	}
	if rec.Amount > math.MaxInt64-a.Balance {
		return ErrBalanceOverflow
	}
	a.Balance = a.Balance + rec.Amount
	a.History = append(a.History, rec)
	return nil
}

// Withdraw 提款並追加紀錄，餘額不足時帳戶不變
func (a *Account) Withdraw(rec TransactionRecord) error {
	if rec.Amount <= 0 {
		return ErrInvalidAmount
	}

	if a.Balance < rec.Amount {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance - rec.Amount
	a.History = append(a.History, rec)
	return nil
}

// Clone 深拷貝，交易先在副本上暫存，持久化成功後才套用回原帳戶
func (a *Account) Clone() *Account {
	cp := *a
	cp.History = make([]TransactionRecord, len(a.History), len(a.History)+1)
	copy(cp.History, a.History)
	return &cp
}
