package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateUser 使用者名稱已被註冊 (不分大小寫)
	ErrDuplicateUser = errors.New("username already exists")

	// ErrInvalidCredentials 帳號或 PIN 錯誤，兩者刻意回傳同一個錯誤
	ErrInvalidCredentials = errors.New("invalid username or pin")

	// ErrInvalidAmount 金額必須為正整數
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceOverflow 入帳後餘額超過 int64 上限
	ErrBalanceOverflow = errors.New("balance would overflow")

	// ErrInvalidRecipient 收款人不存在或是自己
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrUnauthenticated session 無效或已登出
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrInvalidUsername 使用者名稱為空
	ErrInvalidUsername = errors.New("username must not be empty")

	// ErrInvalidSecret PIN 為空
	ErrInvalidSecret = errors.New("pin must not be empty")

	// ErrPersistence 持久化讀寫失敗
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError 包裝儲存層錯誤，errors.Is(err, ErrPersistence) 成立
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
