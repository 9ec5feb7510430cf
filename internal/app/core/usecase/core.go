package usecase

import (
	"context"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
)

// CoreUseCase 給外部殼層 (CLI) 使用的同步 API
type CoreUseCase struct {
	auth   *AuthService
	ledger *LedgerService
}

func NewCoreUseCase(auth *AuthService, ledger *LedgerService) *CoreUseCase {
	return &CoreUseCase{
		auth:   auth,
		ledger: ledger,
	}
}

// Register 註冊帳戶，回傳不含 PIN 雜湊的帳戶副本
func (c *CoreUseCase) Register(ctx context.Context, username, pin string) (*domain.Account, error) {
	if domain.NormalizeUsername(username) == "" {
		return nil, domain.ErrInvalidUsername
	}
	hash, err := c.auth.HashSecret(pin)
	if err != nil {
		return nil, err
	}
	account, err := c.ledger.Register(ctx, username, hash)
	if err != nil {
		return nil, err
	}
	account.Secret = ""
	return account, nil
}

// Login 驗證後取得 session
func (c *CoreUseCase) Login(ctx context.Context, username, pin string) (domain.Session, error) {
	return c.auth.Authenticate(ctx, username, pin)
}

// Logout 註銷 session
func (c *CoreUseCase) Logout(ctx context.Context, session domain.Session) {
	c.auth.Logout(ctx, session)
}

// Withdraw 提款
func (c *CoreUseCase) Withdraw(ctx context.Context, session domain.Session, amount int64) (int64, error) {
	return c.ledger.Withdraw(ctx, session, amount)
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, session domain.Session, amount int64) (int64, error) {
	return c.ledger.Deposit(ctx, session, amount)
}

// Transfer 轉帳
func (c *CoreUseCase) Transfer(ctx context.Context, session domain.Session, recipient string, amount int64) (int64, error) {
	return c.ledger.Transfer(ctx, session, recipient, amount)
}

// Balance 查詢餘額
func (c *CoreUseCase) Balance(ctx context.Context, session domain.Session) (int64, error) {
	return c.ledger.Balance(ctx, session)
}

// History 查詢交易紀錄
func (c *CoreUseCase) History(ctx context.Context, session domain.Session) ([]domain.TransactionRecord, error) {
	return c.ledger.History(ctx, session)
}

// ListUsers 列出所有使用者
func (c *CoreUseCase) ListUsers(ctx context.Context) []string {
	return c.ledger.ListUsers(ctx)
}
