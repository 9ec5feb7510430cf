package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
)

// dummyPIN 用來產生假雜湊，讓不存在的帳號也付出一次 bcrypt 比對的時間
const dummyPIN = "not-a-real-pin"

// AuthService 負責 PIN 雜湊、登入驗證與 session 管理
type AuthService struct {
	store     AccountStore
	cost      int
	dummyHash []byte
	// 已登入的 session: id -> username
	sessions map[uuid.UUID]string
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewAuthService 建立 AuthService
//
// 參數:
//
//	store: 帳戶集合
//	cost: bcrypt cost，0 代表 bcrypt.DefaultCost
//	logger: 結構化日誌
//
// 回傳:
//
//	*AuthService: AuthService 實例
//	error: cost 不合法
func NewAuthService(store AccountStore, cost int, logger *slog.Logger) (*AuthService, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPIN), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &AuthService{
		store:     store,
		cost:      cost,
		dummyHash: dummy,
		sessions:  make(map[uuid.UUID]string),
		logger:    logger,
	}, nil
}

// HashSecret 產生 PIN 的加鹽雜湊 (bcrypt 會自帶 salt)
func (a *AuthService) HashSecret(pin string) (string, error) {
	if pin == "" {
		return "", domain.ErrInvalidSecret
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), a.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", domain.ErrInvalidSecret, err)
		}
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hash), nil
}

// Authenticate 驗證帳號與 PIN。
// 帳號不存在與 PIN 錯誤回傳同一個 ErrInvalidCredentials，不透露是哪一種。
func (a *AuthService) Authenticate(ctx context.Context, username, pin string) (domain.Session, error) {
	account, err := a.store.Find(username)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(pin))
		a.logger.WarnContext(ctx, "login rejected", "username", domain.NormalizeUsername(username))
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.Secret), []byte(pin)); err != nil {
		a.logger.WarnContext(ctx, "login rejected", "username", account.Username)
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	session := domain.NewSession(account.Username)
	a.mu.Lock()
	a.sessions[session.ID()] = account.Username
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "login succeeded", "username", account.Username, "session_id", session.ID())
	return session, nil
}

// Resolve 取得 session 對應的帳號
func (a *AuthService) Resolve(session domain.Session) (string, error) {
	if session.IsZero() {
		return "", domain.ErrUnauthenticated
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	username, ok := a.sessions[session.ID()]
	if !ok || username != session.Username() {
		return "", domain.ErrUnauthenticated
	}
	return username, nil
}

// Logout 註銷 session，之後再使用會得到 ErrUnauthenticated
func (a *AuthService) Logout(ctx context.Context, session domain.Session) {
	a.mu.Lock()
	_, ok := a.sessions[session.ID()]
	delete(a.sessions, session.ID())
	a.mu.Unlock()
	if ok {
		a.logger.InfoContext(ctx, "logged out", "username", session.Username(), "session_id", session.ID())
	}
}
