package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
)

const openingBalance = 5000

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memSnapshots 記憶體版 SnapshotStore，可指定下一次 Save 失敗
type memSnapshots struct {
	mu    sync.Mutex
	last  *domain.Snapshot
	saves int
	fail  error
}

func (m *memSnapshots) Load(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return &domain.Snapshot{}, nil
	}
	return m.last, nil
}

func (m *memSnapshots) Save(ctx context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.last = snap
	return nil
}

func (m *memSnapshots) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *memSnapshots) snapshot() *domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// fixture 一組組裝好的服務
type fixture struct {
	core      *usecase.CoreUseCase
	auth      *usecase.AuthService
	ledger    *usecase.LedgerService
	store     *memory.AccountStore
	snapshots *memSnapshots
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, &memSnapshots{})
}

func newFixtureWith(t *testing.T, snapshots usecase.SnapshotStore) *fixture {
	t.Helper()
	logger := discardLogger()
	store := memory.NewAccountStore(openingBalance)
	auth, err := usecase.NewAuthService(store, bcrypt.MinCost, logger)
	if err != nil {
		t.Fatal(err)
	}
	ledger := usecase.NewLedgerService(store, snapshots, auth, logger)
	if err := ledger.Recover(context.Background()); err != nil {
		t.Fatalf("Recover err=%v", err)
	}
	f := &fixture{
		core:   usecase.NewCoreUseCase(auth, ledger),
		auth:   auth,
		ledger: ledger,
		store:  store,
	}
	if m, ok := snapshots.(*memSnapshots); ok {
		f.snapshots = m
	}
	return f
}

// registerAndLogin 註冊並登入，失敗直接結束測試
func (f *fixture) registerAndLogin(t *testing.T, username, pin string) domain.Session {
	t.Helper()
	ctx := context.Background()
	if _, err := f.core.Register(ctx, username, pin); err != nil {
		t.Fatalf("Register(%s) err=%v", username, err)
	}
	s, err := f.core.Login(ctx, username, pin)
	if err != nil {
		t.Fatalf("Login(%s) err=%v", username, err)
	}
	return s
}

func (f *fixture) balance(t *testing.T, s domain.Session) int64 {
	t.Helper()
	b, err := f.core.Balance(context.Background(), s)
	if err != nil {
		t.Fatalf("Balance err=%v", err)
	}
	return b
}
