package usecase_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/file"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
)

// TestATMScenarios 依序走過註冊、提款、存款、轉帳與轉給自己
func TestATMScenarios(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 1. 註冊後拿到開戶金額
	alice := f.registerAndLogin(t, "alice", "1111")
	if got := f.balance(t, alice); got != 5000 {
		t.Fatalf("alice=%d want=5000", got)
	}

	// 2. 提款成功，超額提款失敗且餘額不變
	if got, err := f.core.Withdraw(ctx, alice, 2000); err != nil || got != 3000 {
		t.Fatalf("Withdraw(2000)=%d,%v want 3000", got, err)
	}
	if _, err := f.core.Withdraw(ctx, alice, 9000); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expect ErrInsufficientFunds, got %v", err)
	}
	if got := f.balance(t, alice); got != 3000 {
		t.Fatalf("alice=%d want=3000", got)
	}

	// 3. 存款
	if got, err := f.core.Deposit(ctx, alice, 500); err != nil || got != 3500 {
		t.Fatalf("Deposit(500)=%d,%v want 3500", got, err)
	}

	// 4. 轉帳給 bob
	bob := f.registerAndLogin(t, "bob", "2222")
	if got := f.balance(t, bob); got != 5000 {
		t.Fatalf("bob=%d want=5000", got)
	}
	if got, err := f.core.Transfer(ctx, alice, "bob", 1000); err != nil || got != 2500 {
		t.Fatalf("Transfer=%d,%v want 2500", got, err)
	}
	if got := f.balance(t, bob); got != 6000 {
		t.Fatalf("bob=%d want=6000", got)
	}

	aliceHistory, _ := f.core.History(ctx, alice)
	last := aliceHistory[len(aliceHistory)-1]
	if last.Kind != domain.KindTransferOut || last.Amount != 1000 || last.Counterparty != "bob" {
		t.Fatalf("alice last record=%+v", last)
	}
	bobHistory, _ := f.core.History(ctx, bob)
	if len(bobHistory) != 1 {
		t.Fatalf("bob history len=%d want=1", len(bobHistory))
	}
	in := bobHistory[0]
	if in.Kind != domain.KindTransferIn || in.Amount != 1000 || in.Counterparty != "alice" || in.ID != last.ID {
		t.Fatalf("bob record=%+v", in)
	}

	// 5. 轉給自己
	if _, err := f.core.Transfer(ctx, alice, "ALICE", 1000); !errors.Is(err, domain.ErrInvalidRecipient) {
		t.Fatalf("expect ErrInvalidRecipient, got %v", err)
	}
	if got := f.balance(t, alice); got != 2500 {
		t.Fatalf("alice=%d want=2500", got)
	}
}

// TestCorruptStorageStartsEmpty 檔案為空或損毀時啟動成功且可以註冊
func TestCorruptStorageStartsEmpty(t *testing.T) {
	for name, content := range map[string]string{
		"empty":   "",
		"corrupt": "{not json",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "user_data.json")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			f := newFixtureWith(t, file.NewStore(path, discardLogger()))
			if got := f.core.ListUsers(context.Background()); len(got) != 0 {
				t.Fatalf("ListUsers=%v want empty", got)
			}
			s := f.registerAndLogin(t, "alice", "1111")
			if got := f.balance(t, s); got != 5000 {
				t.Fatalf("balance=%d want=5000", got)
			}
		})
	}
}

// TestRestartKeepsState 重啟後帳戶、餘額與紀錄都要還原
func TestRestartKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user_data.json")

	f := newFixtureWith(t, file.NewStore(path, discardLogger()))
	alice := f.registerAndLogin(t, "alice", "1111")
	f.registerAndLogin(t, "bob", "2222")
	if _, err := f.core.Transfer(ctx, alice, "bob", 700); err != nil {
		t.Fatal(err)
	}

	restarted := newFixtureWith(t, file.NewStore(path, discardLogger()))
	if got := restarted.core.ListUsers(ctx); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("ListUsers=%v want [alice bob]", got)
	}
	// 舊 session 在新的 process 無效
	if _, err := restarted.core.Balance(ctx, alice); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expect ErrUnauthenticated, got %v", err)
	}
	bob, err := restarted.core.Login(ctx, "Bob", "2222")
	if err != nil {
		t.Fatal(err)
	}
	if got := restarted.balance(t, bob); got != 5700 {
		t.Fatalf("bob=%d want=5700", got)
	}
	history, _ := restarted.core.History(ctx, bob)
	if len(history) != 1 || history[0].String() != "Received 700 from alice" {
		t.Fatalf("bob history=%v", history)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, err := f.core.Register(ctx, "Alice", "1111")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Username != "alice" || acc.Secret != "" {
		t.Fatalf("Register returned %+v", acc)
	}
	if _, err := f.core.Register(ctx, "ALICE", "9999"); !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("expect ErrDuplicateUser, got %v", err)
	}
	if _, err := f.core.Register(ctx, " ", "1111"); !errors.Is(err, domain.ErrInvalidUsername) {
		t.Fatalf("expect ErrInvalidUsername, got %v", err)
	}
	if _, err := f.core.Register(ctx, "bob", ""); !errors.Is(err, domain.ErrInvalidSecret) {
		t.Fatalf("expect ErrInvalidSecret, got %v", err)
	}

	// 快照裡只存雜湊
	stored, _ := f.store.Find("alice")
	if stored.Secret == "" || stored.Secret == "1111" {
		t.Fatalf("secret not hashed: %q", stored.Secret)
	}
}

// 入帳會讓餘額溢位時拒絕，且不能寫出負餘額讓下次啟動判定檔案損毀
func TestDepositOverflowRejected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user_data.json")
	f := newFixtureWith(t, file.NewStore(path, discardLogger()))
	alice := f.registerAndLogin(t, "alice", "1111")
	bob := f.registerAndLogin(t, "bob", "2222")

	if _, err := f.core.Deposit(ctx, alice, math.MaxInt64); !errors.Is(err, domain.ErrBalanceOverflow) {
		t.Fatalf("expect ErrBalanceOverflow, got %v", err)
	}
	if got := f.balance(t, alice); got != openingBalance {
		t.Fatalf("alice=%d want=%d", got, openingBalance)
	}

	// bob 到上限後，轉入 1 也要拒絕，轉出方不受影響
	if got, err := f.core.Deposit(ctx, bob, math.MaxInt64-openingBalance); err != nil || got != math.MaxInt64 {
		t.Fatalf("Deposit to max=%d,%v", got, err)
	}
	if _, err := f.core.Transfer(ctx, alice, "bob", 1); !errors.Is(err, domain.ErrBalanceOverflow) {
		t.Fatalf("expect ErrBalanceOverflow, got %v", err)
	}
	if got := f.balance(t, alice); got != openingBalance {
		t.Fatalf("alice=%d want=%d after rejected transfer", got, openingBalance)
	}
	if history, _ := f.core.History(ctx, alice); len(history) != 0 {
		t.Fatalf("alice history=%v want empty", history)
	}

	restarted := newFixtureWith(t, file.NewStore(path, discardLogger()))
	if users := restarted.core.ListUsers(ctx); len(users) != 2 {
		t.Fatalf("users after restart=%v want [alice bob]", users)
	}
	b, err := restarted.core.Login(ctx, "bob", "2222")
	if err != nil {
		t.Fatal(err)
	}
	if got := restarted.balance(t, b); got != math.MaxInt64 {
		t.Fatalf("bob=%d want=%d", got, int64(math.MaxInt64))
	}
}
