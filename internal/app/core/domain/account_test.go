package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func record(kind TransactionKind, amount int64, counterparty string) TransactionRecord {
	return TransactionRecord{
		ID:           uuid.New(),
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewAccountNormalizesUsername(t *testing.T) {
	a := NewAccount("  Alice ", "hash", 5000)
	if a.Username != "alice" {
		t.Fatalf("username=%q want=alice", a.Username)
	}
	if a.Balance != 5000 || len(a.History) != 0 || a.History == nil {
		t.Fatalf("unexpected new account: %+v", a)
	}
}

func TestAccountDepositWithdraw(t *testing.T) {
	a := NewAccount("alice", "hash", 100)

	if err := a.Deposit(record(KindDeposit, 50, "")); err != nil {
		t.Fatal(err)
	}
	if err := a.Withdraw(record(KindWithdrawal, 120, "")); err != nil {
		t.Fatal(err)
	}
	if a.Balance != 30 || len(a.History) != 2 {
		t.Fatalf("balance=%d history=%d want 30/2", a.Balance, len(a.History))
	}

	// 餘額不足時帳戶完全不變
	if err := a.Withdraw(record(KindWithdrawal, 31, "")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expect ErrInsufficientFunds, got %v", err)
	}
	if a.Balance != 30 || len(a.History) != 2 {
		t.Fatalf("rejected withdraw changed account: %+v", a)
	}

	for _, amount := range []int64{0, -1} {
		if err := a.Deposit(record(KindDeposit, amount, "")); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Deposit(%d) expect ErrInvalidAmount, got %v", amount, err)
		}
		if err := a.Withdraw(record(KindWithdrawal, amount, "")); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Withdraw(%d) expect ErrInvalidAmount, got %v", amount, err)
		}
	}
}

// 餘額溢位時拒絕入帳，帳戶不變
func TestAccountDepositOverflow(t *testing.T) {
	a := NewAccount("alice", "hash", 5000)
	if err := a.Deposit(record(KindDeposit, math.MaxInt64, "")); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expect ErrBalanceOverflow, got %v", err)
	}
	if a.Balance != 5000 || len(a.History) != 0 {
		t.Fatalf("rejected deposit changed account: %+v", a)
	}

	// 剛好到上限可以
	if err := a.Deposit(record(KindDeposit, math.MaxInt64-5000, "")); err != nil {
		t.Fatal(err)
	}
	if a.Balance != math.MaxInt64 {
		t.Fatalf("balance=%d want=%d", a.Balance, int64(math.MaxInt64))
	}
	if err := a.Deposit(record(KindTransferIn, 1, "bob")); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expect ErrBalanceOverflow, got %v", err)
	}
}

// 副本的修改不能影響原帳戶
func TestAccountCloneIsDeep(t *testing.T) {
	a := NewAccount("alice", "hash", 100)
	_ = a.Deposit(record(KindDeposit, 10, ""))

	cp := a.Clone()
	_ = cp.Withdraw(record(KindWithdrawal, 50, ""))
	cp.History[0].Amount = 999

	if a.Balance != 110 || len(a.History) != 1 || a.History[0].Amount != 10 {
		t.Fatalf("original mutated through clone: %+v", a)
	}
}

func TestTransactionRecordString(t *testing.T) {
	tests := []struct {
		rec  TransactionRecord
		want string
	}{
		{record(KindDeposit, 500, ""), "Deposited: 500"},
		{record(KindWithdrawal, 2000, ""), "Withdrawn: 2000"},
		{record(KindTransferOut, 1000, "bob"), "Transferred 1000 to bob"},
		{record(KindTransferIn, 1000, "alice"), "Received 1000 from alice"},
	}
	for _, tt := range tests {
		if got := tt.rec.String(); got != tt.want {
			t.Errorf("String()=%q want=%q", got, tt.want)
		}
	}
}

func TestTransactionKindText(t *testing.T) {
	for _, k := range []TransactionKind{KindDeposit, KindWithdrawal, KindTransferOut, KindTransferIn} {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) err=%v", k, err)
		}
		var got TransactionKind
		if err := got.UnmarshalText(b); err != nil || got != k {
			t.Fatalf("UnmarshalText(%s)=%d,%v want %d", b, got, err, k)
		}
	}
	if _, err := TransactionKind(9).MarshalText(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := ParseTransactionKind("refund"); err == nil {
		t.Fatal("expected error for unknown name")
	}
}

func TestLockOrder(t *testing.T) {
	got := LockOrder("Bob", "alice", "BOB", " carol ")
	want := []string{"alice", "bob", "carol"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("LockOrder=%v want=%v", got, want)
	}
}

func TestPersistenceErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("commit: %w", NewPersistenceError("save", cause))

	if !errors.Is(err, ErrPersistence) {
		t.Fatal("expected errors.Is(err, ErrPersistence)")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause to stay reachable")
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "save" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestSession(t *testing.T) {
	var zero Session
	if !zero.IsZero() {
		t.Fatal("zero session should report IsZero")
	}
	s := NewSession("alice")
	if s.IsZero() || s.Username() != "alice" {
		t.Fatalf("unexpected session: %v %q", s.ID(), s.Username())
	}
	if NewSession("alice").ID() == s.ID() {
		t.Fatal("session ids must be unique")
	}
}
