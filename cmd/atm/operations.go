package main

import (
	"context"
	"fmt"
	"io"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
)

// operation 登入後才能執行的動作，子指令與 shell 共用
type operation struct {
	name     string
	synopsis string
	args     []string
	run      func(ctx context.Context, uc *usecase.CoreUseCase, session domain.Session, out io.Writer, args []string) error
}

var operations = []operation{
	{
		name:     "balance",
		synopsis: "show the current balance",
		run: func(ctx context.Context, uc *usecase.CoreUseCase, session domain.Session, out io.Writer, _ []string) error {
			balance, err := uc.Balance(ctx, session)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Your balance: %d\n", balance)
			return nil
		},
	},
	{
		name:     "deposit",
		synopsis: "deposit money into the account",
		args:     []string{"amount"},
		run: func(ctx context.Context, uc *usecase.CoreUseCase, session domain.Session, out io.Writer, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			balance, err := uc.Deposit(ctx, session, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Deposited: %d. Your balance: %d\n", amount, balance)
			return nil
		},
	},
	{
		name:     "withdraw",
		synopsis: "withdraw money from the account",
		args:     []string{"amount"},
		run: func(ctx context.Context, uc *usecase.CoreUseCase, session domain.Session, out io.Writer, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			balance, err := uc.Withdraw(ctx, session, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Withdrawn: %d. Your balance: %d\n", amount, balance)
			return nil
		},
	},
	{
		name:     "transfer",
		synopsis: "transfer money to another account",
		args:     []string{"recipient", "amount"},
		run: func(ctx context.Context, uc *usecase.CoreUseCase, session domain.Session, out io.Writer, args []string) error {
			// 格式錯誤的金額以 0 送出，收款人仍會先被檢查
			recipient := args[0]
			amount, _ := parseAmount(args[1])
			balance, err := uc.Transfer(ctx, session, recipient, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Transferred %d to %s. Your balance: %d\n", amount, domain.NormalizeUsername(recipient), balance)
			return nil
		},
	},
	{
		name:     "history",
		synopsis: "list the account transactions",
		run: func(ctx context.Context, uc *usecase.CoreUseCase, session domain.Session, out io.Writer, _ []string) error {
			history, err := uc.History(ctx, session)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintln(out, "No transactions available.")
				return nil
			}
			for _, rec := range history {
				// 舊版匯入的紀錄沒有時間
				if rec.CreatedAt.IsZero() {
					fmt.Fprintf(out, "%s\n", rec)
					continue
				}
				fmt.Fprintf(out, "%s  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), rec)
			}
			return nil
		},
	},
}

func findOperation(name string) (operation, bool) {
	for _, op := range operations {
		if op.name == name {
			return op, true
		}
	}
	return operation{}, false
}
