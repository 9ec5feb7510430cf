package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
)

const shellHelp = `Commands:
  register <username> <pin>
  login <username> <pin>
  balance
  deposit <amount>
  withdraw <amount>
  transfer <recipient> <amount>
  history
  users
  logout
  exit
`

// shell 互動模式，一次最多一個登入的 session
type shell struct {
	uc      *usecase.CoreUseCase
	out     io.Writer
	session domain.Session
}

// runShell 逐行讀指令直到 exit、EOF 或 ctx 取消；離開前自動登出
func runShell(ctx context.Context, uc *usecase.CoreUseCase, in io.Reader, out io.Writer) error {
	sh := &shell{uc: uc, out: out}
	defer sh.logout(ctx)

	fmt.Fprintln(out, "ATM Interface. Type help for commands.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := sh.exec(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintln(out, describe(err))
		}
	}
}

func (sh *shell) exec(ctx context.Context, name string, args []string) error {
	switch name {
	case "help":
		fmt.Fprint(sh.out, shellHelp)
		return nil
	case "register":
		if len(args) != 2 {
			return sh.usage("register <username> <pin>")
		}
		account, err := sh.uc.Register(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Registered %s. Please login.\n", account.Username)
		return nil
	case "login":
		if len(args) != 2 {
			return sh.usage("login <username> <pin>")
		}
		sh.logout(ctx)
		session, err := sh.uc.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		sh.session = session
		fmt.Fprintf(sh.out, "Welcome, %s\n", session.Username())
		return nil
	case "logout":
		if sh.session.IsZero() {
			return domain.ErrUnauthenticated
		}
		sh.logout(ctx)
		fmt.Fprintln(sh.out, "Logged out.")
		return nil
	case "users":
		for _, u := range sh.uc.ListUsers(ctx) {
			fmt.Fprintln(sh.out, u)
		}
		return nil
	}

	op, ok := findOperation(name)
	if !ok {
		fmt.Fprintf(sh.out, "Unknown command %q. Type help for commands.\n", name)
		return nil
	}
	if len(op.args) != len(args) {
		return sh.usage(name + " <" + strings.Join(op.args, "> <") + ">")
	}
	return op.run(ctx, sh.uc, sh.session, sh.out, args)
}

func (sh *shell) usage(u string) error {
	return fmt.Errorf("usage: %s", strings.ReplaceAll(u, " <>", ""))
}

func (sh *shell) logout(ctx context.Context) {
	if sh.session.IsZero() {
		return
	}
	sh.uc.Logout(ctx, sh.session)
	sh.session = domain.Session{}
}
