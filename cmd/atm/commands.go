package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
)

type registerCmd struct {
	credentials
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "register a new account" }
func (*registerCmd) Usage() string {
	return `atm register -u <username> [-pin <pin>]

  Creates an account with the configured opening balance.
  The PIN is read from $ATM_PIN when -pin is not given.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	account, err := app.Core.Register(ctx, c.username, c.secret())
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Registered %s. Please login.\n", account.Username)
	return subcommands.ExitSuccess
}

type usersCmd struct{}

func (*usersCmd) Name() string     { return "users" }
func (*usersCmd) Synopsis() string { return "list registered usernames" }
func (*usersCmd) Usage() string {
	return `atm users

  Lists every registered username in registration order.
`
}

func (*usersCmd) SetFlags(_ *flag.FlagSet) {}

func (*usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	for _, name := range app.Core.ListUsers(ctx) {
		fmt.Println(name)
	}
	return subcommands.ExitSuccess
}

// sessionCmd 先登入再執行 op，結束時登出
type sessionCmd struct {
	credentials
	op operation
}

func (c *sessionCmd) Name() string     { return c.op.name }
func (c *sessionCmd) Synopsis() string { return c.op.synopsis }
func (c *sessionCmd) Usage() string {
	var args string
	for _, a := range c.op.args {
		args += " <" + a + ">"
	}
	return fmt.Sprintf("atm %s -u <username> [-pin <pin>]%s\n\n  %s.\n", c.op.name, args, strings.ToUpper(c.op.synopsis[:1])+c.op.synopsis[1:])
}

func (c *sessionCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *sessionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != len(c.op.args) {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	session, err := app.Core.Login(ctx, c.username, c.secret())
	if err != nil {
		return fail(err)
	}
	defer app.Core.Logout(ctx, session)

	if err := c.op.run(ctx, app.Core, session, os.Stdout, f.Args()); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type shellCmd struct{}

func (*shellCmd) Name() string     { return "shell" }
func (*shellCmd) Synopsis() string { return "interactive ATM session" }
func (*shellCmd) Usage() string {
	return `atm shell

  Starts an interactive session: register or login once, then run
  balance, deposit, withdraw, transfer and history until logout.
`
}

func (*shellCmd) SetFlags(_ *flag.FlagSet) {}

func (*shellCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	if err := runShell(ctx, app.Core, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
