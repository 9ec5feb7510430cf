package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/config"
)

// CLI 生命週期很短，用全域 flag 即可
var configPath = flag.String("config", "config/config.yaml", "Path to the YAML configuration file")

const (
	// pinEnv 沒有給 -pin 時從這個環境變數讀 PIN，避免 PIN 出現在 process list
	pinEnv = "ATM_PIN"
	// configEnv 沒有給 -config 時的設定檔路徑
	configEnv = "ATM_CONFIG"
)

// register 註冊所有子指令
func register(c *subcommands.Commander) {
	c.Register(&registerCmd{}, "accounts")
	c.Register(&usersCmd{}, "accounts")
	for _, op := range operations {
		c.Register(&sessionCmd{op: op}, "transactions")
	}
	c.Register(&shellCmd{}, "")
}

// openApp 讀設定並組裝帳本
func openApp(ctx context.Context) (*core.App, error) {
	cfg, err := config.Load(configFile())
	if err != nil {
		return nil, err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	return core.New(ctx, cfg, logger)
}

// configFile 明確給的 -config 優先，其次是 $ATM_CONFIG
func configFile() string {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	if v := os.Getenv(configEnv); v != "" && !explicit {
		return v
	}
	return *configPath
}

// credentials 需要登入的指令共用的旗標
type credentials struct {
	username string
	pin      string
}

func (c *credentials) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "u", "", "Account username")
	f.StringVar(&c.pin, "pin", "", "Account PIN (defaults to $"+pinEnv+")")
}

func (c *credentials) secret() string {
	if c.pin != "" {
		return c.pin
	}
	return os.Getenv(pinEnv)
}

// describe 把錯誤轉成給使用者看的訊息
func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateUser):
		return "Username already exists."
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "Invalid User or PIN."
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Insufficient funds!"
	case errors.Is(err, domain.ErrInvalidRecipient):
		return "Invalid recipient!"
	case errors.Is(err, domain.ErrBalanceOverflow):
		return "Amount is too large for this account."
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Amount must be a positive whole number."
	case errors.Is(err, domain.ErrUnauthenticated):
		return "Please login first."
	case errors.Is(err, domain.ErrInvalidUsername):
		return "Username must not be empty."
	case errors.Is(err, domain.ErrInvalidSecret):
		return "Invalid PIN."
	case errors.Is(err, domain.ErrPersistence):
		return fmt.Sprintf("Could not save the ledger, nothing was changed: %v", err)
	default:
		return err.Error()
	}
}

// parseAmount 金額只接受正整數
func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil || amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return amount, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, describe(err))
	return subcommands.ExitFailure
}
