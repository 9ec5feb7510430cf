// stress 在同一個 process 內併發轉帳，最後檢查總金額守恆與交易紀錄筆數
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-pin-ledger/internal/app/core"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-pin-ledger/internal/config"
)

const (
	TotalCount  = 2000
	Concurrency = 64
	Users       = 16
)

func main() {
	totalCount := flag.Int("n", TotalCount, "Number of transfers")
	concurrency := flag.Int("c", Concurrency, "Concurrent workers")
	users := flag.Int("users", Users, "Number of accounts")
	driver := flag.String("driver", config.DriverFile, "Storage driver (file, journal)")
	dir := flag.String("dir", "", "Data directory (defaults to a temporary directory)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(*totalCount, *concurrency, *users, *driver, *dir, logger); err != nil {
		logger.Error("stress run failed", "error", err)
		os.Exit(1)
	}
}

func run(totalCount, concurrency, users int, driver, dir string, logger *slog.Logger) error {
	if users < 2 {
		return errors.New("need at least two users")
	}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "pin-ledger-stress-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	cfg := config.Default()
	cfg.Auth.HashCost = bcrypt.MinCost
	cfg.Storage.Driver = driver
	cfg.Storage.Path = filepath.Join(dir, "ledger-"+driver)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	app, err := core.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	uc := app.Core

	// 1. 建立帳戶並登入
	const pin = "1234"
	sessions := make([]domain.Session, users)
	for i := range sessions {
		name := "stress-" + uuid.NewString()[:8]
		if _, err := uc.Register(ctx, name, pin); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		if sessions[i], err = uc.Login(ctx, name, pin); err != nil {
			return fmt.Errorf("login %s: %w", name, err)
		}
	}

	// 2. 併發轉帳
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		rejected  atomic.Int64
	)
	wg.Add(totalCount)
	sem := make(chan struct{}, concurrency)
	startTime := time.Now()

	for i := 0; i < totalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			from := rand.Intn(users)
			to := (from + 1 + rand.Intn(users-1)) % users
			amount := int64(1 + rand.Intn(500))
			_, err := uc.Transfer(ctx, sessions[from], sessions[to].Username(), amount)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				if idx%100 == 0 {
					logger.Warn("transfer failed", "index", idx, "error", err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	// 3. 檢查守恆與紀錄筆數
	var total, records int64
	for _, s := range sessions {
		balance, err := uc.Balance(ctx, s)
		if err != nil {
			return err
		}
		history, err := uc.History(ctx, s)
		if err != nil {
			return err
		}
		total += balance
		records += int64(len(history))
	}
	want := int64(users) * cfg.Ledger.Opening()
	if total != want {
		return fmt.Errorf("conservation violated: total %d, want %d", total, want)
	}
	if records != 2*succeeded.Load() {
		return fmt.Errorf("history mismatch: %d records for %d transfers", records, succeeded.Load())
	}

	fmt.Printf("Completed %d transfers (%d ok, %d insufficient funds) in %v\n", totalCount, succeeded.Load(), rejected.Load(), elapsed)
	fmt.Printf("TPS: %.2f\n", float64(totalCount)/elapsed.Seconds())
	fmt.Printf("Total balance %d conserved across %d accounts\n", total, users)
	return nil
}
