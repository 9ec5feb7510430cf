// Package core 依設定組裝帳本: 儲存層 -> 帳戶集合 -> 驗證 -> 業務邏輯
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	file_adapter "github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/file"
	journal_adapter "github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/journal"
	memory_adapter "github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-pin-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-pin-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-pin-ledger/internal/config"
	"github.com/JoeShih716/go-pin-ledger/pkg/mysql"
)

// App 組裝完成的帳本，結束時呼叫 Close
type App struct {
	Core    *usecase.CoreUseCase
	closers []func() error
}

// New 建立帳本並從持久化層恢復資料
//
// 參數:
//
//	ctx: 恢復資料時使用
//	cfg: 已驗證的設定
//	logger: 結構化日誌
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{}

	// 1. 帳戶集合 + 驗證服務 (舊版資料匯入時要用到雜湊函數)
	accounts := memory_adapter.NewAccountStore(cfg.Ledger.Opening())
	auth, err := usecase.NewAuthService(accounts, cfg.Auth.HashCost, logger)
	if err != nil {
		return nil, err
	}

	// 2. 持久化層
	snapshots, err := app.openSnapshotStore(cfg, auth, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	// 3. 業務邏輯 + 恢復
	ledger := usecase.NewLedgerService(accounts, snapshots, auth, logger)
	if err := ledger.Recover(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to recover ledger: %w", err)
	}
	app.Core = usecase.NewCoreUseCase(auth, ledger)
	return app, nil
}

func (a *App) openSnapshotStore(cfg config.Config, auth *usecase.AuthService, logger *slog.Logger) (usecase.SnapshotStore, error) {
	logger = logger.With("driver", cfg.Storage.Driver)
	switch cfg.Storage.Driver {
	case config.DriverFile:
		var opts []file_adapter.Option
		if cfg.Storage.LegacyImportEnabled() {
			opts = append(opts, file_adapter.WithLegacyHasher(auth.HashSecret))
		}
		return file_adapter.NewStore(cfg.Storage.Path, logger, opts...), nil
	case config.DriverJournal:
		store, err := journal_adapter.Open(cfg.Storage.Path, cfg.Storage.CompactEvery, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.DriverMySQL:
		client, err := mysql.NewClient(cfg.MySQL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mysql: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := mysql_adapter.NewStore(client, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close 關閉儲存層資源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
