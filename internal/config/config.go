// Package config 載入 YAML 設定檔並補上預設值
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-pin-ledger/pkg/mysql"
)

// DefaultOpeningBalance 註冊時給予的預設金額 (沿用 ATM 的 5000)
const DefaultOpeningBalance int64 = 5000

// 儲存方式
const (
	DriverFile    = "file"
	DriverJournal = "journal"
	DriverMySQL   = "mysql"
)

type Config struct {
	Ledger  LedgerConfig  `yaml:"ledger"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	MySQL   mysql.Config  `yaml:"mysql"`
	Log     LogConfig     `yaml:"log"`
}

type LedgerConfig struct {
	// OpeningBalance 未設定時為 DefaultOpeningBalance，明確寫 0 代表開戶不送錢
	OpeningBalance *int64 `yaml:"opening_balance"`
}

type AuthConfig struct {
	// HashCost bcrypt cost，0 代表 bcrypt 預設值
	HashCost int `yaml:"hash_cost"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	// CompactEvery journal 累積幾筆後壓縮
	CompactEvery int `yaml:"compact_every"`
	// ImportLegacy 是否接受舊版 ATM 的資料檔格式
	ImportLegacy *bool `yaml:"import_legacy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default 沒有設定檔時使用的設定
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load 讀取設定檔；檔案不存在時回傳預設值
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyDefaults 補全 yaml 沒寫的欄位
func (c *Config) applyDefaults() {
	if c.Ledger.OpeningBalance == nil {
		opening := DefaultOpeningBalance
		c.Ledger.OpeningBalance = &opening
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case DriverJournal:
			c.Storage.Path = "user_data.wal"
		default:
			c.Storage.Path = "user_data.json"
		}
	}
	if c.Storage.CompactEvery == 0 {
		c.Storage.CompactEvery = 64
	}
	if c.Storage.ImportLegacy == nil {
		enabled := true
		c.Storage.ImportLegacy = &enabled
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Storage.Driver == DriverMySQL {
		c.MySQL.ApplyDefaults()
	}
}

// Validate 檢查設定是否合理
func (c Config) Validate() error {
	if c.Ledger.Opening() < 0 {
		return fmt.Errorf("ledger.opening_balance must not be negative, got %d", c.Ledger.Opening())
	}
	switch c.Storage.Driver {
	case DriverFile, DriverJournal:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required")
		}
	case DriverMySQL:
		if c.MySQL.Host == "" || c.MySQL.DBName == "" {
			return errors.New("mysql.host and mysql.db_name are required for the mysql driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// Opening 註冊時給予的金額
func (l LedgerConfig) Opening() int64 {
	if l.OpeningBalance == nil {
		return DefaultOpeningBalance
	}
	return *l.OpeningBalance
}

// LegacyImportEnabled 是否接受舊版資料檔
func (s StorageConfig) LegacyImportEnabled() bool {
	return s.ImportLegacy == nil || *s.ImportLegacy
}

// SlogLevel 轉成 slog.Level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("invalid log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger 依設定建立 slog.Logger
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
