package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ledger.Opening() != DefaultOpeningBalance {
		t.Fatalf("opening_balance=%d want=%d", cfg.Ledger.Opening(), DefaultOpeningBalance)
	}
	if cfg.Storage.Driver != DriverFile || cfg.Storage.Path != "user_data.json" || cfg.Storage.CompactEvery != 64 {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
	if !cfg.Storage.LegacyImportEnabled() {
		t.Fatal("legacy import should default to enabled")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log=%+v", cfg.Log)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
ledger:
  opening_balance: 100
auth:
  hash_cost: 4
storage:
  driver: journal
  compact_every: 8
  import_legacy: false
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ledger.Opening() != 100 || cfg.Auth.HashCost != 4 {
		t.Fatalf("cfg=%+v", cfg)
	}
	// journal 的預設路徑與 file 不同
	if cfg.Storage.Path != "user_data.wal" || cfg.Storage.CompactEvery != 8 {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
	if cfg.Storage.LegacyImportEnabled() {
		t.Fatal("import_legacy: false ignored")
	}
	if level, _ := cfg.Log.SlogLevel(); level.String() != "DEBUG" {
		t.Fatalf("level=%v want DEBUG", level)
	}
}

func TestLoadZeroOpeningBalance(t *testing.T) {
	cfg, err := Load(writeConfig(t, "ledger:\n  opening_balance: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Ledger.Opening(); got != 0 {
		t.Fatalf("opening_balance=%d want=0", got)
	}

	// 只寫了別的區塊時仍套用預設金額
	cfg, err = Load(writeConfig(t, "log:\n  level: warn\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Ledger.Opening(); got != DefaultOpeningBalance {
		t.Fatalf("opening_balance=%d want=%d", got, DefaultOpeningBalance)
	}
}

func TestLoadMySQLDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: mysql
mysql:
  host: db
  db_name: ledger
  retry_interval: 500ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MySQL.Port != 3306 || cfg.MySQL.ConnMaxLifetime != 30*time.Minute || cfg.MySQL.RetryInterval != 500*time.Millisecond {
		t.Fatalf("mysql=%+v", cfg.MySQL)
	}
	if !strings.Contains(cfg.MySQL.DSN(), "@tcp(db:3306)/ledger?") {
		t.Fatalf("dsn=%s", cfg.MySQL.DSN())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"negative balance": "ledger:\n  opening_balance: -1\n",
		"unknown driver":   "storage:\n  driver: redis\n",
		"mysql no host":    "storage:\n  driver: mysql\n",
		"bad level":        "log:\n  level: loud\n",
		"bad format":       "log:\n  format: xml\n",
		"bad yaml":         "ledger: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf strings.Builder
	LogConfig{Level: "info", Format: "json"}.NewLogger(&buf).Info("hello", "k", 1)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":1`) {
		t.Fatalf("json output=%q", buf.String())
	}

	buf.Reset()
	LogConfig{Level: "warn", Format: "text"}.NewLogger(&buf).Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
}
