package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poller.Interval != time.Second {
		t.Errorf("default interval: got %s", cfg.Poller.Interval)
	}
	if cfg.Upbit.QuoteCurrency != "KRW" || cfg.Upbit.REST.BaseURL != "https://api.upbit.com" {
		t.Errorf("unexpected upbit defaults: %+v", cfg.Upbit)
	}
	if !cfg.Console.Enabled || cfg.Redis.Enabled || cfg.Kafka.Enabled {
		t.Errorf("unexpected sink defaults: console=%v redis=%v kafka=%v", cfg.Console.Enabled, cfg.Redis.Enabled, cfg.Kafka.Enabled)
	}
}

// go test -v --run TestLoadFileAndEnv
func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
upbit:
  quote_currency: KRW
poller:
  interval: 3s
symbols:
  watch: ["KRW-BTC", "KRW-ETH"]
redis:
  enabled: true
`)
	t.Setenv("POLLER_FETCH_TIMEOUT", "2s")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poller.Interval != 3*time.Second {
		t.Errorf("interval from file: got %s", cfg.Poller.Interval)
	}
	if cfg.Poller.FetchTimeout != 2*time.Second {
		t.Errorf("fetch timeout from env: got %s", cfg.Poller.FetchTimeout)
	}
	if len(cfg.Symbols.Watch) != 2 || !cfg.Redis.Enabled {
		t.Errorf("unexpected values: watch=%v redis=%v", cfg.Symbols.Watch, cfg.Redis.Enabled)
	}
}

// go test -v --run TestLoadInvalid
func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "poller:\n  interval: 0s\n")

	_, err := Load(dir)
	var cerr *ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "poller.interval" {
		t.Fatalf("expected ConfigError on poller.interval, got %v", err)
	}
}

// go test -v --run TestLoadCredentialsFromEnvFile
func TestLoadCredentialsFromEnvFile(t *testing.T) {
	unsetEnv(t, AccessKeyEnv)
	unsetEnv(t, SecretKeyEnv)

	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "UPBIT_ACCESS_KEY=ak\nUPBIT_SECRET_KEY=sk\n")

	cfg := &Config{Upbit: UpbitConfig{EnvFile: envFile}}
	creds, err := LoadCredentials(cfg)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.AccessKey != "ak" || creds.SecretKey != "sk" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

// go test -v --run TestLoadCredentialsMissing
func TestLoadCredentialsMissing(t *testing.T) {
	unsetEnv(t, AccessKeyEnv)
	unsetEnv(t, SecretKeyEnv)

	cfg := &Config{Upbit: UpbitConfig{EnvFile: filepath.Join(t.TempDir(), "absent.env")}}
	_, err := LoadCredentials(cfg)

	var cerr *ConfigError
	if !errors.As(err, &cerr) || cerr.Field != AccessKeyEnv {
		t.Fatalf("expected ConfigError for access key, got %v", err)
	}
}

// go test -v --run TestLoadCredentialsProd
func TestLoadCredentialsProd(t *testing.T) {
	orig := parameterLookup
	defer func() { parameterLookup = orig }()

	parameterLookup = func(_ context.Context, name string) string {
		if name == "ACCESS_PARAM" {
			return "from-ssm"
		}
		return ""
	}

	cfg := &Config{
		Log:   LogConfig{Environment: "prod"},
		Upbit: UpbitConfig{AccessKeyParam: "ACCESS_PARAM", SecretKeyParam: "SECRET_PARAM"},
	}
	_, err := LoadCredentials(cfg)

	var cerr *ConfigError
	if !errors.As(err, &cerr) || cerr.Field != SecretKeyEnv {
		t.Fatalf("expected missing secret key, got %v", err)
	}
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "pw",
		DBName:   "upbitwatch",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
	want := "host=localhost port=5432 user=postgres password=pw dbname=upbitwatch sslmode=disable TimeZone=UTC"
	if got := cfg.DSN("dev"); got != want {
		t.Errorf("DSN:\n got %s\nwant %s", got, want)
	}
	if got := cfg.AdminDSN("dev"); got == want || cfg.DBName != "upbitwatch" {
		t.Errorf("AdminDSN should target postgres without touching cfg: %s", got)
	}
}
