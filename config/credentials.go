package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	AccessKeyEnv = "UPBIT_ACCESS_KEY"
	SecretKeyEnv = "UPBIT_SECRET_KEY"
)

// Credentials are the exchange API key pair.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// parameterLookup reads a secret by name; replaced in tests.
var parameterLookup = func(ctx context.Context, name string) string {
	return getParameterStoreValue(ctx, name, true)
}

// LoadCredentials resolves the API keys before the exchange client is built.
// In prod they come from SSM Parameter Store; otherwise the env file is loaded
// (without overriding variables already set) and the process environment is read.
// Missing keys are a *ConfigError.
func LoadCredentials(cfg *Config) (Credentials, error) {
	var creds Credentials

	if cfg.Log.Environment == "prod" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		creds.AccessKey = parameterLookup(ctx, cfg.Upbit.AccessKeyParam)
		creds.SecretKey = parameterLookup(ctx, cfg.Upbit.SecretKeyParam)
	} else {
		if cfg.Upbit.EnvFile != "" {
			if err := godotenv.Load(cfg.Upbit.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return Credentials{}, &ConfigError{Field: "upbit.env_file", Err: err}
			}
		}
		creds.AccessKey = os.Getenv(AccessKeyEnv)
		creds.SecretKey = os.Getenv(SecretKeyEnv)
	}

	if creds.AccessKey == "" {
		return Credentials{}, &ConfigError{Field: AccessKeyEnv, Err: errors.New("API access key is missing")}
	}
	if creds.SecretKey == "" {
		return Credentials{}, &ConfigError{Field: SecretKeyEnv, Err: errors.New("API secret key is missing")}
	}
	return creds, nil
}
