package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

const defaultCredentialsFile = "credentials.json"

// Options are the command-line settings layered over the library config.
type Options struct {
	// YAML config file; empty reads GOAUTH_* variables only
	ConfigFile string

	BaseURL   string
	Backend   string
	FilePath  string
	RedisAddr string
	Namespace string
	LogLevel  string
	Verbose   bool
}

// LoadDotEnv exports the variables of '.env' in the working directory
// without overriding ones already set.
func LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	err = godotenv.Load(filepath.Join(wd, ".env"))
	switch {
	case err == nil, errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

// ParseFlags parses args and returns the remaining positional arguments.
func (o *Options) ParseFlags(args []string) ([]string, error) {
	fs := pflag.NewFlagSet("authctl", pflag.ContinueOnError)

	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "YAML config file")
	fs.StringVarP(&o.BaseURL, "base-url", "u", o.BaseURL, "Auth API base URL")
	fs.StringVarP(&o.Backend, "store", "s", o.Backend, "Credential store (file, redis, memory)")
	fs.StringVar(&o.FilePath, "store-path", o.FilePath, "Credential file for the file store")
	fs.StringVar(&o.RedisAddr, "redis-addr", o.RedisAddr, "Redis address for the redis store")
	fs.StringVarP(&o.Namespace, "profile", "p", o.Namespace, "Credential namespace in Redis")
	fs.StringVarP(&o.LogLevel, "log-level", "l", o.LogLevel, "Logging level (debug, info, warn, error)")
	fs.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Log to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// Resolve reads the library config, applies the flags that were set and
// validates the result. The CLI stores credentials in a file by default.
func (o *Options) Resolve(userConfigDir func() (string, error)) (goAuthClient.Config, error) {
	cfg, err := goAuthClient.ReadConfig(o.ConfigFile)
	if err != nil {
		return goAuthClient.Config{}, err
	}

	if o.BaseURL != "" {
		cfg.API.BaseURL = o.BaseURL
	}
	if o.Backend != "" {
		cfg.Storage.Backend = o.Backend
	}
	if o.RedisAddr != "" {
		cfg.Storage.Redis.Addr = o.RedisAddr
	}
	if o.Namespace != "" {
		cfg.Storage.Redis.Namespace = o.Namespace
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.FilePath != "" {
		cfg.Storage.FilePath = o.FilePath
	}

	if cfg.Storage.Backend == goAuthClient.StorageMemory && o.Backend == "" {
		cfg.Storage.Backend = goAuthClient.StorageFile
	}
	if cfg.Storage.Backend == goAuthClient.StorageFile && cfg.Storage.FilePath == "" {
		dir, err := userConfigDir()
		if err != nil {
			return goAuthClient.Config{}, err
		}
		cfg.Storage.FilePath = filepath.Join(dir, "authctl", defaultCredentialsFile)
	}

	return cfg, cfg.Validate()
}
