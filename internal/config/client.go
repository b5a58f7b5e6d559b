package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Backends the CLI can sync against.
const (
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

// Client is the CLI configuration.
type Client struct {
	Backend     string        `mapstructure:"backend"`
	ServerURL   string        `mapstructure:"server-url"`
	DatabaseURL string        `mapstructure:"database-url"`
	SupabaseURL string        `mapstructure:"supabase-url"`
	SupabaseKey string        `mapstructure:"supabase-key"`
	StatePath   string        `mapstructure:"state"`
	LogLevel    string        `mapstructure:"log-level"`
	LogFile     string        `mapstructure:"log-file"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DefaultStatePath is the sqlite file holding the device state.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "memosync", "state.db")
}

// ClientFlags registers the CLI configuration flags on fs.
func ClientFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default $HOME/.config/memosync/config.yaml)")
	fs.String("backend", BackendHTTP, "remote backend: http, postgres or supabase")
	fs.String("server-url", "http://localhost:8080", "record service base URL")
	fs.String("database-url", "", "Postgres DSN for the postgres backend")
	fs.String("supabase-url", "", "Supabase project URL")
	fs.String("supabase-key", "", "Supabase anon key")
	fs.String("state", DefaultStatePath(), "local state database")
	fs.String("log-level", "warn", "log level")
	fs.String("log-file", "", "write logs to this file instead of stderr")
	fs.Duration("timeout", 30*time.Second, "timeout for a whole command")
}

// LoadClient resolves flags, MEMOSYNC_* environment variables and the
// optional config file, in that order of precedence.
func LoadClient(fs *pflag.FlagSet) (Client, error) {
	v := viper.New()
	v.SetEnvPrefix("MEMOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Client{}, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "memosync"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Client{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Client
	if err := v.Unmarshal(&c); err != nil {
		return Client{}, err
	}
	return c, c.Validate()
}

func (c Client) Validate() error {
	switch c.Backend {
	case BackendHTTP:
		if c.ServerURL == "" {
			return errors.New("server-url is required for the http backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database-url is required for the postgres backend")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return errors.New("supabase-url and supabase-key are required for the supabase backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.StatePath == "" {
		return errors.New("state path is required")
	}
	return nil
}
