// Package config loads memra.yaml with defaults, environment overrides
// and flag overrides layered on top.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marshallshelly/memra/pkg/auth"
)

const (
	maxWalkDepth = 25
	envPrefix    = "MEMRA"
)

// Config is the effective memra configuration.
type Config struct {
	Listen        string `mapstructure:"listen" yaml:"listen"`
	APIPrefix     string `mapstructure:"api_prefix" yaml:"api_prefix"`
	Schema        string `mapstructure:"schema" yaml:"schema"`
	Models        string `mapstructure:"models" yaml:"models"`
	MigrationsDir string `mapstructure:"migrations_dir" yaml:"migrations_dir"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Generate GenerateConfig `mapstructure:"generate" yaml:"generate"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Name     string `mapstructure:"name" yaml:"name"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns int32  `mapstructure:"min_conns" yaml:"min_conns"`
}

// AuthConfig holds token settings and the signing keys.
type AuthConfig struct {
	Issuer    string        `mapstructure:"issuer" yaml:"issuer"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ActiveKey string        `mapstructure:"active_key" yaml:"active_key"`
	Keys      []KeyConfig   `mapstructure:"keys" yaml:"keys"`
}

// KeyConfig declares one key. Exactly one of Secret or the PEM files is
// used, depending on the algorithm.
type KeyConfig struct {
	ID             string `mapstructure:"id" yaml:"id"`
	Algorithm      string `mapstructure:"algorithm" yaml:"algorithm"`
	Secret         string `mapstructure:"secret" yaml:"secret,omitempty"`
	PublicKeyFile  string `mapstructure:"public_key_file" yaml:"public_key_file,omitempty"`
	PrivateKeyFile string `mapstructure:"private_key_file" yaml:"private_key_file,omitempty"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// GenerateConfig holds code generation settings.
type GenerateConfig struct {
	Output  string `mapstructure:"output" yaml:"output"`
	Package string `mapstructure:"package" yaml:"package"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
}

// Load discovers and loads configuration with proper precedence:
// flags > env > config file > defaults. Flags are applied by the caller.
//
// Returns the loaded config, the path to the config file (empty if none
// found), and any error encountered.
func Load(explicitPath string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8000")
	v.SetDefault("api_prefix", "/api")
	v.SetDefault("schema", "schema/memra.yaml")
	v.SetDefault("models", "internal/models")
	v.SetDefault("migrations_dir", "migrations")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "memra")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)

	v.SetDefault("auth.issuer", "memra")
	v.SetDefault("auth.ttl", auth.DefaultTTL)
	v.SetDefault("auth.active_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("generate.output", "models")
	v.SetDefault("generate.package", "")
	v.SetDefault("generate.workers", 0)
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for memra.yaml or memra.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{"memra.yaml", "memra.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields.
func (c *Config) DSN() (string, error) {
	db := c.Database
	if db.URL != "" {
		return db.URL, nil
	}

	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// KeySet loads every configured key and selects the active one.
func (a AuthConfig) KeySet() (*auth.KeySet, error) {
	if len(a.Keys) == 0 {
		return nil, fmt.Errorf("auth.keys is empty")
	}

	keys := make([]auth.Key, 0, len(a.Keys))
	for _, kc := range a.Keys {
		k, err := auth.LoadKey(auth.KeySource{
			ID:             kc.ID,
			Algorithm:      kc.Algorithm,
			Secret:         kc.Secret,
			PublicKeyFile:  kc.PublicKeyFile,
			PrivateKeyFile: kc.PrivateKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("loading key %q: %w", kc.ID, err)
		}
		keys = append(keys, k)
	}

	active := a.ActiveKey
	if active == "" {
		active = a.Keys[0].ID
	}
	return auth.NewKeySet(active, keys...)
}

// JWT builds the token authenticator described by the auth section.
func (a AuthConfig) JWT() (*auth.JWT, error) {
	keys, err := a.KeySet()
	if err != nil {
		return nil, err
	}
	opts := []auth.Option{auth.WithIssuer(a.Issuer)}
	if a.TTL > 0 {
		opts = append(opts, auth.WithTTL(a.TTL))
	}
	return auth.NewJWT(keys, opts...), nil
}

// Logger builds a slog logger writing to w.
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("log.format must be text or json, got %q", l.Format)
}
