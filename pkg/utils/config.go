package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REEL_HTTP_ADDR.
const EnvPrefix = "REEL"

const (
	defaultJWTSecret     = "dev-secret-change-me"
	defaultAdminPassword = "change-me"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Media    MediaConfig    `mapstructure:"media"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LogConfig      `mapstructure:"log"`

	// Source is the config file that was read, if any.
	Source string `mapstructure:"-"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	GRPCAddr       string   `mapstructure:"grpc_addr"`
	BaseURL        string   `mapstructure:"base_url"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type PathsConfig struct {
	// PublicDir is the site root served as static files.
	PublicDir string `mapstructure:"public_dir"`
	// MediaDir holds uploads and generated media, relative to PublicDir.
	MediaDir string `mapstructure:"media_dir"`
	// DataDir holds the works and site documents.
	DataDir string `mapstructure:"data_dir"`
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type AuthConfig struct {
	AdminPassword     string        `mapstructure:"admin_password"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	CookieName        string        `mapstructure:"cookie_name"`
	SecureCookie      bool          `mapstructure:"secure_cookie"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	AttemptWindow     time.Duration `mapstructure:"attempt_window"`
	BlockDuration     time.Duration `mapstructure:"block_duration"`
}

type MediaConfig struct {
	FFmpeg        string `mapstructure:"ffmpeg"`
	MaxConcurrent int64  `mapstructure:"max_concurrent"`
	PosterWidth   int    `mapstructure:"poster_width"`
}

type ScheduleConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	WatchManifest bool          `mapstructure:"watch_manifest"`
}

type CatalogConfig struct {
	SampleFallback bool   `mapstructure:"sample_fallback"`
	Meta           string `mapstructure:"meta"`
	Role           string `mapstructure:"role"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.grpc_addr", "")
	v.SetDefault("http.base_url", "")
	v.SetDefault("http.max_upload_bytes", int64(1<<30))
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("paths.public_dir", ".")
	v.SetDefault("paths.media_dir", "movies")
	v.SetDefault("paths.data_dir", "data")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.sqlite_path", "")

	v.SetDefault("auth.admin_password", defaultAdminPassword)
	v.SetDefault("auth.admin_password_hash", "")
	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.jwt_issuer", "reelcms")
	v.SetDefault("auth.token_ttl", 48*time.Hour)
	v.SetDefault("auth.cookie_name", "troy_token")
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("auth.max_attempts", 5)
	v.SetDefault("auth.attempt_window", 15*time.Minute)
	v.SetDefault("auth.block_duration", 15*time.Minute)

	v.SetDefault("media.ffmpeg", "ffmpeg")
	v.SetDefault("media.max_concurrent", 1)
	v.SetDefault("media.poster_width", 1280)

	v.SetDefault("schedule.sweep_interval", 60*time.Second)
	v.SetDefault("schedule.watch_manifest", true)

	v.SetDefault("catalog.sample_fallback", true)
	v.SetDefault("catalog.meta", "Dir. TROY")
	v.SetDefault("catalog.role", "Director")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names the original deployment used
	_ = v.BindEnv("auth.admin_password", EnvPrefix+"_AUTH_ADMIN_PASSWORD", "ADMIN_PASSWORD")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "ADMIN_JWT_SECRET")
	return v
}

// Load reads defaults, then the TOML file at path (or $REEL_CONFIG, or
// ./reelcms.toml when present), then environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("reelcms")
		v.SetConfigType("toml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" &&
		os.Getenv(EnvPrefix+"_HTTP_ADDR") == "" && !v.InConfig("http.addr") {
		cfg.HTTP.Addr = ":" + port
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case "", "file":
		c.Storage.Backend = "file"
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			c.Storage.SQLitePath = filepath.Join(c.Paths.DataDir, "reelcms.db")
		}
	default:
		return fmt.Errorf("config: storage.backend must be file or sqlite, got %q", c.Storage.Backend)
	}
	if c.Paths.PublicDir == "" {
		c.Paths.PublicDir = "."
	}
	if c.Paths.MediaDir == "" {
		c.Paths.MediaDir = "movies"
	}
	if filepath.IsAbs(c.Paths.MediaDir) || strings.HasPrefix(filepath.Clean(c.Paths.MediaDir), "..") {
		return fmt.Errorf("config: paths.media_dir must be relative to paths.public_dir")
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "data"
	}
	if c.Media.MaxConcurrent <= 0 {
		c.Media.MaxConcurrent = 1
	}
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		return fmt.Errorf("config: auth.admin_password or auth.admin_password_hash is required")
	}
	return nil
}

// MediaPath is the absolute-or-relative directory media is written to.
func (c *Config) MediaPath() string {
	return filepath.Join(c.Paths.PublicDir, filepath.FromSlash(c.Paths.MediaDir))
}

// InsecureDefaults lists settings still at their development values.
func (c *Config) InsecureDefaults() []string {
	var out []string
	if c.Auth.JWTSecret == defaultJWTSecret {
		out = append(out, "auth.jwt_secret")
	}
	if c.Auth.AdminPasswordHash == "" && c.Auth.AdminPassword == defaultAdminPassword {
		out = append(out, "auth.admin_password")
	}
	return out
}

// SampleTOML renders the default configuration as a TOML file.
func SampleTOML() ([]byte, error) {
	v := viper.New()
	setDefaults(v)
	settings := tomlSafe(v.AllSettings()).(map[string]any)
	b, err := toml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	header := "# reelcms configuration. Every key can be overridden with REEL_<SECTION>_<KEY>.\n\n"
	return append([]byte(header), b...), nil
}

// tomlSafe writes durations as strings ("1m0s") so the file reads back
// through viper's duration decoding.
func tomlSafe(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = tomlSafe(val)
		}
		return out
	case time.Duration:
		return t.String()
	default:
		return v
	}
}
