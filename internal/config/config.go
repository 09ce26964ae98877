package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"clantracker/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logging       logging.Config      `mapstructure:"logging"`
	Database      DatabaseConfig      `mapstructure:"database"`
	API           APIConfig           `mapstructure:"api"`
	Poller        PollerConfig        `mapstructure:"poller"`
	Retention     RetentionConfig     `mapstructure:"retention"`
	Interpolation InterpolationConfig `mapstructure:"interpolation"`
	Server        ServerConfig        `mapstructure:"server"`
	Derive        DeriveConfig        `mapstructure:"derive"`
	Export        ExportConfig        `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig locates the embedded SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// APIConfig covers Clash of Clans API access.
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	ClanTag        string        `mapstructure:"clan_tag"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PollerConfig governs sampling cadence.
type PollerConfig struct {
	ClanInterval    time.Duration `mapstructure:"clan_interval"`
	PlayerInterval  time.Duration `mapstructure:"player_interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	PlayerFetchGap  time.Duration `mapstructure:"player_fetch_gap"`
}

// RetentionConfig tunes the pruning sweep.
type RetentionConfig struct {
	Schedule       string        `mapstructure:"schedule"`
	Window         time.Duration `mapstructure:"window"`
	RecentWindow   time.Duration `mapstructure:"recent_window"`
	MinRecentCount int64         `mapstructure:"min_recent_count"`
	PlayerWindow   time.Duration `mapstructure:"player_window"`
}

// InterpolationConfig tunes the gap-fill sweep.
type InterpolationConfig struct {
	Schedule string        `mapstructure:"schedule"`
	Step     time.Duration `mapstructure:"step"`
	Window   time.Duration `mapstructure:"window"`
}

// ServerConfig exposes the dashboard API.
type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	StaticDir  string `mapstructure:"static_dir"`
	HistoryCap int    `mapstructure:"history_cap"`
}

// DeriveConfig parameterises trend derivation.
type DeriveConfig struct {
	TrendWindow int `mapstructure:"trend_window"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLANTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "clantracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.path", "data/clantracker.db")

	v.SetDefault("api.base_url", "https://api.clashofclans.com/v1")
	// Empty defaults keep the env bindings visible to Unmarshal.
	v.SetDefault("api.token", "")
	v.SetDefault("api.clan_tag", "")
	v.SetDefault("api.request_timeout", "10s")
	v.SetDefault("api.user_agent", "clantracker/1.0")

	v.SetDefault("poller.clan_interval", "1m")
	v.SetDefault("poller.player_interval", "5m")
	v.SetDefault("poller.align_to_interval", true)
	v.SetDefault("poller.startup_delay", "0s")
	v.SetDefault("poller.player_fetch_gap", "100ms")

	v.SetDefault("retention.schedule", "@daily")
	v.SetDefault("retention.window", "720h")
	v.SetDefault("retention.recent_window", "168h")
	v.SetDefault("retention.min_recent_count", int64(1000))
	v.SetDefault("retention.player_window", "2160h")

	v.SetDefault("interpolation.schedule", "@hourly")
	v.SetDefault("interpolation.step", "5m")
	v.SetDefault("interpolation.window", "168h")

	v.SetDefault("server.port", 4000)
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.history_cap", 10080)

	v.SetDefault("derive.trend_window", 7)

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Poller.ClanInterval <= 0 {
		return fmt.Errorf("poller.clan_interval must be greater than zero")
	}
	if c.Poller.PlayerInterval <= 0 {
		return fmt.Errorf("poller.player_interval must be greater than zero")
	}
	if c.Interpolation.Step <= 0 {
		return fmt.Errorf("interpolation.step must be greater than zero")
	}
	if c.Interpolation.Window <= 0 {
		return fmt.Errorf("interpolation.window must be greater than zero")
	}
	if c.Retention.Window <= c.Retention.RecentWindow {
		return fmt.Errorf("retention.window must exceed retention.recent_window")
	}
	if c.Retention.MinRecentCount < 0 {
		return fmt.Errorf("retention.min_recent_count cannot be negative")
	}
	if c.Derive.TrendWindow <= 0 {
		return fmt.Errorf("derive.trend_window must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
