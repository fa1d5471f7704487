package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"prediction-arena/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Player   PlayerConfig   `mapstructure:"player"`
	Match    MatchConfig    `mapstructure:"match"`
	Price    PriceConfig    `mapstructure:"price"`
	Bots     BotsConfig     `mapstructure:"bots"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	StateFile   string `mapstructure:"state_file"`
}

// PlayerConfig identifies the local operator when no external auth
// collaborator is wired.
type PlayerConfig struct {
	UserID   string `mapstructure:"user_id"`
	Username string `mapstructure:"username"`
}

// MatchConfig governs round timing and squad sizing.
type MatchConfig struct {
	RoundDuration   time.Duration `mapstructure:"round_duration"`
	VotingDuration  time.Duration `mapstructure:"voting_duration"`
	BattleEnd       time.Duration `mapstructure:"battle_end"`
	MaxRounds       int           `mapstructure:"max_rounds"`
	SquadSize       int           `mapstructure:"squad_size"`
	DeployCountdown time.Duration `mapstructure:"deploy_countdown"`
	PriceHistory    int           `mapstructure:"price_history"`
	ChatLog         int           `mapstructure:"chat_log"`
}

// PriceConfig captures the spot quote endpoint and synthetic fallback.
type PriceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Pair           string        `mapstructure:"pair"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	FallbackPrice  float64       `mapstructure:"fallback_price"`
	Jitter         float64       `mapstructure:"jitter"`
}

// BotsConfig tunes synthetic squad activity per round.
type BotsConfig struct {
	ChatVolume    int `mapstructure:"chat_volume"`
	VoteOffsetMin int `mapstructure:"vote_offset_min"`
	VoteOffsetMax int `mapstructure:"vote_offset_max"`
	ChatOffsetMin int `mapstructure:"chat_offset_min"`
	ChatOffsetMax int `mapstructure:"chat_offset_max"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the profile store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ServerConfig sets the snapshot websocket listener.
type ServerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARENA")
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
	v.SetDefault("app.name", "arena")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.state_file", "")

	v.SetDefault("player.user_id", "local")
	v.SetDefault("player.username", "OPERATOR")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("match.round_duration", "60s")
	v.SetDefault("match.voting_duration", "30s")
	v.SetDefault("match.battle_end", "50s")
	v.SetDefault("match.max_rounds", 3)
	v.SetDefault("match.squad_size", 5)
	v.SetDefault("match.deploy_countdown", "10s")
	v.SetDefault("match.price_history", 60)
	v.SetDefault("match.chat_log", 30)

	v.SetDefault("price.base_url", "https://api.coinbase.com/v2")
	v.SetDefault("price.pair", "BTC-USD")
	v.SetDefault("price.request_timeout", "4s")
	v.SetDefault("price.user_agent", "arena/1.0")
	v.SetDefault("price.fallback_price", 96000.0)
	v.SetDefault("price.jitter", 25.0)

	v.SetDefault("bots.chat_volume", 15)
	v.SetDefault("bots.vote_offset_min", 2)
	v.SetDefault("bots.vote_offset_max", 21)
	v.SetDefault("bots.chat_offset_min", 1)
	v.SetDefault("bots.chat_offset_max", 58)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", ":8090")

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
	if c.Match.RoundDuration <= 0 {
		return fmt.Errorf("match.round_duration must be greater than zero")
	}
	if c.Match.VotingDuration <= 0 || c.Match.VotingDuration >= c.Match.RoundDuration {
		return fmt.Errorf("match.voting_duration must fall inside the round")
	}
	if c.Match.BattleEnd <= c.Match.VotingDuration || c.Match.BattleEnd > c.Match.RoundDuration {
		return fmt.Errorf("match.battle_end must fall between voting end and round end")
	}
	if c.Match.MaxRounds <= 0 {
		return fmt.Errorf("match.max_rounds must be greater than zero")
	}
	if c.Match.SquadSize <= 0 {
		return fmt.Errorf("match.squad_size must be greater than zero")
	}
	if c.Price.FallbackPrice <= 0 {
		return fmt.Errorf("price.fallback_price must be greater than zero")
	}
	if c.Bots.VoteOffsetMin < 0 || c.Bots.VoteOffsetMax < c.Bots.VoteOffsetMin {
		return fmt.Errorf("bots vote offset window is invalid")
	}
	if c.Bots.ChatOffsetMin < 0 || c.Bots.ChatOffsetMax < c.Bots.ChatOffsetMin {
		return fmt.Errorf("bots chat offset window is invalid")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}
