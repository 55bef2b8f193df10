package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Race        RaceConfig        `mapstructure:"race"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	// A connection silent for twice this interval is dropped.
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

type RaceConfig struct {
	CountdownSeconds  int `mapstructure:"countdown_seconds"`
	VotingSeconds     int `mapstructure:"voting_seconds"`
	TimeLimitSeconds  int `mapstructure:"time_limit_seconds"`
	TextLength        int `mapstructure:"text_length"`
	PlayerLimit       int `mapstructure:"player_limit"`
	EmptyGraceSeconds int `mapstructure:"empty_grace_seconds"`
	// Rooms that are mid-race or showing results keep their state longer
	// so a briefly dropped player can reconnect to them.
	ActiveGraceSeconds int `mapstructure:"active_grace_seconds"`
}

type MatchmakingConfig struct {
	RatingWindow     int `mapstructure:"rating_window"`
	MatchTextLength  int `mapstructure:"match_text_length"`
	StartDelayMillis int `mapstructure:"start_delay_millis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func setDefaults() {
	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("server.heartbeat_seconds", 60)

	viper.SetDefault("race.countdown_seconds", 5)
	viper.SetDefault("race.voting_seconds", 10)
	viper.SetDefault("race.time_limit_seconds", 120)
	viper.SetDefault("race.text_length", 240)
	viper.SetDefault("race.player_limit", 5)
	viper.SetDefault("race.empty_grace_seconds", 15)
	viper.SetDefault("race.active_grace_seconds", 60)

	viper.SetDefault("matchmaking.rating_window", 200)
	viper.SetDefault("matchmaking.match_text_length", 120)
	viper.SetDefault("matchmaking.start_delay_millis", 1000)

	// Empty addr means the in-process queue store; set an address to
	// share the matchmaking queue through redis.
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.user", "postgres")
	viper.SetDefault("database.postgres.password", "postgres")
	viper.SetDefault("database.postgres.dbname", "typr")
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	setDefaults()
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// Defaults cover a full local run; a missing file is not an error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = viper.Unmarshal(&config)
	return
}

// Heartbeat returns the expected interval between client messages.
func (c *ServerConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// CountdownDuration returns the configured countdown phase length.
func (c *RaceConfig) CountdownDuration() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

// VotingDuration returns the configured voting window length.
func (c *RaceConfig) VotingDuration() time.Duration {
	return time.Duration(c.VotingSeconds) * time.Second
}

// EmptyGrace returns how long an empty room in an idle phase is kept
// before deletion.
func (c *RaceConfig) EmptyGrace() time.Duration {
	return time.Duration(c.EmptyGraceSeconds) * time.Second
}

// ActiveGrace returns the longer grace applied to racing/finished rooms.
func (c *RaceConfig) ActiveGrace() time.Duration {
	return time.Duration(c.ActiveGraceSeconds) * time.Second
}

// StartDelay returns the pause between notifying matched players and
// arming their countdown.
func (c *MatchmakingConfig) StartDelay() time.Duration {
	return time.Duration(c.StartDelayMillis) * time.Millisecond
}
