package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "CHESSRELAY"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Lobby     LobbyConfig     `mapstructure:"lobby"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	HTTPAddress string `mapstructure:"http_address" validate:"required"`
	// RPCAddress enables the admin RPC listener when set.
	RPCAddress string `mapstructure:"rpc_address"`
}

type WebSocketConfig struct {
	ReadLimit      int64         `mapstructure:"read_limit" validate:"gt=0"`
	SendBuffer     int           `mapstructure:"send_buffer" validate:"gt=0"`
	PingPeriod     time.Duration `mapstructure:"ping_period" validate:"gt=0,ltfield=PongWait"`
	PongWait       time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	WriteWait      time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type LobbyConfig struct {
	EventBuffer int `mapstructure:"event_buffer" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" validate:"required"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", "")
	v.SetDefault("websocket.read_limit", 32768)
	v.SetDefault("websocket.send_buffer", 64)
	v.SetDefault("websocket.ping_period", "54s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "5s")
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("lobby.event_buffer", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("metrics.namespace", "chessrelay")
}

// LoadConfig reads config.yaml from path. A missing file is not an error:
// defaults and CHESSRELAY_* environment variables apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
