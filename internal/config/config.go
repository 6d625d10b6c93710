package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName       string `mapstructure:"app_name"`
	Env           string `mapstructure:"app_env"`
	LogLevel      string `mapstructure:"log_level"`
	APIBaseURL    string `mapstructure:"api_base_url"`
	EndpointsFile string `mapstructure:"endpoints_file"`

	DevServerHost  string `mapstructure:"dev_server_host"`
	DevServerPort  int    `mapstructure:"dev_server_port"`
	StaticDir      string `mapstructure:"static_dir"`
	BuildTarget    string `mapstructure:"build_target"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// Load reads configuration from configs/.env, environment variables and the
// optional config file. Values already set on v (e.g. bound CLI flags) win.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	if v == nil {
		v = viper.New()
	}

	v.SetDefault("app_name", "tvapi")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_base_url", "")
	v.SetDefault("endpoints_file", "")
	v.SetDefault("dev_server_host", "0.0.0.0")
	v.SetDefault("dev_server_port", 3000)
	v.SetDefault("static_dir", "./build")
	v.SetDefault("build_target", "es2015") // Tizen OS 4 browser engine
	v.SetDefault("metrics_enabled", true)

	if configFile = strings.TrimSpace(configFile); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	cfg.DevServerHost = strings.TrimSpace(cfg.DevServerHost)
	cfg.BuildTarget = strings.TrimSpace(cfg.BuildTarget)

	if cfg.DevServerPort <= 0 || cfg.DevServerPort > 65535 {
		return nil, fmt.Errorf("invalid dev_server_port %d (must be 1-65535)", cfg.DevServerPort)
	}
	if cfg.BuildTarget == "" {
		return nil, fmt.Errorf("invalid build_target (must not be empty)")
	}

	return &cfg, nil
}

// DevServerAddr returns the host:port the dev server binds to.
func (c *Config) DevServerAddr() string {
	return net.JoinHostPort(c.DevServerHost, strconv.Itoa(c.DevServerPort))
}
