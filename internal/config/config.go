// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token     string `yaml:"token"`
	ChannelID int64  `yaml:"channel_id"`
	Username  string `yaml:"username"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type WebConfig struct {
	Port int `yaml:"port"`
	// BaseURL is the public origin used when building cancellation links.
	BaseURL string `yaml:"base_url"`
	// LinkSecret signs subscriber-facing cancellation tokens.
	LinkSecret string `yaml:"link_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// PaymeConfig covers both surfaces: the inbound merchant webhook
// (Login/Password guard the Basic auth check) and the outbound
// subscribe API used for card tokens.
type PaymeConfig struct {
	MerchantID   string `yaml:"merchant_id"`
	Login        string `yaml:"login"`
	Password     string `yaml:"password"`
	TestPassword string `yaml:"test_password"`
	SubsBaseURL  string `yaml:"subs_base_url"`
}

type ClickConfig struct {
	ServiceID      string `yaml:"service_id"`
	MerchantID     string `yaml:"merchant_id"`
	MerchantUserID string `yaml:"merchant_user_id"`
	Secret         string `yaml:"secret"`
	BaseURL        string `yaml:"base_url"`
}

type UzcardConfig struct {
	BaseURL  string `yaml:"base_url"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

type ProvidersConfig struct {
	Payme  PaymeConfig  `yaml:"payme"`
	Click  ClickConfig  `yaml:"click"`
	Uzcard UzcardConfig `yaml:"uzcard"`
}

type SchedulerConfig struct {
	RenewalInterval   time.Duration `yaml:"renewal_interval"`
	RenewalBatch      int           `yaml:"renewal_batch"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	Workers           int           `yaml:"workers"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Providers ProvidersConfig `yaml:"providers"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(b, dev)
}

func parseConfig(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 8
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Providers.Click.BaseURL == "" {
		cfg.Providers.Click.BaseURL = "https://api.click.uz/v2/merchant"
	}
	if cfg.Scheduler.RenewalInterval <= 0 {
		cfg.Scheduler.RenewalInterval = time.Hour
	}
	if cfg.Scheduler.RenewalBatch <= 0 {
		cfg.Scheduler.RenewalBatch = 100
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 10 * time.Minute
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}

	// Minimal validation. Dev mode wires the noop bot, so a real token is
	// only required outside it.
	if cfg.Bot.Token == "" && !dev {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	if cfg.Providers.Payme.Password == "" {
		return nil, errors.New("providers.payme.password is required")
	}
	if cfg.Web.LinkSecret == "" {
		return nil, errors.New("web.link_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
