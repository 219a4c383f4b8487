package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "STOREFRONT_"

type User struct {
	ID           string `koanf:"id"`
	Email        string `koanf:"email"`
	PasswordHash string `koanf:"password_hash"`
	Role         string `koanf:"role"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Cache struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"cache"`

	Rabbit struct {
		URL        string        `koanf:"url"`
		Exchange   string        `koanf:"exchange"`
		Prefetch   int           `koanf:"prefetch"`
		RelayEvery time.Duration `koanf:"relay_every"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers       []string `koanf:"brokers"`
		GroupID       string   `koanf:"group_id"`
		PaymentsTopic string   `koanf:"payments_topic"`
	} `koanf:"kafka"`

	Payment struct {
		BaseURL      string        `koanf:"base_url"`
		SecretKey    string        `koanf:"secret_key"`
		Currency     string        `koanf:"currency"`
		Timeout      time.Duration `koanf:"timeout"`
		WebhookPEM   string        `koanf:"webhook_pub_pem"`
		PublishedKey string        `koanf:"published_key"`
	} `koanf:"payment"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
		Users     []User        `koanf:"users"`
	} `koanf:"security"`

	Client struct {
		APIURL     string        `koanf:"api_url"`
		StorageDir string        `koanf:"storage_dir"`
		ReturnURL  string        `koanf:"return_url"`
		Timeout    time.Duration `koanf:"timeout"`
	} `koanf:"client"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix STOREFRONT_, nested with __)
	// e.g. STOREFRONT_MYSQL__DSN, STOREFRONT_REDIS__PASSWORD
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 3 * time.Second
	}
	if c.Idempotency.TTL <= 0 {
		c.Idempotency.TTL = 24 * time.Hour
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "usd"
	}
	if c.Payment.Timeout <= 0 {
		c.Payment.Timeout = 8 * time.Second
	}
	if c.Rabbit.Exchange == "" {
		c.Rabbit.Exchange = "order.events"
	}
	if c.Rabbit.Prefetch <= 0 {
		c.Rabbit.Prefetch = 50
	}
	if c.Rabbit.RelayEvery <= 0 {
		c.Rabbit.RelayEvery = time.Second
	}
	if c.Security.TTL <= 0 {
		c.Security.TTL = 60 * time.Minute
	}
	if c.Client.Timeout <= 0 {
		c.Client.Timeout = 10 * time.Second
	}
	if c.Client.StorageDir == "" {
		c.Client.StorageDir = ".storefront"
	}
}

// Validate checks what the API server needs at startup.
func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	if c.Payment.BaseURL == "" {
		return fmt.Errorf("payment.base_url required")
	}
	if c.Payment.WebhookPEM == "" {
		return fmt.Errorf("payment.webhook_pub_pem required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required")
	}
	return nil
}

// ValidateClient checks what the shopper client needs.
func (c Config) ValidateClient() error {
	if c.Client.APIURL == "" {
		return fmt.Errorf("client.api_url required")
	}
	if c.Payment.BaseURL == "" {
		return fmt.Errorf("payment.base_url required")
	}
	return nil
}
