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

const envPrefix = "KIOSK_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
		ActionTimeout   time.Duration `koanf:"action_timeout"`
	} `koanf:"http"`

	Kiosk struct {
		ID         string        `koanf:"id"`
		ScanCode   string        `koanf:"scan_code"`
		Language   string        `koanf:"language"`
		PointLabel string        `koanf:"point_label"`
		Overlay    time.Duration `koanf:"overlay"`

		Timeouts struct {
			Status  time.Duration `koanf:"status"`
			Receipt time.Duration `koanf:"receipt"`
			Success time.Duration `koanf:"success"`
			Catalog time.Duration `koanf:"catalog"`
			Payment time.Duration `koanf:"payment"`
		} `koanf:"timeouts"`

		Payment struct {
			CryptoDeadline  time.Duration `koanf:"crypto_deadline"`
			CryptoCadence   time.Duration `koanf:"crypto_cadence"`
			CallTimeout     time.Duration `koanf:"call_timeout"`
			DefaultMaxTime  int           `koanf:"default_max_time_seconds"`
			DefaultAttempts int           `koanf:"default_number_of_tries"`
		} `koanf:"payment"`
	} `koanf:"kiosk"`

	Vending struct {
		BaseURL string        `koanf:"base_url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"vending"`

	// Redis, RabbitMQ and Kafka are optional; an empty address disables each.
	Redis struct {
		Addr     string        `koanf:"addr"`
		Password string        `koanf:"password"`
		DB       int           `koanf:"db"`
		OrderTTL time.Duration `koanf:"order_ttl"`
		DedupTTL time.Duration `koanf:"dedup_ttl"`
	} `koanf:"redis"`

	Rabbit struct {
		URL           string `koanf:"url"`
		CommandsQueue string `koanf:"commands_queue"`
		Prefetch      int    `koanf:"prefetch"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		TopicStatus string   `koanf:"topic_status"`
		GroupID     string   `koanf:"group_id"`
	} `koanf:"kafka"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix KIOSK_, nested with __)
	// e.g. KIOSK_VENDING__BASE_URL, KIOSK_KAFKA__BROKERS=a:9092,b:9092
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
	if key == "kafka.brokers" {
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyDefaults fills what the process needs to start. Kiosk timings left at
// zero fall back to the engine's own defaults.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "kiosk-api"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 10 * time.Second
	}
	if c.HTTP.IdleTimeout <= 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.ActionTimeout <= 0 {
		c.HTTP.ActionTimeout = 2 * time.Second
	}
	if c.Rabbit.CommandsQueue == "" && c.Kiosk.ID != "" {
		c.Rabbit.CommandsQueue = "kiosk.commands." + c.Kiosk.ID + ".q"
	}
	if c.Rabbit.Prefetch <= 0 {
		c.Rabbit.Prefetch = 10
	}
	if c.Kafka.GroupID == "" && c.Kiosk.ID != "" {
		c.Kafka.GroupID = "kiosk-" + c.Kiosk.ID
	}
	if c.Redis.DedupTTL <= 0 {
		c.Redis.DedupTTL = time.Hour
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Kiosk.ID == "" {
		return fmt.Errorf("kiosk.id required")
	}
	if c.Vending.BaseURL == "" {
		return fmt.Errorf("vending.base_url required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.TopicStatus == "" {
		return fmt.Errorf("kafka.topic_status required when kafka.brokers is set")
	}
	if c.Kiosk.Language != "" && c.Kiosk.Language != "en" && c.Kiosk.Language != "ka" {
		return fmt.Errorf("kiosk.language must be en or ka, got %q", c.Kiosk.Language)
	}
	return nil
}
