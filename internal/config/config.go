package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath    string `envconfig:"DB_PATH" default:"./data/laundry.db"`
	DefaultTZ string `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"` // times typed in the bot are read here
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`          // debug|info|warn|error
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`

	// Reservation API. An empty secret leaves only /healthz mounted.
	JWTSecret      string        `envconfig:"JWT_SECRET"`
	JWTExpiry      time.Duration `envconfig:"JWT_EXPIRY" default:"24h"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	RateLimitRPS   float64       `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int           `envconfig:"RATE_LIMIT_BURST" default:"10"`

	// Optional reminder event stream.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"laundry.reminders"`

	PendingTTL    time.Duration `envconfig:"PENDING_TTL" default:"10m"`
	NotifyTimeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	return cfg, nil
}
