package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the deployment-owned surface of the gateway: transport address,
// token signing secret, allowed origin and the durable-store/broker
// parameters. Everything else is compiled-in policy.
type Config struct {
	Addr          string `envconfig:"ADDR" default:":8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"2h"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Optional presence mirror. Disabled when RedisAddr is empty.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"90s"`

	// Optional message firehose. Disabled when NatsURL is empty.
	NatsURL string `envconfig:"NATS_URL"`

	NodeID int64 `envconfig:"NODE_ID" default:"1"`

	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`
	SendQueueSize    int           `envconfig:"SEND_QUEUE_SIZE" default:"64"`
	PingInterval     time.Duration `envconfig:"PING_INTERVAL" default:"25s"`
	PongTimeout      time.Duration `envconfig:"PONG_TIMEOUT" default:"75s"`

	HistoryPageSize int `envconfig:"HISTORY_PAGE_SIZE" default:"100"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
