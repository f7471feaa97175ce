package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob of the server. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Port string `env:"PORT" envDefault:"3001"`

	// Storage backend: "mongo", "postgres" or "memory".
	DBDriver    string `env:"DB_DRIVER" envDefault:"mongo"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDBName string `env:"MONGO_DB" envDefault:"pairchat"`
	PostgresURL string `env:"DATABASE_URL"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"72h"`
	OTPTTL    time.Duration `env:"OTP_TTL" envDefault:"5m"`

	// Grace window before a disconnected session is evicted.
	PresenceGracePeriod time.Duration `env:"PRESENCE_GRACE_PERIOD" envDefault:"10s"`

	SMTPHost string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASSWORD"`
	MailFrom string `env:"MAIL_FROM" envDefault:"no-reply@pairchat.local"`

	// Blob storage: "local" serves files from UploadDir, "http" forwards
	// uploads to a third-party blob service.
	BlobDriver   string `env:"BLOB_DRIVER" envDefault:"local"`
	BlobEndpoint string `env:"BLOB_ENDPOINT"`
	BlobToken    string `env:"BLOB_TOKEN"`
	UploadDir    string `env:"UPLOAD_DIR" envDefault:"uploads"`
	BaseURL      string `env:"BASE_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the .env file if present and parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine in production.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
