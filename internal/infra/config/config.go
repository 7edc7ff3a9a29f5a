package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// gateway OneBot
	OneBotMode      string        `env:"ONEBOT_MODE" envDefault:"ws"` // ws | http | inbox
	OneBotWSURL     string        `env:"ONEBOT_WS_URL"`
	OneBotHTTPURL   string        `env:"ONEBOT_HTTP_URL"`
	AccessToken     string        `env:"ONEBOT_ACCESS_TOKEN"`
	Secret          string        `env:"ONEBOT_SECRET"` // firma X-Signature del POST de eventos
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	CallTimeout     time.Duration `env:"ONEBOT_CALL_TIMEOUT" envDefault:"8s"`
	CommandCooldown time.Duration `env:"COMMAND_COOLDOWN" envDefault:"1s"`

	// persistencia
	StoreDriver string `env:"STORE_DRIVER" envDefault:"file"` // file | postgres
	StateFile   string `env:"STATE_FILE" envDefault:"data/group_monitor.json"`
	DatabaseURL string `env:"DATABASE_URL"`

	// ciclo de vida
	RequestMaxAge time.Duration `env:"REQUEST_MAX_AGE" envDefault:"24h"`
	SweepSchedule string        `env:"SWEEP_SCHEDULE" envDefault:"@every 1h"`
	FlushSchedule string        `env:"FLUSH_SCHEDULE" envDefault:"@every 5m"`
	Superusers    []int64       `env:"SUPERUSERS" envSeparator:","`

	// espejo de auditoría (opcional)
	DiscordToken          string `env:"DISCORD_BOT_TOKEN"`
	DiscordAuditChannelID string `env:"DISCORD_AUDIT_CHANNEL_ID"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load lee el entorno (main ya cargó .env con godotenv) y valida combinaciones.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.OneBotMode = strings.ToLower(strings.TrimSpace(cfg.OneBotMode))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.OneBotMode {
	case "ws":
		if c.OneBotWSURL == "" {
			errs = append(errs, errors.New("ONEBOT_WS_URL requerido en modo ws"))
		}
	case "http":
		if c.OneBotHTTPURL == "" {
			errs = append(errs, errors.New("ONEBOT_HTTP_URL requerido en modo http"))
		}
	case "inbox":
		// eventos por Postgres, acciones por HTTP
		if c.OneBotHTTPURL == "" || c.DatabaseURL == "" {
			errs = append(errs, errors.New("ONEBOT_HTTP_URL y DATABASE_URL requeridos en modo inbox"))
		}
	default:
		errs = append(errs, fmt.Errorf("ONEBOT_MODE inválido: %q", c.OneBotMode))
	}
	switch c.StoreDriver {
	case "file":
		if c.StateFile == "" {
			errs = append(errs, errors.New("STATE_FILE requerido con STORE_DRIVER=file"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL requerido con STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER inválido: %q", c.StoreDriver))
	}
	if c.RequestMaxAge <= 0 {
		errs = append(errs, errors.New("REQUEST_MAX_AGE debe ser > 0"))
	}
	if (c.DiscordToken == "") != (c.DiscordAuditChannelID == "") {
		errs = append(errs, errors.New("DISCORD_BOT_TOKEN y DISCORD_AUDIT_CHANNEL_ID van juntos"))
	}
	return errors.Join(errs...)
}

// UsesPostgres: el store o el inbox necesitan la base.
func (c Config) UsesPostgres() bool { return c.StoreDriver == "postgres" || c.OneBotMode == "inbox" }

func (c Config) AuditEnabled() bool { return c.DiscordToken != "" && c.DiscordAuditChannelID != "" }

func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
