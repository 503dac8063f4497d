package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type server struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

type database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DATABASE_DSN" envDefault:"codex.db"`
}

type audit struct {
	// cron spec, "off" disables the scheduled run
	Schedule string `env:"AUDIT_SCHEDULE" envDefault:"0 3 * * *"`
}

type discord struct {
	Token     string `env:"DISCORD_TOKEN"`
	ChannelID string `env:"DISCORD_CHANNEL_ID"`
}

type config struct {
	Server   server
	Database database
	Audit    audit
	Discord  discord
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (a audit) Enabled() bool {
	s := strings.TrimSpace(a.Schedule)
	return s != "" && !strings.EqualFold(s, "off")
}

func (d discord) Enabled() bool {
	return d.Token != "" && d.ChannelID != ""
}

var (
	mu sync.RWMutex
	c  *config
)

func init() {
	if err := LoadConfig(); err != nil {
		slog.Error(err.Error())
	}
}

// LoadConfig reads the given .env files (".env" when none are given) and then the
// process environment. A missing .env file is not an error.
func LoadConfig(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		slog.Warn(fmt.Sprintf("no .env file loaded, using process environment : %s", err.Error()))
	}
	var nc config
	if err := env.Parse(&nc); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	c = &nc
	slog.Info(fmt.Sprintf("'Config' initialized driver=%s port=%s audit=%q discord=%t",
		c.Database.Driver, c.Server.Port, c.Audit.Schedule, c.Discord.Enabled()))
	return nil
}

func Config() *config {
	mu.RLock()
	defer mu.RUnlock()
	return c
}
