package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors the Config fields that can be supplied through the
// environment. BOT_TOKEN is the one input deployments must provide.
type envConfig struct {
	GatewayURL       string        `env:"GATEWAY_URL"`
	BotToken         string        `env:"BOT_TOKEN"`
	BotName          string        `env:"BOT_NAME"`
	DatabaseDSN      string        `env:"DATABASE_DSN"`
	AdminPrincipalID int64         `env:"ADMIN_PRINCIPAL_ID"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT"`
}

// parseEnv overlays environment variables onto the provided Config.
// Unset variables leave the current values untouched.
func parseEnv(config *Config) {
	c := envConfig{}
	if err := env.Parse(&c); err != nil {
		panic(err)
	}

	if c.GatewayURL != "" {
		config.GatewayURL = c.GatewayURL
	}
	if c.BotToken != "" {
		config.BotToken = c.BotToken
	}
	if c.BotName != "" {
		config.BotName = c.BotName
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.AdminPrincipalID != 0 {
		config.AdminPrincipalID = c.AdminPrincipalID
	}
	if c.SendTimeout != 0 {
		config.SendTimeout = c.SendTimeout
	}
}
