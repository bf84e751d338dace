package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/privgate/internal/flagx"
	"github.com/dmitrijs2005/privgate/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "10s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	GatewayURL       string         `json:"gateway_url"`
	BotToken         string         `json:"bot_token"`
	BotName          string         `json:"bot_name"`
	DatabaseDSN      string         `json:"database_dsn"`
	AdminPrincipalID int64          `json:"admin_principal_id"`
	SendTimeout      timex.Duration `json:"send_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path is taken from the -c or -config
// command-line flags; when neither is set, no JSON file is loaded.
//
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
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
	if c.SendTimeout.Duration != 0 {
		config.SendTimeout = time.Duration(c.SendTimeout.Duration)
	}
}
