package utils

import (
	"fmt"
	"log/slog"
	"os"
)

type AppConfig struct {
	DiscordAppsID         string
	DiscordBotToken       string
	DiscordGatewayAddress string
}

// LoadConfiguration reads the bot's environment. The gateway address is
// optional; when empty the caller should ask the REST API for it.
func LoadConfiguration() AppConfig {
	cfg := AppConfig{}
	requiredEnv := map[string]*string{
		"DC_APPLICATION_ID": &cfg.DiscordAppsID,
		"DC_BOT_TOKEN":      &cfg.DiscordBotToken,
	}
	for k, v := range requiredEnv {
		if val, ok := os.LookupEnv(k); !ok {
			slog.Error(fmt.Sprintf("Provide: %s", k))
			os.Exit(1)
		} else {
			*v = val
		}
	}
	cfg.DiscordGatewayAddress = os.Getenv("DC_GATEWAY_ADDRESS")
	return cfg
}
