package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Secrets holds credentials that are never written to the layered YAML files.
// They come from the process environment, optionally seeded from a .env file
// in the working directory.
type Secrets struct {
	// DiscordToken is the bot token, without the "Bot " prefix.
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	// PostgresDSN is the audit store connection string. Required only when
	// database_enable is set.
	PostgresDSN string `env:"POSTGRES_DSN"`

	// OwnerID is the Discord user id allowed to run admin commands. When
	// empty, ownership falls back to the application owner reported by the
	// Discord API.
	OwnerID string `env:"OWNER_ID"`
}

// LoadSecrets reads Secrets from the environment. A .env file is loaded
// best-effort first; a missing file is not an error.
func LoadSecrets() (Secrets, error) {
	_ = godotenv.Load()

	s, err := env.ParseAs[Secrets]()
	if err != nil {
		return Secrets{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return s, nil
}
