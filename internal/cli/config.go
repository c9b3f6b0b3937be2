package cli

import (
	"os"
	"path/filepath"
)

// Config holds CLI configuration, sourced from flags with environment
// variable fallbacks (a .env file is honored if present)
type Config struct {
	// StorageType selects the backend: "redis" (shared play) or "memory"
	StorageType string
	// RedisURL is the shared document store every client connects to
	RedisURL string
	// DisplayName is how the local user appears to other players
	DisplayName string
	// IdentityFile is where the local guest identity persists
	IdentityFile string
	// Verbose enables debug logging
	Verbose bool
}

// DefaultConfig returns configuration seeded from the environment
func DefaultConfig() *Config {
	name := os.Getenv("QUIZROOM_NAME")
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "guest"
	}

	identityFile := os.Getenv("QUIZROOM_IDENTITY_FILE")
	if identityFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			identityFile = filepath.Join(home, ".quizroom-id")
		} else {
			identityFile = ".quizroom-id"
		}
	}

	return &Config{
		StorageType:  envOr("QUIZROOM_STORE", "redis"),
		RedisURL:     envOr("QUIZROOM_REDIS_URL", "redis://localhost:6379"),
		DisplayName:  name,
		IdentityFile: identityFile,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
