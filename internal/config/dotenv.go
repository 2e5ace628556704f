package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files found in dir with priority .env.local > .env.
// godotenv.Load never overwrites variables that are already set, so real
// environment variables always win. Returns the files actually loaded.
func LoadDotEnv(dir string) []string {
	var loaded []string
	for _, name := range []string{".env.local", ".env"} {
		f := filepath.Join(dir, name)
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
