package config

import (
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads environment variables from .env/.env.local. It stops at
// the first file that exists. Existing process variables are never
// overwritten.
func loadEnvFile() error {
	for _, envPath := range envFiles {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return err
		}
		slog.Debug("Loaded environment variables", slog.String("file", envPath))
		return nil
	}
	return errors.New("no .env file found")
}
