// Package env loads configuration from a .env file with OS-environment
// fallback, so containerized deployments can skip the file entirely.
package env

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var fileEnv map[string]string

// GetEnv returns the value for key from the loaded .env file, then the OS
// environment, then the default.
func GetEnv(key, def string) string {
	if val, ok := fileEnv[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetInt parses key as a positive integer. Missing or non-numeric values
// fall back to the default.
func GetInt(key string, def int) int {
	raw := GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// SetupEnvFile reads the first .env file found near the working directory.
// Binaries under cmd/ run two levels below the project root.
func SetupEnvFile() {
	for _, path := range []string{".env", "../../.env", "../../../.env"} {
		if m, err := godotenv.Read(path); err == nil {
			fileEnv = m
			log.Infof("[Env] Loaded configuration from %s", path)
			return
		}
	}
	log.Info("[Env] No .env file found, using OS environment only")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
