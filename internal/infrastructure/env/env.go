package env

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

// Load reads a .env file from the working directory once. A missing file is
// not an error; real environment variables always take precedence.
func Load() {
	loadOnce.Do(func() {
		_ = godotenv.Load()
	})
}

func GetString(key, fallback string) string {
	Load()

	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}

	return val
}

func GetInt(key string, fallback int) int {
	val := GetString(key, "")
	if val == "" {
		return fallback
	}

	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}

	return n
}

func GetBool(key string, fallback bool) bool {
	val := GetString(key, "")
	if val == "" {
		return fallback
	}

	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}

	return b
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	val := GetString(key, "")
	if val == "" {
		return fallback
	}

	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}

	return d
}
