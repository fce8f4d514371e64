package testsupport

import (
	"os"
	"strconv"
	"testing"

	"marketscanner/internal/adapters/config"
)

// LoadRedisConfigFromEnv reads Redis settings for integration tests.
// The test is skipped when REDIS_HOST is not set.
func LoadRedisConfigFromEnv(t *testing.T) config.RedisConfig {
	t.Helper()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("integration environment missing, set REDIS_HOST to run")
	}

	return config.RedisConfig{
		Host:     host,
		Port:     intValue("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
		// a dedicated database keeps FlushDB away from dev data
		DB: intValue("REDIS_TEST_DB", 15),
	}
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}

	return fallback
}
