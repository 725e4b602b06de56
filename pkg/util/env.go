package util

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
)

// LoadEnv loads the .env file for the given environment into the process
// environment. Variables already present in the environment win.
func LoadEnv(env string) error {
	filename := ".env"
	if env != "" && env != "development" {
		filename = fmt.Sprintf(".env.%s", env)
	}

	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// GetEnv returns the environment variable value, or "" when unset.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault returns the environment variable value, or def when unset.
func GetEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetIntEnv returns the environment variable parsed as int64, 0 when unset
// or unparseable.
func GetIntEnv(key string) int64 {
	return cast.ToInt64(os.Getenv(key))
}

// GetBoolEnv returns true when the environment variable is "true" or "1".
func GetBoolEnv(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}
