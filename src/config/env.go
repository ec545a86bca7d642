package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Lookup resolves a setting name; *data.Settings satisfies it.
type Lookup interface {
	Get(name string) string
}

// LoadDotenv loads the given .env files (default ".env") without
// overriding variables already set. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// GetSetting retrieves a setting with env fallback
func GetSetting(settings Lookup, name, envKey, defaultValue string) string {
	var val string
	if settings != nil && name != "" {
		val = strings.TrimSpace(settings.Get(name))
	}
	if val == "" && envKey != "" {
		val = strings.TrimSpace(os.Getenv(envKey))
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBool(settings Lookup, name, envKey string, def bool) (bool, error) {
	raw := GetSetting(settings, name, envKey, "")
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}

func getInt(settings Lookup, name, envKey string, def int) (int, error) {
	raw := GetSetting(settings, name, envKey, "")
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func getDuration(settings Lookup, name, envKey string, def time.Duration) (time.Duration, error) {
	raw := GetSetting(settings, name, envKey, "")
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
