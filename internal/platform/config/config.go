// Package config reads gateway settings from the environment. A .env file,
// when present, seeds variables that are not already set.
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

// Load applies the given .env files (".env" when none are named). Files that
// do not exist are skipped; variables already in the environment keep their
// values.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	present := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		present = append(present, p)
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

func lookup(key string) (string, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	return s, s != ""
}

// GetEnv returns the trimmed value of key, or fallback when it is unset or blank.
func GetEnv(key, fallback string) string {
	if s, ok := lookup(key); ok {
		return s
	}
	return fallback
}

// GetEnvInt returns key as an integer, or fallback when it is unset or malformed.
func GetEnvInt(key string, fallback int) int {
	if s, ok := lookup(key); ok {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses values such as "5s" or "1500ms". A bare integer is
// read as seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s, ok := lookup(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// GetEnvBool returns key as understood by strconv.ParseBool.
func GetEnvBool(key string, fallback bool) bool {
	if s, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}
