// Package config reads the command line tool settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host        string
	Port        int
	Timeout     time.Duration
	LogLevel    string
	Params      string
	Retries     int
	MinFirmware string
}

// Load reads files, or .env when none are given. Missing files are not an
// error, variables already set in the environment win over file values.
func Load(files ...string) *Config {
	_ = godotenv.Load(files...)

	return &Config{
		Host:        getEnv("ADV3_HOST", ""),
		Port:        getEnvAsInt("ADV3_PORT", 8899),
		Timeout:     getEnvAsDuration("ADV3_TIMEOUT", 5*time.Second),
		LogLevel:    getEnv("ADV3_LOG_LEVEL", "info"),
		Params:      getEnv("ADV3_PARAMS", "adv3.json"),
		Retries:     getEnvAsInt("ADV3_RETRIES", 3),
		MinFirmware: getEnv("ADV3_MIN_FIRMWARE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(name string, defaultValue int) int {
	valueStr := getEnv(name, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration takes "1500ms" style values, a bare number is seconds.
func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if n, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}
