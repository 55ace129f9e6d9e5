package env

import (
	"os"
	"strconv"
)

// Bool reads a boolean environment variable, returning defaultValue when the
// variable is unset or unparsable.
func Bool(env string, defaultValue bool) bool {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	return os.Getenv(env) == "true"
}

// Int reads an integer environment variable, returning defaultValue when the
// variable is unset or unparsable.
func Int(env string, defaultValue int) int {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	num, err := strconv.Atoi(os.Getenv(env))
	if err != nil {
		return defaultValue
	}
	return num
}

// Float64 reads a float environment variable, returning defaultValue when the
// variable is unset or unparsable.
func Float64(env string, defaultValue float64) float64 {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	num, err := strconv.ParseFloat(os.Getenv(env), 64)
	if err != nil {
		return defaultValue
	}
	return num
}

// String reads a string environment variable, returning defaultValue when the
// variable is unset.
func String(env string, defaultValue string) string {
	if env == "" || os.Getenv(env) == "" {
		return defaultValue
	}
	return os.Getenv(env)
}
