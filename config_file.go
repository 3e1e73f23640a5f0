package goGuard

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment options recognized by [ApplyEnv].
const (
	EnvMaxAttempts        = "MAX_ATTEMPTS"
	EnvWindowMS           = "WINDOW_MS"
	EnvTOTPToleranceSteps = "TOTP_TOLERANCE_STEPS"
	EnvPasswordMinLength  = "PASSWORD_MIN_LENGTH"
	EnvSessionSecret      = "SESSION_SECRET"
)

// LoadConfig reads a YAML file over [DefaultConfig]. Keys missing from the
// file keep their defaults. The result is not validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment options. lookup is usually
// os.LookupEnv. Empty values are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvMaxAttempts); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxAttempts, err)
		}
		cfg.RateLimit.MaxAttempts = n
	}
	if v, ok := get(EnvWindowMS); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWindowMS, err)
		}
		cfg.RateLimit.Window = time.Duration(ms) * time.Millisecond
	}
	if v, ok := get(EnvTOTPToleranceSteps); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTOTPToleranceSteps, err)
		}
		cfg.TOTP.ToleranceSteps = n
	}
	if v, ok := get(EnvPasswordMinLength); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPasswordMinLength, err)
		}
		cfg.Password.MinLength = n
	}
	if v, ok := get(EnvSessionSecret); ok {
		cfg.Session.Secret = v
	}
	return nil
}
