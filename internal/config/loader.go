package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the federation
// scheduler service.
type Config struct {
	HTTPPort        int
	DataDir         string
	SharedDSN       string
	SessionSecret   string
	SessionTTL      time.Duration
	RequestTimeout  time.Duration
	SlotStep        time.Duration
	HoldSweepSpec   string
	GroupHoldExpiry time.Duration
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to sensible defaults; required values are
// validated and reported together so operators can fix the environment in
// one pass.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		DataDir:         "data",
		SharedDSN:       "data/shared.db",
		SessionTTL:      24 * time.Hour,
		RequestTimeout:  15 * time.Second,
		SlotStep:        30 * time.Minute,
		HoldSweepSpec:   "@every 1m",
		GroupHoldExpiry: 30 * time.Minute,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SCHEDFED_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDFED_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dir := strings.TrimSpace(os.Getenv("SCHEDFED_DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDFED_SHARED_DSN")); dsn != "" {
		cfg.SharedDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("SCHEDFED_SESSION_SECRET")); secret == "" {
		missing = append(missing, "SCHEDFED_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SCHEDFED_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDFED_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("SCHEDFED_REQUEST_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "SCHEDFED_REQUEST_TIMEOUT")
		} else {
			cfg.RequestTimeout = timeout
		}
	}

	if stepValue := strings.TrimSpace(os.Getenv("SCHEDFED_SLOT_STEP")); stepValue != "" {
		step, err := time.ParseDuration(stepValue)
		if err != nil || step <= 0 {
			invalid = append(invalid, "SCHEDFED_SLOT_STEP")
		} else {
			cfg.SlotStep = step
		}
	}

	if spec := strings.TrimSpace(os.Getenv("SCHEDFED_HOLD_SWEEP_SPEC")); spec != "" {
		cfg.HoldSweepSpec = spec
	}

	if expiryValue := strings.TrimSpace(os.Getenv("SCHEDFED_GROUP_HOLD_EXPIRY")); expiryValue != "" {
		expiry, err := time.ParseDuration(expiryValue)
		if err != nil || expiry < 0 {
			invalid = append(invalid, "SCHEDFED_GROUP_HOLD_EXPIRY")
		} else {
			cfg.GroupHoldExpiry = expiry
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
