package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAddr            = "127.0.0.1:8090"
	defaultRetain          = 64
	defaultValidateTimeout = 10 * time.Second
	defaultLeaseTTL        = 15 * time.Second
)

type Config struct {
	DBPath          string
	RulesPath       string
	Addr            string
	Retain          int
	ValidateTimeout time.Duration
	LeaseTTL        time.Duration
	RedisAddr       string
	AuthToken       string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "netlord.db")
	defaultRulesPath := filepath.Join(cwd, "rulesets.json")

	dbPath := envOrDefault("NETLORD_DB_PATH", defaultDBPath)
	rulesPath := envOrDefault("NETLORD_RULES_PATH", defaultRulesPath)
	addr := addrFromEnv(defaultAddr)

	retain := defaultRetain
	if retainEnv := os.Getenv("NETLORD_RETAIN"); retainEnv != "" {
		parsed, err := strconv.Atoi(retainEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid NETLORD_RETAIN: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("NETLORD_RETAIN must be positive")
		}
		retain = parsed
	}

	validateTimeout := defaultValidateTimeout
	if timeoutEnv := os.Getenv("NETLORD_VALIDATE_TIMEOUT"); timeoutEnv != "" {
		parsed, err := time.ParseDuration(timeoutEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid NETLORD_VALIDATE_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("NETLORD_VALIDATE_TIMEOUT must be positive")
		}
		validateTimeout = parsed
	}

	leaseTTL := defaultLeaseTTL
	if ttlEnv := os.Getenv("NETLORD_LEASE_TTL"); ttlEnv != "" {
		parsed, err := time.ParseDuration(ttlEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid NETLORD_LEASE_TTL: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("NETLORD_LEASE_TTL must be positive")
		}
		leaseTTL = parsed
	}

	redisAddr := os.Getenv("NETLORD_REDIS_ADDR")
	authToken := os.Getenv("NETLORD_API_TOKEN")

	flagSet := flag.NewFlagSet("netlord-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite archive")
	flagRules := flagSet.String("rules", rulesPath, "path to rule sets JSON (optional)")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagRetain := flagSet.Int("retain", retain, "number of versions kept in memory and in the archive")
	flagValidateTimeout := flagSet.String("validate-timeout", validateTimeout.String(), "per-request validation deadline")
	flagLeaseTTL := flagSet.String("lease-ttl", leaseTTL.String(), "writer lease TTL")
	flagRedis := flagSet.String("redis", redisAddr, "Redis address for the lease store (empty: lease in SQLite)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	validateTimeoutParsed, err := time.ParseDuration(*flagValidateTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid validate timeout: %w", err)
	}
	if validateTimeoutParsed <= 0 {
		return Config{}, errors.New("validate timeout must be positive")
	}

	leaseTTLParsed, err := time.ParseDuration(*flagLeaseTTL)
	if err != nil {
		return Config{}, fmt.Errorf("invalid lease ttl: %w", err)
	}
	if leaseTTLParsed <= 0 {
		return Config{}, errors.New("lease ttl must be positive")
	}

	if *flagRetain <= 0 {
		return Config{}, errors.New("retain must be positive")
	}

	config := Config{
		DBPath:          resolvePath(*flagDB, cwd),
		RulesPath:       resolvePath(*flagRules, cwd),
		Addr:            strings.TrimSpace(*flagAddr),
		Retain:          *flagRetain,
		ValidateTimeout: validateTimeoutParsed,
		LeaseTTL:        leaseTTLParsed,
		RedisAddr:       strings.TrimSpace(*flagRedis),
		AuthToken:       authToken,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("NETLORD_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("NETLORD_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
