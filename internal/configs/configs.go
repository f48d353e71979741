package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"operator-dispatch.com/operator-dispatch/internal/constants"
)

type Config struct {
	AppURL                 string
	DatabaseDriver         string
	DatabaseDSN            string
	RateLimit              int
	RedisAddr              string
	ShutdownTimeoutSeconds int

	LockBackend     string
	LockKey         string
	LockTTLSeconds  int
	LockWaitSeconds int

	BotToken             string
	PublicURL            string
	NotifyTimeoutSeconds int
	OperatorChannels     map[string]string
	CityGroups           map[string]string

	ExternalAPIURL       string
	LookupTimeoutSeconds int

	PromotionPolicy   constants.PromotionPolicy
	DispatchWorkers   int
	DispatchQueueSize int
}

func Load() Config {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "127.0.0.1")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := Config{
		AppURL:                 fmt.Sprintf("%s:%s", appHost, appPort),
		DatabaseDriver:         getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:            getEnv("DATABASE_DSN", "dispatch.db"),
		RateLimit:              getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		RedisAddr:              fmt.Sprintf("%s:%s", redisHost, redisPort),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),

		LockBackend:     getEnv("LOCK_BACKEND", "memory"),
		LockKey:         getEnv("LOCK_KEY", "dispatch:assignment_lock"),
		LockTTLSeconds:  getEnvAsInt("LOCK_TTL_SECONDS", 10),
		LockWaitSeconds: getEnvAsInt("LOCK_WAIT_SECONDS", 5),

		BotToken:             os.Getenv("BOT_TOKEN"),
		PublicURL:            strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		NotifyTimeoutSeconds: getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
		OperatorChannels:     getEnvAsMapping("OPERATOR_CHANNELS"),
		CityGroups:           getEnvAsMapping("CITY_GROUPS"),

		ExternalAPIURL:       os.Getenv("EXTERNAL_API_URL"),
		LookupTimeoutSeconds: getEnvAsInt("LOOKUP_TIMEOUT_SECONDS", 5),

		PromotionPolicy:   constants.PromotionPolicy(getEnv("PROMOTION_POLICY", string(constants.PromotionNotify))),
		DispatchWorkers:   getEnvAsInt("DISPATCH_WORKERS", 4),
		DispatchQueueSize: getEnvAsInt("DISPATCH_QUEUE_SIZE", 100),
	}

	validate(cfg)
	return cfg
}

func validate(cfg Config) {
	if cfg.AppURL == "" {
		log.Fatal("APP_URL must not be empty (e.g. 127.0.0.1:8080)")
	}
	if cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "postgres" {
		log.Fatal("DATABASE_DRIVER must be sqlite or postgres")
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN must not be empty")
	}
	if cfg.RateLimit <= 0 {
		log.Fatal("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if cfg.LockBackend != "memory" && cfg.LockBackend != "redis" {
		log.Fatal("LOCK_BACKEND must be memory or redis")
	}
	if cfg.LockTTLSeconds <= 0 || cfg.LockWaitSeconds <= 0 {
		log.Fatal("LOCK_TTL_SECONDS and LOCK_WAIT_SECONDS must be greater than 0")
	}
	if cfg.NotifyTimeoutSeconds <= 0 {
		log.Fatal("NOTIFY_TIMEOUT_SECONDS must be greater than 0")
	}
	if cfg.LookupTimeoutSeconds <= 0 {
		log.Fatal("LOOKUP_TIMEOUT_SECONDS must be greater than 0")
	}
	if cfg.PromotionPolicy != constants.PromotionNotify && cfg.PromotionPolicy != constants.PromotionAuto {
		log.Fatal("PROMOTION_POLICY must be notify or auto")
	}
	if cfg.DispatchWorkers <= 0 {
		log.Fatal("DISPATCH_WORKERS must be greater than 0")
	}
	if cfg.DispatchQueueSize <= 0 {
		log.Fatal("DISPATCH_QUEUE_SIZE must be greater than 0")
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}

func getEnvAsMapping(key string) map[string]string {
	m, err := parseMapping(os.Getenv(key))
	if err != nil {
		log.Fatalf("invalid value for %s: %v", key, err)
	}
	return m
}

// parseMapping reads "key:value,key:value". Only the first colon of a pair
// separates key from value.
func parseMapping(raw string) (map[string]string, error) {
	m := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("expected key:value, got %q", pair)
		}
		m[k] = v
	}
	return m, nil
}
