package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Engine  EngineConfig
	Ledger  LedgerConfig
	Cost    CostConfig
	Planner PlannerConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   int
	RateLimitBurst int
}

type EngineConfig struct {
	TickInterval          time.Duration
	RetryBudget           int
	MaxResponseDistanceKm float64
}

type LedgerConfig struct {
	Path        string
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
}

type CostConfig struct {
	PerKmRate              float64
	OvertimeThresholdHours float64
	OvertimeMultiplier     float64
}

type PlannerConfig struct {
	Trials      int
	RefineIters int
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 200),
		},
		Engine: EngineConfig{
			TickInterval:          getEnvDuration("ENGINE_TICK_INTERVAL", 2*time.Second),
			RetryBudget:           getEnvInt("ENGINE_RETRY_BUDGET", 3),
			MaxResponseDistanceKm: getEnvFloat("ENGINE_MAX_RESPONSE_DISTANCE_KM", 50),
		},
		Ledger: LedgerConfig{
			Path:        getEnv("LEDGER_DB_PATH", "./data/dispatch-ledger.db"),
			Workers:     getEnvInt("LEDGER_WORKERS", 2),
			BufferSize:  getEnvInt("LEDGER_BUFFER_SIZE", 64),
			MaxAttempts: getEnvInt("LEDGER_MAX_ATTEMPTS", 3),
			RetryDelay:  getEnvDuration("LEDGER_RETRY_DELAY", 200*time.Millisecond),
		},
		Cost: CostConfig{
			PerKmRate:              getEnvFloat("COST_PER_KM_RATE", 2.5),
			OvertimeThresholdHours: getEnvFloat("COST_OVERTIME_THRESHOLD_HOURS", 8),
			OvertimeMultiplier:     getEnvFloat("COST_OVERTIME_MULTIPLIER", 1.5),
		},
		Planner: PlannerConfig{
			Trials:      getEnvInt("PLANNER_TRIALS", 50),
			RefineIters: getEnvInt("PLANNER_REFINE_ITERS", 200),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Engine.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("engine tick interval must be at least 100ms")
	}
	if c.Engine.RetryBudget < 1 {
		return fmt.Errorf("engine retry budget must be at least 1")
	}
	if c.Engine.MaxResponseDistanceKm < 0 {
		return fmt.Errorf("max response distance must not be negative")
	}

	if c.Ledger.Workers < 1 {
		return fmt.Errorf("ledger workers must be at least 1")
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger max attempts must be at least 1")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
