package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
	"github.com/yungbote/competency-engine/internal/utils"
)

type Config struct {
	Port          string
	Environment   string
	Version       string
	OrgID         string
	WorkerCount   int
	ClaimInterval time.Duration
	ShortCircuit  bool
	SignalBaseURL string
	SignalTimeout time.Duration
	AllowOrigins  []string
	// DefaultRule is the bottom of the rule-resolution cascade. Nil means
	// an unmatched criterion is a resolution error instead of falling back.
	DefaultRule *types.RulePayload
}

// configFile is the optional YAML shape behind CONFIG_PATH. Environment
// variables override whatever the file sets.
type configFile struct {
	Port                 string   `yaml:"port"`
	Environment          string   `yaml:"environment"`
	OrgID                string   `yaml:"org_id"`
	WorkerCount          int      `yaml:"worker_count"`
	ClaimIntervalSeconds int      `yaml:"claim_interval_seconds"`
	ShortCircuit         *bool    `yaml:"short_circuit"`
	AllowOrigins         []string `yaml:"allow_origins"`
	Signal               struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"signal"`
	DefaultRule struct {
		Enabled bool    `yaml:"enabled"`
		Op      string  `yaml:"op"`
		Value   float64 `yaml:"value"`
		Scale   string  `yaml:"scale"`
	} `yaml:"default_rule"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	var file configFile
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}

	cfg := Config{
		Port:          firstNonEmpty(file.Port, "8080"),
		Environment:   firstNonEmpty(file.Environment, "development"),
		Version:       os.Getenv("SERVICE_VERSION"),
		OrgID:         file.OrgID,
		WorkerCount:   file.WorkerCount,
		ClaimInterval: time.Duration(file.ClaimIntervalSeconds) * time.Second,
		ShortCircuit:  true,
		SignalBaseURL: file.Signal.BaseURL,
		SignalTimeout: time.Duration(file.Signal.TimeoutSeconds) * time.Second,
		AllowOrigins:  file.AllowOrigins,
	}
	if file.ShortCircuit != nil {
		cfg.ShortCircuit = *file.ShortCircuit
	}
	if file.DefaultRule.Enabled {
		cfg.DefaultRule = &types.RulePayload{
			Op:    firstNonEmpty(file.DefaultRule.Op, types.RuleOpGte),
			Value: file.DefaultRule.Value,
			Scale: firstNonEmpty(file.DefaultRule.Scale, types.RuleScalePercent),
		}
	}

	cfg.Port = utils.GetEnv("PORT", cfg.Port, log)
	cfg.Environment = utils.GetEnv("ENVIRONMENT", cfg.Environment, log)
	cfg.OrgID = utils.GetEnv("ORG_ID", cfg.OrgID, log)
	cfg.WorkerCount = utils.GetEnvAsInt("WORKER_COUNT", defaultInt(cfg.WorkerCount, 4), log)
	claimSeconds := utils.GetEnvAsInt("CLAIM_INTERVAL_SECONDS", defaultInt(int(cfg.ClaimInterval/time.Second), 2), log)
	cfg.ClaimInterval = time.Duration(claimSeconds) * time.Second
	cfg.ShortCircuit = utils.GetEnvAsBool("SHORT_CIRCUIT", cfg.ShortCircuit, log)
	cfg.SignalBaseURL = utils.GetEnv("SIGNAL_BASE_URL", cfg.SignalBaseURL, log)
	signalTimeout := utils.GetEnvAsInt("SIGNAL_TIMEOUT_SECONDS", defaultInt(int(cfg.SignalTimeout/time.Second), 5), log)
	cfg.SignalTimeout = time.Duration(signalTimeout) * time.Second
	if origins := strings.TrimSpace(os.Getenv("ALLOW_ORIGINS")); origins != "" {
		cfg.AllowOrigins = strings.Split(origins, ",")
	}

	// DEFAULT_RULE_PERCENT=100 enables the system default Grade>=100 rule
	// without a config file.
	if cfg.DefaultRule == nil {
		if raw := strings.TrimSpace(os.Getenv("DEFAULT_RULE_PERCENT")); raw != "" {
			val := utils.GetEnvAsInt("DEFAULT_RULE_PERCENT", 100, log)
			cfg.DefaultRule = &types.RulePayload{
				Op:    types.RuleOpGte,
				Value: float64(val),
				Scale: types.RuleScalePercent,
			}
		}
	}

	if cfg.SignalBaseURL == "" {
		return Config{}, fmt.Errorf("SIGNAL_BASE_URL (or signal.base_url in the config file) is required")
	}
	return cfg, nil
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func defaultInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
