// Package config resolves process configuration for care-matcher: the §6
// environment variables governing proposal TTLs, matcher budgets, and
// default thresholds, plus the DATA_PATH/LOG_DIR/CACHE_DIR triad the
// in-memory stores use for their JSONL snapshots.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration, resolved once at
// startup the way the teacher's config.Load does.
type AppConfig struct {
	DataPath string
	LogDir   string
	CacheDir string

	// ProposalDefaultTTLMinutes is PROPOSAL_DEFAULT_TTL_MINUTES (default 120).
	// It is loaded but not passed on: when a configuration leaves
	// ProposalExpirationMinutes unset, the Expirer falls back to
	// domain.DefaultProposalExpirationMins, not to this value.
	ProposalDefaultTTLMinutes int
	// MatcherPerShiftBudgetMS is MATCHER_PER_SHIFT_BUDGET_MS (default 5000):
	// the Matcher's per-shift candidate-load + score + persist budget.
	MatcherPerShiftBudgetMS int
	// ExpirerIntervalSeconds is EXPIRER_INTERVAL_SECONDS (default 60): how
	// often cmd/care-matcher's background sweep loop runs the Expirer.
	ExpirerIntervalSeconds int
	// MatchDefaultMinScore is MATCH_DEFAULT_MIN_SCORE (default 50).
	MatchDefaultMinScore int
	// MatchDefaultMaxProposals is MATCH_DEFAULT_MAX_PROPOSALS (default 5).
	MatchDefaultMaxProposals int
}

// Load loads configuration from .env files layered under the real process
// environment, the way the teacher's config.Load does: binary directory
// first, then cwd, both optional.
func Load() (*AppConfig, error) {
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("loaded configuration from binary directory")
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := getEnv("LOG_DIR", filepath.Join(dataPath, "logs"))
	cacheDir := getEnv("CACHE_DIR", filepath.Join(dataPath, "cache"))

	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("failed to create log directory")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("failed to create cache directory")
	}

	cfg := &AppConfig{
		DataPath:                  dataPath,
		LogDir:                    logDir,
		CacheDir:                  cacheDir,
		ProposalDefaultTTLMinutes: getEnvInt("PROPOSAL_DEFAULT_TTL_MINUTES", 120),
		MatcherPerShiftBudgetMS:   getEnvInt("MATCHER_PER_SHIFT_BUDGET_MS", 5000),
		ExpirerIntervalSeconds:    getEnvInt("EXPIRER_INTERVAL_SECONDS", 60),
		MatchDefaultMinScore:      getEnvInt("MATCH_DEFAULT_MIN_SCORE", 50),
		MatchDefaultMaxProposals:  getEnvInt("MATCH_DEFAULT_MAX_PROPOSALS", 5),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
