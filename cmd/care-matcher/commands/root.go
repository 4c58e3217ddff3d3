package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mcs-mcp/internal/config"
	"mcs-mcp/internal/logging"
	"mcs-mcp/internal/matching/configstore"
	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/expirer"
	"mcs-mcp/internal/matching/history"
	"mcs-mcp/internal/matching/matcher"
	"mcs-mcp/internal/matching/store"
	"mcs-mcp/internal/mcpserver"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	port       *dataport.MemoryPort
	configs    *configstore.MemoryStore
	proposals  *store.MemoryStore
	histStore  *history.Store
	expirerJob *expirer.Expirer
	matcherSvc *matcher.Matcher
)

var rootCmd = &cobra.Command{
	Use:   "care-matcher",
	Short: "care-matcher is an MCP server that matches open home-care shifts to caregivers",
	Long: `A coordinator-facing MCP server that scores and ranks caregiver candidates for
open shifts, manages the assignment proposal lifecycle, and sweeps expired proposals.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}

		port = dataport.NewMemoryPort()
		configs = configstore.NewMemoryStore()
		proposals = store.NewMemoryStore()
		histStore = history.NewStore()

		if err := histStore.LoadAll(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("failed to load match history snapshot, starting empty")
		}
		if err := proposals.LoadSnapshot(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("failed to load proposal/shift snapshot, starting empty")
		}
		if err := port.Load(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("failed to load caregiver/visit snapshot, starting empty")
		}

		expirerJob = expirer.New(proposals, configs, histStore)
		matcherSvc = matcher.New(port, configs, proposals, histStore, matcher.NoopSink{})
		if cfg.MatcherPerShiftBudgetMS > 0 {
			matcherSvc.PerShiftBudget = time.Duration(cfg.MatcherPerShiftBudgetMS) * time.Millisecond
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("care-matcher starting")
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go runExpirySweeper(ctx)

		log.Info().Msg("MCP server starting stdio loop")
		srv := mcpserver.New(matcherSvc, expirerJob, proposals, histStore)
		if err := srv.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("MCP server stopped with error")
		}

		if err := proposals.SaveSnapshot(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("failed to save proposal/shift snapshot on shutdown")
		}
		if err := histStore.Save(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("failed to save match history snapshot on shutdown")
		}
		if err := port.Save(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("failed to save caregiver/visit snapshot on shutdown")
		}
	},
}

// runExpirySweeper runs the proposal expiry sweep on the configured
// interval until ctx is cancelled, the way the teacher's background workers
// ticked on a fixed interval for the life of the process.
func runExpirySweeper(ctx context.Context) {
	interval := time.Duration(cfg.ExpirerIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := expirerJob.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("proposal expiry sweep failed")
				continue
			}
			if count > 0 {
				log.Info().Int("expired", count).Msg("proposal expiry sweep completed")
			}
		}
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(docsCmd)
}
