package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	applog "github.com/brevera/stackmatch/internal/logger"
	"github.com/brevera/stackmatch/internal/planner"
	"github.com/brevera/stackmatch/internal/planner/dust"
	"github.com/brevera/stackmatch/internal/planner/gemini"
	"github.com/brevera/stackmatch/internal/secrets"
	"github.com/brevera/stackmatch/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a personalized marketing plan for a company domain",
	Run: func(cmd *cobra.Command, _ []string) {
		plan(cmd)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("domain", "", "company website domain, e.g. example.com")
	planCmd.Flags().String("language", "en", "plan language")
	planCmd.Flags().StringP("size", "s", "", "company size: SMB, MM or ENT")
	planCmd.Flags().StringP("goal", "g", "", "primary goal: Acquisition, Activation, Retention, Omnichannel or CRM")
	planCmd.Flags().StringP("industry", "i", "", "industry (default is General)")
	planCmd.Flags().Bool("refresh", false, "regenerate even if a cached plan exists")

	planCmd.MarkFlagRequired("domain")
}

func plan(cmd *cobra.Command) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := applog.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil || config.Planner == nil {
		logger.Fatal("config is required",
			zap.String("hint", "set the planner section in the configuration file"),
		)
	}

	domain := strings.TrimSpace(cmd.Flag("domain").Value.String())
	language := cmd.Flag("language").Value.String()

	db := openStore(ctx, config, logger)
	if db != nil {
		defer db.Close()
	}

	if db != nil && cmd.Flag("refresh").Value.String() != "true" {
		cached, err := db.LookupPlan(ctx, domain, language)
		if err == nil {
			logger.Info("found a cached plan", zap.String("domain", domain))
			printPlan(cached)
			return
		}
		if !errors.Is(err, store.ErrPlanNotFound) {
			logger.Warn("looking up a cached plan", zap.Error(err))
		}
	}

	service, err := newJobService(ctx, config.Planner, logger)
	if err != nil {
		logger.Fatal("building the plan generation service", zap.Error(err))
	}

	var planStore planner.PlanStore
	if db != nil {
		planStore = db
	}

	controller := planner.New(service, planner.Options{
		Store:  planStore,
		Logger: logger,
		Config: plannerConfig(config.Planner),
	})

	// Ctrl-C cancels the run instead of killing the process outright.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		controller.Cancel()
		cancel()
	}()

	req := planner.Request{
		Domain:      domain,
		Language:    language,
		CompanySize: cmd.Flag("size").Value.String(),
		Industry:    cmd.Flag("industry").Value.String(),
		PrimaryGoal: cmd.Flag("goal").Value.String(),
	}

	logger.Info("generating a marketing plan",
		zap.String("domain", domain),
		zap.String("language", language),
	)

	result, err := controller.Run(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, planner.ErrCancelled):
			logger.Info("exiting", zap.String("reason", "generation cancelled"))
			return
		case errors.Is(err, planner.ErrTimedOut):
			logger.Fatal("generation timed out", zap.Int("polls", controller.PollCount()))
		default:
			logger.Fatal("generation failed", zap.Error(err))
		}
	}

	printPlan(result)
}

// openStore opens the plan cache when a DSN is configured. The cache is
// optional: any failure is logged and the command continues without it.
func openStore(ctx context.Context, config *Config, logger *zap.Logger) *store.DB {
	if config.Postgres == nil || config.Postgres.DSN == "" {
		return nil
	}

	db, err := store.Open(ctx, config.Postgres.DSN)
	if err != nil {
		logger.Warn("plan cache unavailable, continuing without it", zap.Error(err))
		return nil
	}

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Warn("preparing the plan cache schema", zap.Error(err))
		db.Close()
		return nil
	}

	return db
}

func newJobService(ctx context.Context, cfg *PlannerConfig, logger *zap.Logger) (planner.JobService, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", "dust":
		if cfg.Dust == nil {
			return nil, errors.New("dust configuration is required under planner.dust")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "dust api key",
			Value: cfg.Dust.APIKey,
			File:  cfg.Dust.APIKeyFile,
			Env:   "DUST_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set planner.dust.api-key-file or DUST_API_KEY)", err)
		}

		return dust.New(logger, dust.Config{
			BaseURL:     cfg.Dust.BaseURL,
			WorkspaceID: cfg.Dust.WorkspaceID,
			AgentID:     cfg.Dust.AgentID,
			APIKey:      apiKey,
		})
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini configuration is required under planner.gemini")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set planner.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}

		genLogger := applog.WithProviderFields(logger, provider, generator.Model())

		return gemini.NewProvider(generator, genLogger), nil
	default:
		return nil, fmt.Errorf("unsupported plan provider: %s", cfg.Provider)
	}
}

func plannerConfig(cfg *PlannerConfig) planner.Config {
	out := planner.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		out.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.TransportErrorBudget > 0 {
		out.TransportErrorBudget = cfg.TransportErrorBudget
	}

	if polling := cfg.Polling; polling != nil {
		if polling.ShortInterval > 0 {
			out.Schedule.Short = polling.ShortInterval
		}
		if polling.MediumInterval > 0 {
			out.Schedule.Medium = polling.MediumInterval
		}
		if polling.LongInterval > 0 {
			out.Schedule.Long = polling.LongInterval
		}
		if polling.ShortPhaseEnd > 0 {
			out.Schedule.ShortPhaseEnd = polling.ShortPhaseEnd
		}
		if polling.MediumPhaseEnd > 0 {
			out.Schedule.MediumPhaseEnd = polling.MediumPhaseEnd
		}
	}
	return out
}

func printPlan(plan *planner.Plan) {
	fmt.Printf("# %s\n", plan.Title)
	if plan.Summary != "" {
		fmt.Printf("\n%s\n", plan.Summary)
	}

	for _, section := range plan.Sections {
		fmt.Printf("\n## %s\n", section.Heading)
		for _, action := range section.Actions {
			fmt.Printf("- %s\n", action)
		}
	}

	if len(plan.Channels) > 0 {
		fmt.Printf("\nChannels: %s\n", strings.Join(plan.Channels, ", "))
	}

	if viper.GetBool("debug") {
		pretty, _ := json.MarshalIndent(plan, "", "  ")
		fmt.Printf("\n%s\n", pretty)
	}
}
