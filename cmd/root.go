package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brevera/stackmatch/internal/catalog"
	"github.com/brevera/stackmatch/internal/scoring"
)

const (
	app = "stackmatch"
)

type Config struct {
	CatalogFile string           `mapstructure:"catalog-file"`
	Scoring     *ScoringConfig   `mapstructure:"scoring"`
	Filtering   *FilteringConfig `mapstructure:"filtering"`
	Planner     *PlannerConfig   `mapstructure:"planner"`
	Postgres    *PostgresConfig  `mapstructure:"postgres"`
}

type ScoringConfig struct {
	// Weights overrides individual point values of the scoring model,
	// keyed by the weight names (base, segment, goal-max, ...).
	Weights map[string]int `mapstructure:"weights"`
}

type FilteringConfig struct {
	MinResults int `mapstructure:"min-results"`
}

type PlannerConfig struct {
	// Provider selects the generation backend: "dust" or "gemini".
	Provider             string         `mapstructure:"provider"`
	MaxAttempts          int            `mapstructure:"max-attempts"`
	TransportErrorBudget int            `mapstructure:"transport-error-budget"`
	Polling              *PollingConfig `mapstructure:"polling"`
	Dust                 *DustConfig    `mapstructure:"dust"`
	Gemini               *GeminiConfig  `mapstructure:"gemini"`
}

// PollingConfig overrides the backoff schedule. Zero values keep the
// defaults.
type PollingConfig struct {
	ShortInterval  time.Duration `mapstructure:"short-interval"`
	MediumInterval time.Duration `mapstructure:"medium-interval"`
	LongInterval   time.Duration `mapstructure:"long-interval"`
	ShortPhaseEnd  int           `mapstructure:"short-phase-end"`
	MediumPhaseEnd int           `mapstructure:"medium-phase-end"`
}

type DustConfig struct {
	BaseURL     string `mapstructure:"base-url"`
	WorkspaceID string `mapstructure:"workspace-id"`
	AgentID     string `mapstructure:"agent-id"`
	APIKey      string `mapstructure:"api-key"`
	APIKeyFile  string `mapstructure:"api-key-file"`
}

type GeminiConfig struct {
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "stackmatch compares marketing automation vendors and generates personalized marketing plans",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is stackmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// The config file is optional for the catalog commands; a parse error
	// in an existing file is still fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// buildWeights merges configured weight overrides into the defaults.
func buildWeights(cfg *Config) (scoring.Weights, error) {
	weights := scoring.DefaultWeights()
	if cfg == nil || cfg.Scoring == nil || len(cfg.Scoring.Weights) == 0 {
		return weights, nil
	}

	if err := mapstructure.Decode(cfg.Scoring.Weights, &weights); err != nil {
		return weights, err
	}
	return weights, nil
}

func loadCatalog(cfg *Config) (*catalog.Catalog, error) {
	if cfg != nil && cfg.CatalogFile != "" {
		return catalog.LoadFile(cfg.CatalogFile)
	}
	return catalog.Load()
}

func minResults(cfg *Config) int {
	if cfg != nil && cfg.Filtering != nil {
		return cfg.Filtering.MinResults
	}
	return 0
}
