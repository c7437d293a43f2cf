package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/brevera/stackmatch/internal/catalog"
	"github.com/brevera/stackmatch/internal/filtering"
	"github.com/brevera/stackmatch/internal/logger"
	"github.com/brevera/stackmatch/internal/scoring"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptDetails    = "Show vendor details"
	PromptDumpToFile = "Dump recommendations to file"
	PromptExit       = "Exit"
	PromptBack       = "back"
)

var errExit = errors.New("exit requested")

var recommendPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptDetails, PromptDumpToFile, PromptExit},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank marketing automation vendors for a company profile",
	Run: func(cmd *cobra.Command, _ []string) {
		recommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("size", "s", "", "company size: SMB, MM or ENT")
	recommendCmd.Flags().StringP("goal", "g", "", "primary goal: Acquisition, Activation, Retention, Omnichannel or CRM")
	recommendCmd.Flags().StringP("industry", "i", "", "industry (default is General, meaning no preference)")
	recommendCmd.Flags().String("search", "", "free-text search over vendor name, tagline and description")
	recommendCmd.Flags().String("sort", string(filtering.OrderRecommended), "sort order: recommended, rating, complexity or name")
	recommendCmd.Flags().BoolP("auto-approve", "y", false, "print the ranking and exit without the interactive prompt")

	recommendCmd.Flags().Bool("advanced", false, "apply the advanced filter flags below")
	recommendCmd.Flags().StringSlice("channels", nil, "required channels, e.g. email,sms")
	recommendCmd.Flags().StringSlice("integrations", nil, "required native integrations, e.g. shopify")
	recommendCmd.Flags().String("budget-sensitivity", "", "budget sensitivity: low, medium or high")
	recommendCmd.Flags().Bool("governance", false, "require enterprise governance signals")
	recommendCmd.Flags().String("implementation-tolerance", "", "implementation tolerance: low, medium or high")
}

func recommend(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	cat, err := loadCatalog(config)
	if err != nil {
		logger.Fatal("loading the vendor catalog", zap.Error(err))
	}

	logger.Info("loaded the vendor catalog", zap.Int("count", cat.Len()))

	profile, err := resolveProfile(cmd)
	if err != nil {
		logger.Fatal("building the company profile", zap.Error(err))
	}

	advanced, err := resolveAdvanced(cmd)
	if err != nil {
		logger.Fatal("building the advanced filters", zap.Error(err))
	}

	weights, err := buildWeights(config)
	if err != nil {
		logger.Fatal("applying scoring weight overrides", zap.Error(err))
	}
	engine := scoring.NewEngine(weights)

	order, err := filtering.ParseOrder(cmd.Flag("sort").Value.String())
	if err != nil {
		logger.Fatal("parsing the sort order", zap.Error(err))
	}
	search := cmd.Flag("search").Value.String()

	pipeline := filtering.NewPipeline(minResults(config), logger)
	result := pipeline.FilterAndSort(cat.Vendors(), profile, advanced, search, order, engine)

	if result.Relaxed {
		logger.Info("no full match for all criteria, showing the closest alternatives",
			zap.Int("relaxation_level", result.RelaxationLevel),
		)
	}
	logger.Debug("final candidate list", zap.Strings("vendors", result.Vendors.Names()))

	printRanking(result.Vendors, engine, profile, advanced, order)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	for {
		_, action, err := recommendPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleRecommendAction(action, result.Vendors, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleRecommendAction(action string, vendors *catalog.Vendors, logger *zap.Logger) error {
	switch action {
	case PromptDetails:
		return showDetails(vendors)
	case PromptDumpToFile:
		filename, err := vendors.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump recommendations to file: %w", err)
		}
		logger.Info("dumping recommendations to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showDetails(vendors *catalog.Vendors) error {
	items := make([]string, 0, vendors.Len())
	for _, v := range vendors.Items {
		items = append(items, fmt.Sprintf("%s (%s)", v.Name, v.ID))
	}

	vendorPrompt := promptui.Select{
		Label: "Choose a vendor and press ENTER",
		Items: append(items, PromptBack),
	}

	_, selected, err := vendorPrompt.Run()
	if err != nil {
		return err
	}

	if selected == PromptBack {
		return nil
	}

	id := strings.TrimSuffix(selected[strings.LastIndex(selected, "(")+1:], ")")
	vendor := vendors.FindByID(id)
	if vendor == nil {
		return fmt.Errorf("there is no such vendor id %s", id)
	}

	pretty, err := json.MarshalIndent(vendor, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))

	return nil
}

func printRanking(vendors *catalog.Vendors, engine *scoring.Engine, profile catalog.UserProfile, advanced *catalog.AdvancedFilters, order filtering.Order) {
	for i, vendor := range vendors.Items {
		score := engine.Score(vendor, profile, advanced)

		line := fmt.Sprintf("%2d. %-16s %3d  %-6s %-4s",
			i+1, vendor.Name, score.Score, vendor.Complexity, vendor.StartingPriceBucket,
		)
		if len(score.Reasons) > 0 {
			line += "  " + strings.Join(score.Reasons, "; ")
		}
		fmt.Println(line)
	}

	if order != filtering.OrderRecommended {
		fmt.Printf("(sorted by %s)\n", order)
	}
}

func resolveProfile(cmd *cobra.Command) (catalog.UserProfile, error) {
	var profile catalog.UserProfile

	size := cmd.Flag("size").Value.String()
	if size == "" {
		picked, err := promptSelect("Company size", []string{
			string(catalog.SegmentSMB), string(catalog.SegmentMM), string(catalog.SegmentENT),
		})
		if err != nil {
			return profile, err
		}
		size = picked
	}

	segment, err := catalog.ParseSegment(size)
	if err != nil {
		return profile, err
	}

	goal := cmd.Flag("goal").Value.String()
	if goal == "" {
		picked, err := promptSelect("Primary goal", []string{
			string(catalog.GoalAcquisition), string(catalog.GoalActivation),
			string(catalog.GoalRetention), string(catalog.GoalOmnichannel), string(catalog.GoalCRM),
		})
		if err != nil {
			return profile, err
		}
		goal = picked
	}

	primaryGoal, err := catalog.ParseGoal(goal)
	if err != nil {
		return profile, err
	}

	industry := cmd.Flag("industry").Value.String()
	if industry == "" {
		industry = catalog.IndustryGeneral
	}

	return catalog.UserProfile{
		CompanySize: segment,
		Industry:    industry,
		PrimaryGoal: primaryGoal,
	}, nil
}

func resolveAdvanced(cmd *cobra.Command) (*catalog.AdvancedFilters, error) {
	if cmd.Flag("advanced").Value.String() != "true" {
		return nil, nil
	}

	channels, err := cmd.Flags().GetStringSlice("channels")
	if err != nil {
		return nil, err
	}
	integrations, err := cmd.Flags().GetStringSlice("integrations")
	if err != nil {
		return nil, err
	}

	budget, err := catalog.ParseSensitivity(cmd.Flag("budget-sensitivity").Value.String())
	if err != nil {
		return nil, err
	}
	tolerance, err := catalog.ParseSensitivity(cmd.Flag("implementation-tolerance").Value.String())
	if err != nil {
		return nil, err
	}

	return &catalog.AdvancedFilters{
		Channels:                channels,
		Integrations:            integrations,
		BudgetSensitivity:       budget,
		Governance:              cmd.Flag("governance").Value.String() == "true",
		ImplementationTolerance: tolerance,
	}, nil
}

func promptSelect(label string, items []string) (string, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
	}

	_, selected, err := prompt.Run()
	return selected, err
}
