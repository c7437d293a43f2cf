package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/brevera/stackmatch/internal/catalog"
	"github.com/brevera/stackmatch/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var vendorsCmd = &cobra.Command{
	Use:   "vendors [id]",
	Short: "List catalog vendors, or show one vendor in full",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vendors(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(vendorsCmd)

	vendorsCmd.Flags().String("segment", "", "only list vendors targeting this segment: SMB, MM or ENT")
}

func vendors(cmd *cobra.Command, args []string) {
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

	if len(args) == 1 {
		vendor, err := cat.ByID(args[0])
		if err != nil {
			logger.Fatal("looking up the vendor", zap.Error(err), zap.String("id", args[0]))
		}

		pretty, err := json.MarshalIndent(vendor, "", "  ")
		if err != nil {
			logger.Fatal("rendering the vendor", zap.Error(err))
		}
		fmt.Println(string(pretty))
		return
	}

	list := cat.Vendors()
	if raw := cmd.Flag("segment").Value.String(); raw != "" {
		segment, err := catalog.ParseSegment(raw)
		if err != nil {
			logger.Fatal("parsing the segment", zap.Error(err))
		}
		list = cat.BySegment(segment)
	}

	for _, v := range list.Items {
		segments := make([]string, 0, len(v.TargetSegments))
		for _, s := range v.TargetSegments {
			segments = append(segments, string(s))
		}

		fmt.Printf("%-16s %-14s %-6s %-4s %.1f  %s\n",
			v.ID, strings.Join(segments, ","), v.Complexity, v.StartingPriceBucket,
			v.AverageRating(), v.Tagline,
		)
	}
}
