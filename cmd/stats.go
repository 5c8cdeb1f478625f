package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show precision statistics and routing state",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		stats := appInstance.Engine.GetPrecisionStatistics()
		fmt.Println("Precision")
		fmt.Printf("  overall:    %.3f (%d/%d)\n", stats.OverallPrecision, stats.CorrectOutcomes, stats.TotalOutcomes)
		fmt.Printf("  auto-place: %.3f (%d/%d)\n", stats.AutoPlacePrecision, stats.AutoPlaceCorrect, stats.AutoPlaceOutcomes)
		if stats.AutoPlaceOutcomes > 0 {
			if stats.MeetsTarget {
				color.New(color.FgGreen).Println("  auto-place precision meets target")
			} else {
				color.New(color.FgRed).Println("  auto-place precision below target")
			}
		}

		routing := appInstance.Engine.RoutingState(cmd.Context())
		fmt.Println("Routing")
		fmt.Printf("  mode:      %s\n", routing.Mode)
		fmt.Printf("  available: %s\n", strings.Join(routing.AvailableProviders, ", "))
		if routing.LastError != "" {
			fmt.Printf("  last error: %s\n", routing.LastError)
		}

		hits, misses := appInstance.Cache.Stats()
		fmt.Println("Embedding cache")
		fmt.Printf("  entries: %d  hits: %d  misses: %d\n", appInstance.Cache.Len(), hits, misses)
		fmt.Printf("Prototypes: %d  Patterns: %d\n", appInstance.Prototypes.Len(), appInstance.Patterns.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
