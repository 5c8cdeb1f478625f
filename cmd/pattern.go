package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Inspect and maintain learned correction patterns",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var patternListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned correction patterns (most-hit first)",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		patterns := appInstance.Patterns.All()
		if len(patterns) == 0 {
			fmt.Println("No corrections learned yet.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Fingerprint", "Corrected Label", "Original", "Hits", "Confidence"})
		for _, p := range patterns {
			fp := p.Fingerprint
			if len(fp) > 12 {
				fp = fp[:12]
			}
			table.Append([]string{
				fp,
				p.CorrectedLabel,
				p.OriginalLabel,
				strconv.FormatInt(p.HitCount, 10),
				fmt.Sprintf("%.2f", p.Confidence),
			})
		}
		table.Render()
		return nil
	},
}

var (
	patternPruneMinConfidence float64
	patternPruneMinHits       int64
)

var patternPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove rarely-hit low-confidence patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		removed := appInstance.Patterns.Prune(cmd.Context(), patternPruneMinConfidence, patternPruneMinHits)
		color.New(color.FgYellow).Printf("Pruned %d pattern(s)\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(patternCmd)
	patternCmd.AddCommand(patternListCmd, patternPruneCmd)
	patternPruneCmd.Flags().Float64Var(&patternPruneMinConfidence, "min-confidence", 0.3, "confidence threshold")
	patternPruneCmd.Flags().Int64Var(&patternPruneMinHits, "min-hits", 1, "hit count threshold")
}
