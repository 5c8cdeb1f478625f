package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scoreDensity float64

var scoreCmd = &cobra.Command{
	Use:   "score <path>",
	Short: "Show the calibrated confidence breakdown for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		req, err := requestForPath(args[0])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("density") {
			d := scoreDensity
			req.ClusterDensity = &d
		}

		result, err := appInstance.Engine.Score(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("scoring failed: %w", err)
		}

		b := result.Breakdown
		fmt.Printf("Suggested category: %s\n", orNone(result.CategoryPath))
		fmt.Printf("Calibrated score:   %.3f  ->  %s\n", result.Confidence, result.Outcome)
		fmt.Printf("  prototype similarity: %.3f\n", b.PrototypeSimilarity)
		fmt.Printf("  cluster density:      %.3f\n", b.ClusterDensity)
		fmt.Printf("  extension bonus:      %.3f\n", b.ExtensionBonus)
		fmt.Printf("  parent folder bonus:  %.3f\n", b.ParentFolderBonus)
		fmt.Println(result.Explanation)
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().Float64Var(&scoreDensity, "density", 0.5, "cluster density hint (0..1)")
}
