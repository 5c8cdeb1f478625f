package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	categorizeProfile string
	categorizeDensity float64
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize <path>",
	Short: "Categorize a file through the full decision pipeline",
	Long: `Runs one file through pattern memory, the provider cascade and the
calibrated confidence decision, printing the chosen category and outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		req, err := requestForPath(args[0])
		if err != nil {
			return err
		}
		req.Profile = categorizeProfile
		if cmd.Flags().Changed("density") {
			d := categorizeDensity
			req.ClusterDensity = &d
		}

		result, err := appInstance.Engine.Categorize(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("categorization failed: %w", err)
		}

		color.New(color.Bold).Printf("%s\n", result.CategoryPath)
		fmt.Printf("Confidence: %.2f  Outcome: %s  Provider: %s\n",
			result.Confidence, result.Outcome, result.Provider)
		if result.EscalatedFrom != "" {
			fmt.Printf("Escalated from: %s\n", result.EscalatedFrom)
		}
		if result.Rationale != "" {
			fmt.Printf("Rationale: %s\n", result.Rationale)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categorizeCmd)
	categorizeCmd.Flags().StringVar(&categorizeProfile, "profile", "automatic",
		"preference profile: automatic, local-first, cloud-first, local-only")
	categorizeCmd.Flags().Float64Var(&categorizeDensity, "density", 0.5, "cluster density hint (0..1)")
}
