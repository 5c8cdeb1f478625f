package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var prototypeCmd = &cobra.Command{
	Use:   "prototype",
	Short: "Inspect and maintain learned category prototypes",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var prototypeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all learned prototypes",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		protos := appInstance.Prototypes.All()
		if len(protos) == 0 {
			fmt.Println("No prototypes learned yet.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Category", "Confidence", "Samples", "Version", "Scope", "Updated"})
		for _, p := range protos {
			table.Append([]string{
				p.CategoryPath,
				fmt.Sprintf("%.2f", p.Confidence),
				strconv.Itoa(p.SampleCount),
				strconv.FormatInt(p.Version, 10),
				string(p.Scope),
				p.UpdatedAt.Format("2006-01-02 15:04"),
			})
		}
		table.Render()
		return nil
	},
}

var prototypeLinkCmd = &cobra.Command{
	Use:   "link <category> <folder>...",
	Short: "Share a category prototype across folders",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := appInstance.Prototypes.LinkFolders(cmd.Context(), args[1:], args[0]); err != nil {
			return fmt.Errorf("link failed: %w", err)
		}
		fmt.Printf("Linked %d folder(s) to %q\n", len(args)-1, args[0])
		return nil
	},
}

var prototypeUnlinkCmd = &cobra.Command{
	Use:   "unlink <category> <folder>",
	Short: "Remove a folder from a shared category prototype",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if err := appInstance.Prototypes.UnlinkFolder(cmd.Context(), args[1], args[0]); err != nil {
			return fmt.Errorf("unlink failed: %w", err)
		}
		fmt.Printf("Unlinked %q from %q\n", args[1], args[0])
		return nil
	},
}

var prototypeDecayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Apply time-based confidence decay now",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		changed := appInstance.Prototypes.ApplyConfidenceDecay(cmd.Context())
		fmt.Printf("Decayed confidence on %d prototype(s)\n", changed)
		return nil
	},
}

var (
	prototypePruneMinConfidence float64
	prototypePruneMinSamples    int
)

var prototypePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove weak prototypes (low confidence AND low sample count)",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		removed := appInstance.Prototypes.PruneWeak(cmd.Context(), prototypePruneMinConfidence, prototypePruneMinSamples)
		color.New(color.FgYellow).Printf("Pruned %d prototype(s)\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prototypeCmd)
	prototypeCmd.AddCommand(prototypeListCmd, prototypeLinkCmd, prototypeUnlinkCmd, prototypeDecayCmd, prototypePruneCmd)
	prototypePruneCmd.Flags().Float64Var(&prototypePruneMinConfidence, "min-confidence", 0.2, "confidence threshold")
	prototypePruneCmd.Flags().IntVar(&prototypePruneMinSamples, "min-samples", 3, "sample count threshold")
}
