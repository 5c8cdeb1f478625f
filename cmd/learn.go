package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var learnOriginal string

var learnCmd = &cobra.Command{
	Use:   "learn <path> <category>",
	Short: "Record a user correction",
	Long: `Records that the given file belongs to the given category. The
correction becomes a permanent exact-match pattern (short-circuiting future
requests for identical content) and a confirmed prototype observation.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		req, err := requestForPath(args[0])
		if err != nil {
			return err
		}
		if err := appInstance.Engine.Learn(cmd.Context(), req, args[1], learnOriginal); err != nil {
			return fmt.Errorf("learn failed: %w", err)
		}
		fmt.Printf("Learned: %s -> %s\n", req.Signature.Filename, args[1])
		if req.Fingerprint == "" {
			fmt.Println("Note: file content was unreadable, so no exact-match pattern was stored.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(learnCmd)
	learnCmd.Flags().StringVar(&learnOriginal, "original", "", "the label the engine originally proposed")
}
