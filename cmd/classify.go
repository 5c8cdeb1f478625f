package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/embedder"
)

var classifyMinConfidence float64

var classifyCmd = &cobra.Command{
	Use:   "classify <path>",
	Short: "Classify a file against learned prototypes only",
	Long: `Prototype-only classification: best cosine match against the learned
category prototypes, confidence = prototype confidence x similarity. No
providers are invoked.`,
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
		emb, err := appInstance.Embedder.Embed(cmd.Context(), embedder.SignatureText(req.Signature))
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}

		cls, err := appInstance.Engine.Classify(cmd.Context(), emb, classifyMinConfidence)
		if err != nil {
			return err
		}
		if cls == nil {
			fmt.Println("No prototype match above the confidence floor.")
			return nil
		}
		fmt.Printf("%s (similarity %.2f, confidence %.2f)\n", cls.CategoryPath, cls.Similarity, cls.Confidence)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().Float64Var(&classifyMinConfidence, "min-confidence", 0.0, "minimum adjusted confidence")
}
