package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/config"
)

type contextKey string

const appKey contextKey = "curatorApp"

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Curator adaptive file categorization engine",
	Long: `Curator is the decision engine behind automatic file categorization:
a confidence-calibrated classifier over learned category prototypes, an
exact-match correction memory, and a resilient cascade across on-device,
local-server and cloud categorization providers.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appInstance, err := GetAppFromContext(cmd.Context()); err == nil {
			appInstance.Close()
		}
	},
}

// GetAppFromContext pulls the initialized app out of the command context.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
