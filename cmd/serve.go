package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"curator/internal/apihandlers"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decision engine as an HTTP API server",
	Long: `Starts an HTTP server exposing categorize, score, classify, feedback
and observability endpoints for the UI layer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		// Background health probing only matters for a long-running process.
		appInstance.Orch.StartHealthLoop(cmd.Context())

		router := gin.Default()
		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			v1.POST("/categorize", apiHandler.CategorizeHandler)
			v1.POST("/score", apiHandler.ScoreHandler)
			v1.POST("/classify", apiHandler.ClassifyHandler)
			v1.POST("/feedback", apiHandler.FeedbackHandler)
			v1.GET("/stats", apiHandler.StatsHandler)
			v1.GET("/routing", apiHandler.RoutingHandler)
		}
		router.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		addr := serveAddr
		if addr == "" {
			addr = appInstance.Config.Serve.Addr
		}
		fmt.Printf("Listening on %s\n", addr)
		return router.Run(addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to config serve.addr)")
}
