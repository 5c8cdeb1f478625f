package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/tasks"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background maintenance worker",
	Long: `Starts the Asynq worker that runs periodic maintenance sweeps:
prototype confidence decay, prototype/pattern pruning and embedding cache
eviction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		if err := runWorker(appInstance); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	mux := asynq.NewServeMux()
	handler := &tasks.Handler{
		Prototypes: appInstance.Prototypes,
		Patterns:   appInstance.Patterns,
		Cache:      appInstance.Cache,
	}
	handler.Register(mux)

	// Periodic sweep enqueue: decay daily pressure is approximated by the
	// configured interval; prune thresholds come from the prototype config.
	client := asynq.NewClient(redisOpts)
	defer client.Close()

	stopTicker := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Worker.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				enqueueSweeps(client, appInstance)
			case <-stopTicker:
				return
			}
		}
	}()

	if err := srv.Start(mux); err != nil {
		close(stopTicker)
		return fmt.Errorf("could not start worker server: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	close(stopTicker)
	srv.Shutdown()
	return nil
}

func enqueueSweeps(client *asynq.Client, appInstance *app.App) {
	if _, err := client.Enqueue(tasks.NewPrototypeDecayTask()); err != nil {
		log.Warnf("Enqueue decay sweep failed: %v", err)
	}
	if t, err := tasks.NewPrototypePruneTask(0.2, 3); err == nil {
		if _, err := client.Enqueue(t); err != nil {
			log.Warnf("Enqueue prototype prune failed: %v", err)
		}
	}
	if t, err := tasks.NewPatternPruneTask(0.3, 1); err == nil {
		if _, err := client.Enqueue(t); err != nil {
			log.Warnf("Enqueue pattern prune failed: %v", err)
		}
	}
	if _, err := client.Enqueue(tasks.NewCachePruneTask()); err != nil {
		log.Warnf("Enqueue cache prune failed: %v", err)
	}
}
