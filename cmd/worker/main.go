package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/reddit-agent/internal/agent/analytics"
	"github.com/reddit-agent/internal/agent/monitor"
	"github.com/reddit-agent/internal/agent/publisher"
	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/notify"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/sentiment"
	"github.com/reddit-agent/internal/storage"
	"github.com/reddit-agent/internal/storage/gormdb"
	"github.com/reddit-agent/internal/tokens"
	"github.com/reddit-agent/internal/vault"
	"github.com/reddit-agent/pkg/logger"
	"github.com/reddit-agent/pkg/ratelimit"
)

// shutdownGrace bounds how long an in-flight cycle may keep running
// after a stop signal before its context is cancelled
const shutdownGrace = 30 * time.Second

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reddit-worker",
		Short: "Background worker for the Reddit agent",
		Long: `Runs the publish scheduler, mention monitor and analytics refresher
as timer-driven background jobs. Exactly one worker must be active per
deployment: there is no distributed lock, and two workers can
double-publish the same scheduled post.`,
		RunE: runWorker,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting Reddit agent worker")

	// Initialize storage
	repo, err = gormdb.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Start health check server
	go startHealthServer()

	// Credential vault; key material already validated above
	key, _ := cfg.Vault.KeyBytes()
	iv, _ := cfg.Vault.IVBytes()
	credVault, err := vault.New(key, iv)
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}

	// Reddit client and token plumbing
	limiter := ratelimit.NewDefaultLimiter()
	redditClient := reddit.NewClient(cfg.Reddit, limiter, log)
	auth := reddit.NewAuthenticator(cfg.Reddit, log)
	tokenManager := tokens.NewManager(credVault, auth, repo, log)

	// Notification channel
	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		redisNotifier, err := notify.NewRedis(cfg.Notify, log)
		if err != nil {
			return fmt.Errorf("failed to initialize notifier: %w", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
		log.Info().Str("addr", cfg.Notify.RedisAddr).Msg("Redis notifications enabled")
	}

	// Create agents
	publishAgent := publisher.NewAgent(redditClient, tokenManager, repo, log)
	monitorAgent := monitor.NewAgent(redditClient, auth, repo, sentiment.NewLexicon(), notifier, cfg.Monitor, log)
	analyticsAgent := analytics.NewAgent(redditClient, auth, repo, cfg.Analytics, log)

	// Cycles run with this context; cancelled only after the grace
	// period so an in-flight cycle can finish its current item
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create cron scheduler
	c := cron.New(cron.WithLogger(cronLogger{log}))

	_, err = c.AddFunc(cfg.Scheduler.PublishCron, func() {
		result, err := publishAgent.RunCycle(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Publish cycle failed")
			return
		}
		if result.Due > 0 {
			log.Info().
				Int("published", result.Published).
				Int("failed", result.Failed).
				Msg("Scheduled publish completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule publish job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.PublishCron).Msg("Publish job scheduled")

	_, err = c.AddFunc(cfg.Scheduler.MentionsCron, func() {
		result, err := monitorAgent.RunCycle(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Mention cycle failed")
			return
		}
		if !result.Skipped {
			log.Info().
				Int("keywords_scanned", result.KeywordsScanned).
				Int("mentions_found", result.MentionsFound).
				Int("errors", len(result.Errors)).
				Msg("Scheduled mention scan completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule mention job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.MentionsCron).Msg("Mention job scheduled")

	_, err = c.AddFunc(cfg.Scheduler.AnalyticsCron, func() {
		result, err := analyticsAgent.RunCycle(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Analytics cycle failed")
			return
		}
		if !result.Skipped {
			log.Info().
				Int("posts", result.Posts).
				Int("refreshed", result.Refreshed).
				Msg("Scheduled analytics refresh completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule analytics job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.AnalyticsCron).Msg("Analytics job scheduled")

	// Start scheduler
	c.Start()
	log.Info().Msg("Worker started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down worker")

	// Stop accepting new cycle invocations, then give in-flight cycles
	// a grace period before cancelling their context
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		log.Info().Msg("All cycles finished")
	case <-time.After(shutdownGrace):
		log.Warn().Msg("Grace period elapsed, cancelling in-flight cycles")
		cancel()
		<-stopCtx.Done()
	}

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Reddit Agent Worker"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
