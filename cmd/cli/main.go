package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/reddit-agent/internal/agent/analytics"
	"github.com/reddit-agent/internal/agent/monitor"
	"github.com/reddit-agent/internal/agent/publisher"
	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/models"
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

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository

	publishAgent   *publisher.Agent
	monitorAgent   *monitor.Agent
	analyticsAgent *analytics.Agent
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reddit-agent",
		Short: "Operational CLI for the Reddit agent",
		Long: `Inspection and manual-trigger commands for the Reddit agent's
background jobs. Each trigger runs exactly one cycle synchronously and
reports the same outcomes as the timer-driven path.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(mentionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
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

	// Initialize storage
	repo, err = gormdb.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Vault; key material already validated
	key, _ := cfg.Vault.KeyBytes()
	iv, _ := cfg.Vault.IVBytes()
	credVault, err := vault.New(key, iv)
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}

	limiter := ratelimit.NewDefaultLimiter()
	redditClient := reddit.NewClient(cfg.Reddit, limiter, log)
	auth := reddit.NewAuthenticator(cfg.Reddit, log)
	tokenManager := tokens.NewManager(credVault, auth, repo, log)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		redisNotifier, err := notify.NewRedis(cfg.Notify, log)
		if err != nil {
			return fmt.Errorf("failed to initialize notifier: %w", err)
		}
		notifier = redisNotifier
	}

	publishAgent = publisher.NewAgent(redditClient, tokenManager, repo, log)
	monitorAgent = monitor.NewAgent(redditClient, auth, repo, sentiment.NewLexicon(), notifier, cfg.Monitor, log)
	analyticsAgent = analytics.NewAgent(redditClient, auth, repo, cfg.Analytics, log)

	return nil
}

// runCmd triggers one synchronous cycle of a background job
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [publish|mentions|analytics]",
		Short: "Run one job cycle synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			switch args[0] {
			case "publish":
				result, err := publishAgent.RunCycle(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Due: %d  Published: %d  Failed: %d  (%s)\n",
					result.Due, result.Published, result.Failed, result.Duration.Round(time.Millisecond))
				for _, e := range result.Errors {
					fmt.Printf("  error: %v\n", e)
				}

			case "mentions":
				result, err := monitorAgent.RunCycle(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Keywords: %d  New mentions: %d  Duplicates: %d  (%s)\n",
					result.KeywordsScanned, result.MentionsFound, result.Duplicates, result.Duration.Round(time.Millisecond))
				for _, e := range result.Errors {
					fmt.Printf("  error: %v\n", e)
				}

			case "analytics":
				result, err := analyticsAgent.RunCycle(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Posts: %d  Refreshed: %d  (%s)\n",
					result.Posts, result.Refreshed, result.Duration.Round(time.Millisecond))

			default:
				return fmt.Errorf("unknown job %q (expected publish, mentions or analytics)", args[0])
			}
			return nil
		},
	}
	return cmd
}

// postsCmd lists scheduled posts
func postsCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List scheduled posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultPostFilter()
			filter.Limit = limit
			if status != "" {
				s := models.PostStatus(status)
				filter.Status = &s
			}

			posts, err := repo.ListPosts(context.Background(), filter)
			if err != nil {
				return err
			}

			if len(posts) == 0 {
				fmt.Println("No posts found")
				return nil
			}

			for _, p := range posts {
				line := fmt.Sprintf("#%d [%s] r/%s %q", p.ID, p.Status, p.Subreddit, p.Title)
				if p.ScheduledAt != nil {
					line += " scheduled=" + p.ScheduledAt.Format(time.RFC3339)
				}
				if p.Status == models.PostStatusPosted {
					line += " " + p.RedditURL
				}
				if p.LastError != "" {
					line += " error=" + p.LastError
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, scheduled, posted, error)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum posts to list")
	return cmd
}

// keywordsCmd lists and creates tracked keywords
func keywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage tracked keywords",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all tracked keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords, err := repo.ListKeywords(context.Background())
			if err != nil {
				return err
			}
			for _, kw := range keywords {
				scanned := "never"
				if kw.LastScannedAt != nil {
					scanned = kw.LastScannedAt.Format(time.RFC3339)
				}
				fmt.Printf("#%d tenant=%d %q active=%t last_scanned=%s\n",
					kw.ID, kw.TenantID, kw.Term, kw.Active, scanned)
			}
			return nil
		},
	})

	addCmd := &cobra.Command{
		Use:   "add <term>",
		Short: "Track a new keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := cmd.Flags().GetUint("tenant")
			if err != nil {
				return err
			}
			kw := &models.TrackedKeyword{
				TenantID: tenant,
				Term:     args[0],
				Active:   true,
			}
			if err := repo.CreateKeyword(context.Background(), kw); err != nil {
				return err
			}
			fmt.Printf("Tracking %q for tenant %d (#%d)\n", kw.Term, kw.TenantID, kw.ID)
			return nil
		},
	}
	addCmd.Flags().Uint("tenant", 1, "owning tenant id")
	cmd.AddCommand(addCmd)

	return cmd
}

// mentionsCmd lists discovered mentions
func mentionsCmd() *cobra.Command {
	var tenant string
	var limit int

	cmd := &cobra.Command{
		Use:   "mentions",
		Short: "List discovered mentions",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultMentionFilter()
			filter.Limit = limit
			if tenant != "" {
				id, err := strconv.ParseUint(tenant, 10, 32)
				if err != nil {
					return fmt.Errorf("invalid tenant id %q", tenant)
				}
				tid := uint(id)
				filter.TenantID = &tid
			}

			mentions, err := repo.ListMentions(context.Background(), filter)
			if err != nil {
				return err
			}

			if len(mentions) == 0 {
				fmt.Println("No mentions found")
				return nil
			}

			for _, m := range mentions {
				fmt.Printf("#%d [%s] r/%s by %s %s\n  %s\n",
					m.ID, m.Sentiment, m.Subreddit, m.Author,
					m.FoundAt.Format(time.RFC3339), m.SourceURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "filter by tenant id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum mentions to list")
	return cmd
}
