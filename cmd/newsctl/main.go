// Command newsctl runs single scrape or enrichment jobs and checks provider connectivity.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stocknews/newsbot/internal/config"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/pipeline"
	"github.com/stocknews/newsbot/internal/sources"
	"github.com/stocknews/newsbot/internal/timeutil"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "newsctl",
	Short:         "Run stock news jobs once",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			logrus.Debug("No .env file found, using environment variables")
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		debug, _ := cmd.Flags().GetBool("debug")
		if debug || cfg.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	scrapeCmd.Flags().String("after", "", "publishTimeAfter, e.g. 2024-03-01T09:00:00 (KST when no zone is given)")
	scrapeCmd.Flags().String("limit", "", "items per provider (default 3)")
	scrapeCmd.Flags().Bool("enrich", false, "run an enrichment pass after scraping")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(providersCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every enabled provider and store the new items",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetString("after")
		limit, _ := cmd.Flags().GetString("limit")
		enrich, _ := cmd.Flags().GetBool("enrich")

		return withService(cmd.Context(), func(ctx context.Context, service *pipeline.Service) error {
			summary, err := service.RunScrape(ctx, pipeline.JobParams{PublishTimeAfter: after, Limit: limit})
			if err != nil {
				return err
			}
			printJSON(summary)

			if !enrich {
				return nil
			}
			enrichment, err := service.RunEnrichment(ctx)
			if err != nil {
				return err
			}
			printJSON(enrichment)
			return nil
		})
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich every pending item once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, service *pipeline.Service) error {
			summary, err := service.RunEnrichment(ctx)
			if err != nil {
				return err
			}
			printJSON(summary)
			return nil
		})
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Fetch one item from each provider to check connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		collector := metrics.New()
		registry, err := sources.NewRegistry(pipeline.Sources(cfg, collector)...)
		if err != nil {
			return err
		}
		since := time.Now().Add(-timeutil.DefaultLookback)

		for _, src := range registry.All() {
			provider := src.Supports()
			if !src.IsEnabled() {
				fmt.Printf("%-10s DISABLED (missing credentials)\n", provider)
				continue
			}

			items := src.Scrap(ctx, since, 1)
			if msg, failed := collector.Snapshot().LastProviderErrs[provider]; failed {
				fmt.Printf("%-10s ERROR %s\n", provider, msg)
				continue
			}
			if len(items) == 0 {
				fmt.Printf("%-10s OK (no items in the last %v)\n", provider, timeutil.DefaultLookback)
				continue
			}
			fmt.Printf("%-10s OK %q\n", provider, items[0].Original.Title)
		}
		return nil
	},
}

func withService(ctx context.Context, run func(context.Context, *pipeline.Service) error) error {
	backends, err := pipeline.OpenBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	service, err := pipeline.NewService(cfg, backends.Store, backends.Seen)
	if err != nil {
		return err
	}
	return run(ctx, service)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logrus.Errorf("Failed to encode output: %v", err)
		return
	}
	fmt.Println(string(data))
}
