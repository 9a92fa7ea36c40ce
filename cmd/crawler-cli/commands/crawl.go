package commands

import (
	"fmt"
	"log/slog"
	"time"
	"tuoitre-crawler/lib/configutil"
	"tuoitre-crawler/lib/mediastore"
	"tuoitre-crawler/lib/restyutil"
	"tuoitre-crawler/lib/scrapers/tuoitre/article"
	"tuoitre-crawler/lib/scrapers/tuoitre/comments"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"
	"tuoitre-crawler/lib/scrapers/tuoitre/listing"
	"tuoitre-crawler/lib/serviceutil"
	"tuoitre-crawler/lib/telemetry"
	"tuoitre-crawler/services/crawler"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

var defaultCategories = []string{
	"https://tuoitre.vn/thoi-su.htm",
	"https://tuoitre.vn/the-gioi.htm",
	"https://tuoitre.vn/phap-luat.htm",
}

// Config mirrors the crawl flags, an optional config.json5 provides
// defaults that explicit flags still override.
type Config struct {
	Categories        []string `json:"categories"`
	PostsPerCategory  int      `json:"postsPerCategory"`
	Format            string   `json:"format"`
	OutputDir         string   `json:"outputDir"`
	CommentApiBaseUrl string   `json:"commentApiBaseUrl"`
	ShowBrowser       bool     `json:"showBrowser"`
	DebugHttp         bool     `json:"debugHttp"`
}

var crawlFlags struct {
	categories       *[]string
	postsPerCategory *int
	format           *string
	output           *string
	showBrowser      *bool
	debugHttp        *bool
}

func init() {
	crawlFlags.categories = crawlCmd.Flags().StringSliceP(
		"categories", "c", defaultCategories, "Category URLs to crawl.")
	crawlFlags.postsPerCategory = crawlCmd.Flags().IntP(
		"posts-per-category", "n", 35, "Number of posts to collect per category.")
	crawlFlags.format = crawlCmd.Flags().StringP(
		"format", "f", "json", "Output format, json or yaml.")
	crawlFlags.output = crawlCmd.Flags().StringP(
		"output", "o", "output", "Directory to write data, images and audio to.")
	crawlFlags.showBrowser = crawlCmd.Flags().Bool(
		"show-browser", false, "Run the category browser with a visible window.")
	crawlFlags.debugHttp = crawlCmd.Flags().Bool(
		"debug-http", false, "Dump request/response pairs to .dev/resty/crawler.")
	rootCmd.AddCommand(crawlCmd)
}

func loadConfig(cmd *cobra.Command) Config {
	cfg, found, err := configutil.ReadOptional[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config.json5", err)
	}
	if found {
		slog.Debug("loaded config.json5")
	}

	if cmd.Flags().Changed("categories") || len(cfg.Categories) == 0 {
		cfg.Categories = *crawlFlags.categories
	}
	if cmd.Flags().Changed("posts-per-category") || cfg.PostsPerCategory == 0 {
		cfg.PostsPerCategory = *crawlFlags.postsPerCategory
	}
	if cmd.Flags().Changed("format") || cfg.Format == "" {
		cfg.Format = *crawlFlags.format
	}
	if cmd.Flags().Changed("output") || cfg.OutputDir == "" {
		cfg.OutputDir = *crawlFlags.output
	}
	if cmd.Flags().Changed("show-browser") {
		cfg.ShowBrowser = *crawlFlags.showBrowser
	}
	if cmd.Flags().Changed("debug-http") {
		cfg.DebugHttp = *crawlFlags.debugHttp
	}
	return cfg
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [--categories <url,...>] [--posts-per-category <n>] [--format json|yaml]",
	Short: "Crawls the configured categories and writes one record file per post.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx)
		cfg := loadConfig(cmd)

		format, err := crawler.ParseFormat(cfg.Format)
		if err != nil {
			serviceutil.Fatal("invalid output format", err)
		}

		coreClient, err := core.NewClient(ctx, core.ClientOptions{
			BaseUrl:         "https://tuoitre.vn",
			RequestDelayMin: 1500 * time.Millisecond,
			RequestDelayMax: 3 * time.Second,
			LiveUserAgents:  true,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize tuoitre client", err)
		}
		if cfg.DebugHttp {
			coreClient.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/crawler"))
		}

		cacheDb, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
		if err != nil {
			serviceutil.Fatal("failed to open page cache", err)
		}
		defer cacheDb.Close()
		coreClient.SetPageCache(cacheDb, time.Hour)

		service := crawler.NewService(
			listing.NewLister(coreClient, listing.Options{Headless: !cfg.ShowBrowser}),
			article.NewClient(coreClient),
			comments.NewClient(coreClient, comments.Options{ApiBaseUrl: cfg.CommentApiBaseUrl}),
			mediastore.New(cfg.OutputDir, coreClient.Http),
			crawler.Options{
				Categories:       cfg.Categories,
				PostsPerCategory: cfg.PostsPerCategory,
				OutputDir:        cfg.OutputDir,
				Format:           format,
			},
		)

		t1 := time.Now()
		stats, err := service.Run(ctx)
		if err != nil {
			serviceutil.Fatal("crawl aborted", err)
		}
		slog.Info("crawl finished", "seconds", time.Since(t1).Seconds())

		fmt.Println(crawler.RenderSummary(stats))
	},
}
