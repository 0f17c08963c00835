// Package cmd defines and implements the CLI commands for the scdx executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/scdx/internal/app"
	"github.com/JakeFAU/scdx/internal/cdx"
	"github.com/JakeFAU/scdx/internal/config"
	"github.com/JakeFAU/scdx/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Run(ctx context.Context) (cdx.Summary, error)
	ListCrawls(ctx context.Context) ([]cdx.Crawl, error)
	Logger() *zap.Logger
	StatusAddr() string
	Close()
}

// appFactory builds the App for a command once configuration is loaded.
type appFactory func(ctx context.Context, cfg config.Config, opts app.Options) (App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config, opts app.Options) (App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	opts.Logger = logger
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command. Running it performs a
// fetch for the configured domain.
func newRootCmd(newApp appFactory) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "scdx -d DOMAIN [flags]",
		Short: "Download every index record of a domain from Common Crawl.",
		Long: `scdx queries the Common Crawl columnar index (CDX) for every capture of a
domain across one or more crawls and writes the records to a JSON-lines file,
one compact record per line, in the order the index returns them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := mergeCrawlArgs(cmd, args, &cfg); err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg, app.Options{
				Notices: cmd.ErrOrStderr(),
				Results: cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		RunE: runFetch,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML, JSON or TOML)")

	flags := cmd.Flags()
	flags.StringP("domain", "d", "", "domain to query (required)")
	flags.IntP("sleep", "s", 2, "seconds to wait before retrying a failed query")
	flags.StringSliceP("crawls", "c", nil, "crawl ids to query (repeatable or comma separated; default all)")
	flags.BoolP("latest", "l", false, "query only the most recent crawl")
	flags.StringP("output", "o", "", "output file (default YYYY-MM-DD_HH-MM-SS_output.jsonl)")
	flags.Int("max-retries", 0, "retries per crawl before giving up (0 retries forever)")
	cmd.MarkFlagsMutuallyExclusive("crawls", "latest")

	cmd.AddCommand(newCrawlsCmd())
	return cmd
}

// mergeCrawlArgs treats the words after -c as more crawl ids, so both
// "-c A -c B" and "-c A B" select A and B.
func mergeCrawlArgs(cmd *cobra.Command, args []string, cfg *config.Config) error {
	if len(args) == 0 {
		return nil
	}
	if !cmd.Flags().Changed("crawls") {
		return fmt.Errorf("unexpected argument %q: pass crawl ids with -c ID [ID...] or -c ID,ID", args[0])
	}
	cfg.Fetch.Crawls = append(cfg.Fetch.Crawls, args...)
	return nil
}

// runFetch closes the app on every exit path; cobra skips post-run hooks when
// RunE fails.
func runFetch(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer appInstance.Close()

	logger := appInstance.Logger()
	if addr := appInstance.StatusAddr(); addr != "" {
		logger.Info("run status available", zap.String("url", "http://"+addr+"/v1/progress"))
	}
	summary, err := appInstance.Run(cmd.Context())
	if err != nil {
		logger.Error("run failed", zap.Int64("records", summary.Records), zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted after %d records: %w", summary.Records, err)
		}
		return err
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(defaultAppFactory).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
