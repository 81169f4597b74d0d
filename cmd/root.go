package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/wpbs/config"
	"github.com/s0up4200/wpbs/metrics"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	app     *application
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "wpbs",
	Short: "Manage Bunny Stream libraries, collections and videos for a WordPress site",
	Long: `wpbs talks to the Bunny.net Stream and account APIs on behalf of a
WordPress site. It creates per-user collections, uploads and offloads videos,
tracks encoding and provisions libraries and storage zones.

Every call is retried with exponential backoff, and a 429 response makes all
processes sharing the transient store wait out the server's Retry-After.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: finalizeApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(testCmd)
}

// initializeApp initializes the configuration and clients
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	app, err = newApplication(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	logger.Debug().
		Str("transient", cfg.Transient.Backend).
		Str("links", cfg.Links.Backend).
		Str("metadata", cfg.Metadata.Backend).
		Msg("Application initialized")
	return nil
}

// finalizeApp exports metrics and closes the stores
func finalizeApp(cmd *cobra.Command, args []string) error {
	if cfg == nil {
		return nil
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics textfile")
	}
	if app != nil {
		return app.Close()
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format, colour only on a terminal
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the Bunny API credentials",
	Long:  `Fetch the collections of the configured library to check the access key and library ID.`,
	RunE:  runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	fmt.Printf("Testing connection to Bunny Stream at %s...\n", cfg.Bunny.StreamURL)

	if cfg.Bunny.LibraryID == "" {
		fmt.Println("No library configured; only account endpoints are usable.")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	list, err := app.collections.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	fmt.Println("✓ Connection successful!")
	fmt.Printf("\nLibrary %s:\n", cfg.Bunny.LibraryID)
	fmt.Printf("- Collections: %d\n", list.TotalItems)
	fmt.Printf("- Transient store: %s\n", cfg.Transient.Backend)
	fmt.Printf("- Link store: %s\n", cfg.Links.Backend)
	fmt.Printf("- Circuit breaker: %s\n", boolToStatus(cfg.Breaker.Enabled))
	return nil
}

func boolToStatus(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}
