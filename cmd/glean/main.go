package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/byteowlz/glean/internal/config"
	"github.com/byteowlz/glean/internal/logger"
	"github.com/byteowlz/glean/internal/metrics"
	"github.com/byteowlz/glean/pkg/extractor"
)

// Exit codes for granular error handling
const (
	ExitSuccess      = 0
	ExitNoContent    = 1 // every URL came back without content
	ExitProcessError = 2
	ExitInvalidInput = 3
	ExitConfigError  = 4
	ExitFileIOError  = 5
	ExitPartialError = 6 // some URLs produced content, some did not
)

var (
	cfgFile        string
	outputFile     string
	outputFormat   string
	excerpt        string
	file           string
	concurrency    int
	delay          float64
	timeout        int
	readerBackend  string
	browserBackend string
	followStrategy string
	metricsFile    string
	verbose        bool
	quiet          bool
	noColor        bool
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "glean [urls...]",
	Short: "Extract readable text and images from any link",
	Long: `glean extracts the text of a shared link: articles, social media posts,
YouTube videos and short videos. It tries several strategies per link and
always returns a result, falling back to the supplied excerpt.`,
	Version:       version,
	RunE:          run,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		if !quiet {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(ExitInvalidInput)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/glean/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all non-content output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored warnings")

	// Input/Output flags
	rootCmd.Flags().StringVarP(&file, "file", "f", "", "read URLs from file (one per line, optional tab-separated excerpt)")
	rootCmd.Flags().StringVarP(&excerpt, "excerpt", "e", "", "excerpt to fall back on (single URL only)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output to file (default: stdout)")
	rootCmd.Flags().StringVar(&outputFormat, "format", "text", "output format (text|json|yaml)")

	// Parallel processing flags
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "max concurrent extractions (default from config)")
	rootCmd.Flags().Float64Var(&delay, "delay", 0, "delay in seconds between starting extractions")
	rootCmd.Flags().IntVar(&timeout, "timeout", 120, "per-URL timeout in seconds")

	// Strategy flags
	rootCmd.Flags().StringVarP(&readerBackend, "reader-backend", "B", "", "reader API backend (jina|tavily|none)")
	rootCmd.Flags().StringVar(&browserBackend, "browser-backend", "", "browser automation backend (camofox|chrome|none)")
	rootCmd.Flags().StringVar(&followStrategy, "follow", "", "link to follow from short content (longest|first)")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")

	rootCmd.AddCommand(doctorCmd, configCmd)
}

func initConfig() {
	// .env in the working directory may carry API keys
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) && verbose && !quiet {
		fmt.Fprintf(os.Stderr, "Error reading .env: %v\n", err)
	}
	if cfgFile != "" {
		return
	}

	configPath := getDefaultConfigPath()
	if configPath == "" {
		return
	}
	configDir := filepath.Dir(configPath)

	// Handle broken symlinks by removing them first
	if fi, lstatErr := os.Lstat(configDir); lstatErr == nil && fi.Mode()&os.ModeSymlink != 0 {
		if _, statErr := os.Stat(configDir); os.IsNotExist(statErr) {
			os.Remove(configDir)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Auto-create config on first run
		if createErr := config.Default().CreateExampleConfig(configPath); createErr == nil {
			if !quiet {
				fmt.Fprintf(os.Stderr, "Created config file: %s\n", configPath)
			}
		} else if verbose && !quiet {
			fmt.Fprintf(os.Stderr, "Error creating config file: %v\n", createErr)
		}
	} else if verbose && !quiet {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", configPath)
	}
}

func getDefaultConfigPath() string {
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("reader-backend") {
		cfg.Reader.Backend = readerBackend
	}
	if flags.Changed("browser-backend") {
		cfg.Browser.Backend = browserBackend
	}
	if flags.Changed("follow") {
		cfg.Extraction.FollowStrategy = followStrategy
	}
	if !flags.Changed("delay") && cfg.Network.Delay > 0 {
		delay = float64(cfg.Network.Delay)
	}
	if !flags.Changed("concurrency") || concurrency <= 0 {
		concurrency = cfg.Parallel.MaxConcurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if quiet {
		cfg.Logging.Level = "error"
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return exitError(ExitConfigError, "failed to load config: %v", err)
	}
	if !validFormat(outputFormat) {
		return exitError(ExitInvalidInput, "unknown output format %q (text|json|yaml)", outputFormat)
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return exitError(ExitConfigError, "failed to build logger: %v", err)
	}
	defer log.Sync()

	jobs, err := collectJobs(args, excerpt, file, os.Stdin)
	if err != nil {
		return exitError(ExitInvalidInput, "failed to collect URLs: %v", err)
	}
	if len(jobs) == 0 {
		return exitError(ExitInvalidInput, "no URLs provided")
	}

	m := metrics.New()
	ex, err := extractor.New(cfg, log, m)
	if err != nil {
		return exitError(ExitConfigError, "failed to set up extractor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Debug("Processing URLs", logger.Int("count", len(jobs)), logger.Int("concurrency", concurrency))
	results, err := extractAll(ctx, ex, jobs)
	if err != nil {
		return exitError(ExitProcessError, "extraction aborted: %v", err)
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return exitError(ExitFileIOError, "failed to create output file %s: %v", outputFile, err)
		}
		defer f.Close()
		out = f
	}
	if err := writeResults(out, results, outputFormat); err != nil {
		return exitError(ExitFileIOError, "failed to write output: %v", err)
	}
	if !quiet {
		newWarningPrinter(os.Stderr, !noColor).print(results)
	}

	if metricsFile != "" {
		if err := m.WriteFile(metricsFile); err != nil {
			return exitError(ExitFileIOError, "failed to write metrics: %v", err)
		}
	}

	if code := exitCode(results); code != ExitSuccess {
		return &exitErr{code: code}
	}
	return nil
}

// extractAll runs the jobs with bounded concurrency, spacing starts by the
// configured delay. Results keep the input order.
func extractAll(ctx context.Context, ex *extractor.Extractor, jobs []job) ([]extractor.Result, error) {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(delay*float64(time.Second))), 1)
	}

	results := make([]extractor.Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, j := range jobs {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		g.Go(func() error {
			jctx, cancel := context.WithTimeout(gctx, time.Duration(timeout)*time.Second)
			defer cancel()
			res, err := ex.Extract(jctx, j.URL, j.Excerpt)
			if err != nil {
				return fmt.Errorf("%s: %w", j.URL, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

// exitCode maps results onto the process exit code.
func exitCode(results []extractor.Result) int {
	empty := 0
	for _, r := range results {
		if r.Source == extractor.SourceNone {
			empty++
		}
	}
	switch {
	case empty == 0:
		return ExitSuccess
	case empty == len(results):
		return ExitNoContent
	default:
		return ExitPartialError
	}
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string {
	return e.msg
}

func exitError(code int, format string, args ...interface{}) *exitErr {
	msg := fmt.Sprintf(format, args...)
	if msg != "" && !quiet {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	}
	return &exitErr{code: code, msg: msg}
}
