package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/byteowlz/glean/internal/browser"
	"github.com/byteowlz/glean/internal/config"
	reader "github.com/byteowlz/glean/internal/extractor"
	"github.com/byteowlz/glean/internal/logger"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which extraction strategies are usable",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return exitError(ExitConfigError, "failed to load config: %v", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if !diagnose(ctx, cmd.OutOrStdout(), cfg) {
			return &exitErr{code: ExitConfigError}
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := getDefaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return exitError(ExitConfigError, "cannot determine config path")
		}
		if _, err := os.Stat(path); err == nil {
			return exitError(ExitConfigError, "config file %s already exists", path)
		}
		if err := config.Default().CreateExampleConfig(path); err != nil {
			return exitError(ExitFileIOError, "%v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

// diagnose prints one line per collaborator and reports whether the
// configuration is usable at all.
func diagnose(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	ok := true
	check := func(name string, good bool, detail string) {
		mark := color.New(color.FgGreen).Sprint("✓")
		if !good {
			mark = color.New(color.FgYellow).Sprint("⚠")
		}
		fmt.Fprintf(out, "%s %-18s %s\n", mark, name, detail)
	}

	rd, err := reader.New(cfg.Reader)
	switch {
	case err != nil:
		ok = false
		check("reader", false, err.Error())
	case rd == nil:
		check("reader", true, "disabled")
	default:
		check("reader", rd.IsAvailable(), rd.Name())
	}

	automation, err := browser.New(cfg.Browser, logger.NewNop())
	if err != nil {
		ok = false
		check("browser", false, err.Error())
	} else {
		up := automation.Available(ctx)
		detail := automation.Name()
		if !up {
			detail += " not reachable, walled gardens fall back to og meta"
		}
		check("browser", up, detail)
	}

	if _, err := browser.NewCookieSource(cfg.Browser.Cookies, cfg.Browser.Paths); err != nil {
		ok = false
		check("cookies", false, err.Error())
	} else {
		check("cookies", true, cfg.Browser.Cookies.Source)
	}

	found := browser.NewCookieExtractor(browser.BrowserAuto, cfg.Browser.Paths, nil).DetectAvailableBrowsers()
	names := make([]string, 0, len(found))
	for _, b := range found {
		names = append(names, string(b))
	}
	if len(names) == 0 {
		check("browser profiles", false, "none found")
	} else {
		check("browser profiles", true, strings.Join(names, ", "))
	}

	if _, err := os.Stat(cfg.Browser.Cookies.File); cfg.Browser.Cookies.Source == "file" && err != nil {
		check("cookie file", false, cfg.Browser.Cookies.File+" missing")
	}
	return ok
}
