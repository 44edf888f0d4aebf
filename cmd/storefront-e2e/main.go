package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/common"
	"github.com/ternarybob/storefront-e2e/internal/fixtures"
	"github.com/ternarybob/storefront-e2e/internal/report"
	"github.com/ternarybob/storefront-e2e/internal/scenario"
	"github.com/ternarybob/storefront-e2e/internal/storefront"
	"github.com/ternarybob/storefront-e2e/internal/suite"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// optionalBool is a boolean flag that remembers whether it was given
type optionalBool struct {
	value *bool
}

func (b *optionalBool) String() string {
	if b.value == nil {
		return ""
	}
	return strconv.FormatBool(*b.value)
}

func (b *optionalBool) Set(value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	b.value = &v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	headless     optionalBool
	baseURL      = flag.String("base-url", "", "Storefront base URL (overrides config)")
	runFilter    = flag.String("run", "", "Only run scenarios whose \"Group/Scenario\" matches this regexp")
	demo         = flag.Bool("demo", false, "Serve the built-in demo storefront and test against it")
	listOnly     = flag.Bool("list", false, "List scenarios and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.Var(&headless, "headless", "Run Chrome headless (overrides config)")
}

func main() {
	os.Exit(run())
}

func run() int {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("%s version %s\n", common.AppName, common.GetFullVersion())
		return 0
	}

	// Startup sequence:
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	if len(configFiles) == 0 {
		if _, err := os.Stat("storefront-e2e.toml"); err == nil {
			configFiles = append(configFiles, "storefront-e2e.toml")
		} else if _, err := os.Stat("deployments/local/storefront-e2e.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/storefront-e2e.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		return 1
	}
	common.ApplyFlagOverrides(config, common.FlagOverrides{
		BaseURL:  *baseURL,
		Filter:   *runFilter,
		Headless: headless.value,
		Demo:     *demo,
	})
	if err := config.Validate(); err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Configuration rejected")
		return 1
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler(config.Output.ResultsDir)

	set, err := fixtures.Load(config.Fixtures.Dir)
	if err != nil {
		logger.Error().Err(err).Str("dir", config.Fixtures.Dir).Msg("Failed to load fixtures")
		return 1
	}
	groups := suite.Catalogue(set, suite.PathsFromConfig(config))

	var filter *regexp.Regexp
	if config.Run.Filter != "" {
		if filter, err = regexp.Compile(config.Run.Filter); err != nil {
			logger.Error().Err(err).Str("filter", config.Run.Filter).Msg("Invalid scenario filter")
			return 1
		}
	}

	if *listOnly {
		listScenarios(groups, filter)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Run.Demo {
		store, err := storefront.New(set.Navigation, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create demo storefront")
			return 1
		}
		store.SetListingDelay(common.ParseDuration(config.Run.DemoLatency, 0))
		url, err := store.Start("127.0.0.1:0")
		if err != nil {
			logger.Error().Err(err).Msg("Failed to start demo storefront")
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			store.Shutdown(shutdownCtx)
		}()
		config.Site.BaseURL = url
		config.Site.HomePath = storefront.HomePath
		config.Site.AllModelsPath = storefront.AllModelsPath
		groups = suite.Catalogue(set, suite.PathsFromConfig(config))
	}

	logger.Info().
		Strs("config_files", configFiles).
		Str("log_file", common.GetLogFilePath(logger)).
		Str("base_url", config.Site.BaseURL).
		Str("environment", config.Environment).
		Bool("headless", config.Browser.Headless).
		Str("filter", config.Run.Filter).
		Msg("Configuration loaded")

	preflightTimeout := common.ParseDuration(config.Site.PreflightTimeout, 30*time.Second)
	if err := waitForService(ctx, siteURL(config.Site.BaseURL, config.Site.HomePath), preflightTimeout, logger); err != nil {
		logger.Error().Err(err).Str("base_url", config.Site.BaseURL).Msg("Storefront is not reachable")
		return 1
	}
	checkConnectivity(ctx, config.Site.BaseURL, logger)

	chrome, err := browser.Launch(browser.OptionsFromConfig(config), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to launch Chrome")
		return 1
	}
	defer chrome.Close()

	runner := scenario.NewRunner(chrome, scenario.OptionsFromConfig(config, set, logger), logger)
	result := runner.Run(ctx, groups, filter)

	paths, err := report.NewService(logger).Write(config.Output.ResultsDir, result, config.Output.Formats)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write reports")
	}

	printSummary(result, paths)
	if !result.Passed() || err != nil {
		return 1
	}
	return 0
}

func listScenarios(groups []scenario.Group, filter *regexp.Regexp) {
	for _, group := range groups {
		for _, sc := range group.Scenarios {
			full := group.Name + "/" + sc.Name
			if filter == nil || filter.MatchString(full) {
				fmt.Println(full)
			}
		}
	}
}

func printSummary(run *scenario.Run, reports []string) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SCENARIO SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	for _, result := range run.Results {
		status := strings.ToUpper(string(result.Status))
		fmt.Printf("%-8s %-70s (%.2fs)\n", status, result.FullName(), result.Duration.Seconds())
		if result.Failure != nil {
			fmt.Printf("         %s: %s\n", result.Failure.Kind, result.Failure.Message)
		}
	}

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Total: %d passed, %d failed, %d skipped (%.2fs)\n",
		run.Count(scenario.StatusPassed),
		run.Count(scenario.StatusFailed),
		run.Count(scenario.StatusSkipped),
		run.Duration.Seconds(),
	)
	for _, path := range reports {
		fmt.Printf("Report: %s\n", path)
	}

	if run.Passed() {
		fmt.Println("\n✓ ALL SCENARIOS PASSED")
	} else {
		fmt.Println("\n✗ SOME SCENARIOS FAILED")
	}
}
