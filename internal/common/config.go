package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the suite configuration
type Config struct {
	Environment string         `toml:"environment"` // free-form label written into reports, e.g. "staging"
	Site        SiteConfig     `toml:"site"`
	Browser     BrowserConfig  `toml:"browser"`
	Poll        PollConfig     `toml:"poll"`
	Timeouts    TimeoutsConfig `toml:"timeouts"`
	Fixtures    FixturesConfig `toml:"fixtures"`
	Run         RunConfig      `toml:"run"`
	Output      OutputConfig   `toml:"output"`
	Logging     LoggingConfig  `toml:"logging"`
}

// SiteConfig locates the storefront under test
type SiteConfig struct {
	BaseURL          string `toml:"base_url" validate:"required,url"`
	HomePath         string `toml:"home_path" validate:"required,startswith=/"`
	AllModelsPath    string `toml:"all_models_path" validate:"required,startswith=/"`
	PreflightTimeout string `toml:"preflight_timeout" validate:"duration"` // e.g. "30s" - how long to wait for the site to answer
}

// BrowserConfig configures the Chrome instance
type BrowserConfig struct {
	ExecPath       string `toml:"exec_path"` // empty = find Chrome on PATH
	Headless       bool   `toml:"headless"`
	DisableGPU     bool   `toml:"disable_gpu"`
	NoSandbox      bool   `toml:"no_sandbox"` // required inside most containers
	WindowWidth    int    `toml:"window_width" validate:"gt=0"`
	WindowHeight   int    `toml:"window_height" validate:"gt=0"`
	UserAgent      string `toml:"user_agent"`
	StartupTimeout string `toml:"startup_timeout" validate:"duration"`
	LoadTimeout    string `toml:"load_timeout" validate:"duration"` // navigation and load-state budget
}

// PollConfig is the template every wait starts from
type PollConfig struct {
	Interval       string  `toml:"interval" validate:"duration"`        // delay between attempts (default: "100ms")
	MaxInterval    string  `toml:"max_interval" validate:"duration"`    // backoff ceiling (default: "1s")
	Backoff        float64 `toml:"backoff" validate:"gte=0,lte=10"`     // interval multiplier; 1 = fixed interval
	AttemptTimeout string  `toml:"attempt_timeout" validate:"duration"` // bound on one browser read
	ProgressEvery  string  `toml:"progress_every" validate:"duration"`  // "still waiting" debug log throttle
}

// TimeoutsConfig holds per-call-site wait budgets
type TimeoutsConfig struct {
	Default        string `toml:"default" validate:"duration"`         // plain expectations (default: "5s")
	FilterEnabled  string `toml:"filter_enabled" validate:"duration"`  // active filter styling (default: "20s")
	UpdatedResults string `toml:"updated_results" validate:"duration"` // result count change (default: "15s")
	NoResults      string `toml:"no_results" validate:"duration"`      // empty result state (default: "8s")
	BedBath        string `toml:"bed_bath" validate:"duration"`        // bedroom / bathroom selection (default: "10s")
	SelectFilter   string `toml:"select_filter" validate:"duration"`   // dropdown option selection (default: "15s")
	Navigation     string `toml:"navigation" validate:"duration"`      // menu link to heading (default: "10s")
	Scenario       string `toml:"scenario" validate:"duration"`        // whole-scenario budget (default: "3m")
}

// FixturesConfig locates fixture data
type FixturesConfig struct {
	Dir string `toml:"dir"` // directory with valid-filters, invalid-filters and navigation-data files; empty = built-in data
}

// RunConfig selects what to run
type RunConfig struct {
	Filter      string `toml:"filter"`                           // regexp matched against "Group/Scenario"
	Demo        bool   `toml:"demo"`                             // serve the built-in demo storefront and test against it
	DemoLatency string `toml:"demo_latency" validate:"duration"` // delay on demo listing responses, e.g. "300ms"
}

// OutputConfig controls run artefacts
type OutputConfig struct {
	ResultsDir  string   `toml:"results_dir" validate:"required"`
	Formats     []string `toml:"formats" validate:"dive,oneof=json markdown html pdf"`
	Screenshots bool     `toml:"screenshots"` // capture a screenshot when a scenario fails
	Snapshots   bool     `toml:"snapshots"`   // dump a DOM summary and markdown when a scenario fails
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Site: SiteConfig{
			BaseURL:          "http://localhost:8080",
			HomePath:         "/",
			AllModelsPath:    "/shop/all-models",
			PreflightTimeout: "30s",
		},
		Browser: BrowserConfig{
			Headless:       true,
			DisableGPU:     true,
			NoSandbox:      false,
			WindowWidth:    1920,
			WindowHeight:   1080,
			StartupTimeout: "30s",
			LoadTimeout:    "30s",
		},
		Poll: PollConfig{
			Interval:       "100ms",
			MaxInterval:    "1s",
			Backoff:        1,
			AttemptTimeout: "10s",
			ProgressEvery:  "5s",
		},
		Timeouts: TimeoutsConfig{
			Default:        "5s",
			FilterEnabled:  "20s",
			UpdatedResults: "15s",
			NoResults:      "8s",
			BedBath:        "10s",
			SelectFilter:   "15s",
			Navigation:     "10s",
			Scenario:       "3m",
		},
		Output: OutputConfig{
			ResultsDir:  "results",
			Formats:     []string{"json", "markdown"},
			Screenshots: true,
			Snapshots:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"console"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. Flags are applied by the caller with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal merges into the existing values
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies STOREFRONT_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STOREFRONT_ENV"); env != "" {
		config.Environment = env
	}

	if baseURL := os.Getenv("STOREFRONT_BASE_URL"); baseURL != "" {
		config.Site.BaseURL = baseURL
	}

	if execPath := os.Getenv("STOREFRONT_CHROME_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}
	if headless := os.Getenv("STOREFRONT_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if noSandbox := os.Getenv("STOREFRONT_NO_SANDBOX"); noSandbox != "" {
		if ns, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = ns
		}
	}

	if fixturesDir := os.Getenv("STOREFRONT_FIXTURES_DIR"); fixturesDir != "" {
		config.Fixtures.Dir = fixturesDir
	}
	if filter := os.Getenv("STOREFRONT_RUN"); filter != "" {
		config.Run.Filter = filter
	}
	if resultsDir := os.Getenv("STOREFRONT_RESULTS_DIR"); resultsDir != "" {
		config.Output.ResultsDir = resultsDir
	}

	if level := os.Getenv("STOREFRONT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("STOREFRONT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// FlagOverrides carries command-line values; zero values leave config untouched
type FlagOverrides struct {
	BaseURL  string
	Filter   string
	Headless *bool
	Demo     bool
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.BaseURL != "" {
		config.Site.BaseURL = flags.BaseURL
	}
	if flags.Filter != "" {
		config.Run.Filter = flags.Filter
	}
	if flags.Headless != nil {
		config.Browser.Headless = *flags.Headless
	}
	if flags.Demo {
		config.Run.Demo = true
	}
}

// Validate checks the configuration with go-playground/validator
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validation: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validateDuration accepts empty strings (meaning "use the default") and
// positive time.ParseDuration values.
func validateDuration(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	d, err := time.ParseDuration(value)
	return err == nil && d > 0
}

// ParseDuration parses a duration string, returning fallback when the string
// is empty or invalid.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// HasFormat reports whether a report format is enabled
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Output.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
