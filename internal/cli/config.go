package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasrouter/internal/dispatch"
	"github.com/mark3labs/oasrouter/internal/mock"
)

// Config captures every setting that influences a command after merging
// defaults, config file values, and CLI overrides. Each command reads the
// fields it needs.
type Config struct {
	Input        string           `mapstructure:"input"`
	FetchTimeout time.Duration    `mapstructure:"fetchtimeout"`
	FetchRetries int              `mapstructure:"fetchretries"`
	Addr         string           `mapstructure:"addr"`
	Router       string           `mapstructure:"router"`
	IncludeTags  []string         `mapstructure:"includetags"`
	ExcludeTags  []string         `mapstructure:"excludetags"`
	Unbound      string           `mapstructure:"unbound"`
	Schemas      []string         `mapstructure:"schemas"`
	Credentials  mock.Credentials `mapstructure:"credentials"`
	Metrics      bool             `mapstructure:"metrics"`
	Trace        bool             `mapstructure:"trace"`
	Out          string           `mapstructure:"out"`
	Package      string           `mapstructure:"package"`
	Module       string           `mapstructure:"module"`
	DryRun       bool             `mapstructure:"dryrun"`
	Force        bool             `mapstructure:"force"`
	Strict       bool             `mapstructure:"strict"`
	Verbose      bool             `mapstructure:"verbose"`
	ConfigPath   string           `mapstructure:"-"`
}

func defaultConfig() Config {
	return Config{Addr: ":8080", Router: "gin", Unbound: "skip"}
}

// resolveConfig layers defaults, the --config file and changed flags.
func resolveConfig(cmd *cobra.Command) (*Config, error) {
	cfg := defaultConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyConfigFromFile decodes a YAML, JSON or TOML file into cfg. Keys are
// matched after normalizeKey so include-tags, include_tags and includeTags
// are equivalent.
func applyConfigFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		// JSON is a subset of YAML.
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	normalized := make(map[string]any, len(raw))
	for key, value := range raw {
		normalized[normalizeKey(key)] = value
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(normalized); err != nil {
		return newUsageError(fmt.Sprintf("config file %q: %v", path, err))
	}
	return nil
}

func applyFlagOverrides(flags *pflag.FlagSet, cfg *Config) error {
	strs := map[string]*string{
		"input":   &cfg.Input,
		"addr":    &cfg.Addr,
		"router":  &cfg.Router,
		"unbound": &cfg.Unbound,
		"out":     &cfg.Out,
		"package": &cfg.Package,
		"module":  &cfg.Module,
	}
	for name, dst := range strs {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	slices := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
		"schema":       &cfg.Schemas,
	}
	for name, dst := range slices {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Lookup("fetch-timeout") != nil && flags.Changed("fetch-timeout") {
		value, err := flags.GetDuration("fetch-timeout")
		if err != nil {
			return err
		}
		cfg.FetchTimeout = value
	}
	if flags.Lookup("fetch-retries") != nil && flags.Changed("fetch-retries") {
		value, err := flags.GetInt("fetch-retries")
		if err != nil {
			return err
		}
		cfg.FetchRetries = value
	}

	bools := map[string]*bool{
		"metrics": &cfg.Metrics,
		"trace":   &cfg.Trace,
		"dry-run": &cfg.DryRun,
		"force":   &cfg.Force,
		"strict":  &cfg.Strict,
		"verbose": &cfg.Verbose,
	}
	for name, dst := range bools {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}
	return nil
}

func (c *Config) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Addr = strings.TrimSpace(c.Addr)
	c.Router = strings.ToLower(strings.TrimSpace(c.Router))
	c.Unbound = strings.ToLower(strings.TrimSpace(c.Unbound))
	c.Out = strings.TrimSpace(c.Out)
	c.Package = strings.TrimSpace(c.Package)
	c.Module = strings.TrimSpace(c.Module)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Schemas = sanitizeTags(c.Schemas)
}

func (c *Config) validate() error {
	if c.Input == "" {
		return newUsageError("--input is required (set via flag or config file)")
	}
	switch c.Router {
	case "gin", "echo":
	default:
		return newUsageError(fmt.Sprintf("unsupported --router %q (allowed: gin, echo)", c.Router))
	}
	if c.FetchTimeout < 0 || c.FetchRetries < 0 {
		return newUsageError("fetch timeout and retries must not be negative")
	}
	if _, err := c.unboundPolicy(); err != nil {
		return err
	}
	if overlap := intersect(c.IncludeTags, c.ExcludeTags); len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

func (c *Config) unboundPolicy() (dispatch.UnboundPolicy, error) {
	switch c.Unbound {
	case "", "skip":
		return dispatch.SkipUnbound, nil
	case "reject":
		return dispatch.RejectUnbound, nil
	default:
		return dispatch.SkipUnbound, newUsageError(fmt.Sprintf("unsupported --unbound %q (allowed: skip, reject)", c.Unbound))
	}
}

// newLogger writes text records to stderr, at Debug when verbose.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}
