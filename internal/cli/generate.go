package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/swagger2k6/internal/emitter/k6emitter"
	"github.com/mark3labs/swagger2k6/internal/spec"
	"github.com/mark3labs/swagger2k6/internal/synth"
)

const (
	defaultInput = "./swagger.json"
	defaultOut   = "./tests"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input          string
	Out            string
	Master         string
	IncludeTags    []string
	ExcludeTags    []string
	Methods        []string
	Paths          []string
	Seed           int64
	Strict         bool
	NoPayloadCheck bool
	ConfigPath     string
	DryRun         bool
	Verbose        bool
	NoColor        bool

	Stdout io.Writer
	Stderr io.Writer
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Input: defaultInput, Out: defaultOut}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a k6 test suite from an OpenAPI/Swagger document",
		Long: "Generate one k6 script per API operation plus a master script that runs them all once. " +
			"The output directory is replaced as a whole. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  swagger2k6 generate --input swagger.json --out ./tests
  swagger2k6 generate --input https://example.com/openapi.yaml --methods get,post --seed 42
  swagger2k6 --config swagger2k6.yaml generate --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Stdout, cfg.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	addSelectionFlags(flags)
	flags.String("out", "", "Output directory for the per-operation scripts (default ./tests)")
	flags.String("master", "", "Master script path (default master-test.js next to the output directory)")
	flags.Int64("seed", 0, "Seed for payload generation; 0 picks a random seed")
	flags.Bool("no-payload-check", false, "Skip validating generated payloads against their schema")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")

	return cmd
}

// addSelectionFlags registers the flags shared by generate and list.
func addSelectionFlags(flags *pflag.FlagSet) {
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document (default ./swagger.json)")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching these regular expressions")
	flags.Bool("strict", false, "Fail when the document does not pass OpenAPI validation")
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":  &cfg.Input,
		"out":    &cfg.Out,
		"master": &cfg.Master,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	lists := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
		"methods":      &cfg.Methods,
		"paths":        &cfg.Paths,
	}
	for name, dst := range lists {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeTags(value)
	}

	bools := map[string]*bool{
		"strict":           &cfg.Strict,
		"no-payload-check": &cfg.NoPayloadCheck,
		"dry-run":          &cfg.DryRun,
		"verbose":          &cfg.Verbose,
		"no-color":         &cfg.NoColor,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("seed") {
		value, err := flags.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.Master = strings.TrimSpace(c.Master)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Methods = sanitizeTags(c.Methods)
	for i, m := range c.Methods {
		c.Methods[i] = strings.ToUpper(m)
	}
	c.Paths = sanitizeTags(c.Paths)
	if c.Input == "" {
		c.Input = defaultInput
	}
	if c.Out == "" {
		c.Out = defaultOut
	}
}

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true, "TRACE": true,
}

func (c *GenerateConfig) validate() error {
	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	for _, m := range c.Methods {
		if !knownMethods[m] {
			return newUsageError(fmt.Sprintf("generate: unsupported --methods value %q", m))
		}
	}
	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("generate: invalid --paths pattern %q: %v", p, err))
		}
	}
	return nil
}

func (c *GenerateConfig) resolveOptions() []spec.Option {
	return []spec.Option{spec.WithStrict(c.Strict)}
}

func (c *GenerateConfig) extractOptions() []spec.ExtractOption {
	return []spec.ExtractOption{
		spec.WithIncludeTags(c.IncludeTags),
		spec.WithExcludeTags(c.ExcludeTags),
		spec.WithMethods(c.Methods),
		spec.WithPathPatterns(c.Paths),
	}
}

func (c *GenerateConfig) writers() (io.Writer, io.Writer) {
	stdout, stderr := c.Stdout, c.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	stdout, stderr := cfg.writers()
	logger := newLogger(stderr, cfg.Verbose)
	colors := newPalette(colorEnabled(stdout, cfg.NoColor))

	// 1) Load and dereference the document; nothing on disk changes if this fails
	doc, err := spec.Resolve(ctx, cfg.Input, append(cfg.resolveOptions(), spec.WithLogger(logger))...)
	if err != nil {
		return describeLoadError(err)
	}

	// 2) Flatten into operations in document order
	ops := spec.Extract(doc, cfg.extractOptions()...)
	logger.Debug("operations extracted", "count", len(ops), "total", doc.OperationCount())

	// 3) Render everything, then swap the suite into place
	res, err := k6emitter.Emit(ctx, doc.BaseURL, ops, k6emitter.Options{
		OutDir:      cfg.Out,
		MasterPath:  cfg.Master,
		DryRun:      cfg.DryRun,
		Verbose:     cfg.Verbose,
		Logger:      logger,
		Synthesizer: synth.New(synth.WithSeed(cfg.Seed), synth.WithValidation(!cfg.NoPayloadCheck)),
		Protect:     protectedPaths(cfg),
	})
	if err != nil {
		return wrapOutputError(err, cfg.Out)
	}

	if cfg.DryRun {
		printPlan(stdout, res)
		return nil
	}
	colors.ok.Fprintf(stdout, "✓ Generated %d k6 scripts in %s\n", len(res.Scripts), res.OutDir)
	fmt.Fprintf(stdout, "  Master script: %s\n", res.MasterPath)
	fmt.Fprintf(stdout, "  Target: %s\n", doc.BaseURL)
	if n := len(res.Warnings); n > 0 {
		colors.warn.Fprintf(stdout, "! %d operation(s) sent without a body:\n", n)
		for _, w := range res.Warnings {
			colors.warn.Fprintf(stdout, "  - %s %s\n", w.Method, w.Path)
		}
	}
	return nil
}

// protectedPaths lists local files the output directory must never contain.
func protectedPaths(cfg *GenerateConfig) []string {
	var out []string
	if !isURL(cfg.Input) {
		out = append(out, cfg.Input)
	}
	if cfg.ConfigPath != "" {
		out = append(out, cfg.ConfigPath)
	}
	return out
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// describeLoadError adds location details to spec failures while keeping the
// *spec.LoadError reachable through errors.As.
func describeLoadError(err error) error {
	var le *spec.LoadError
	if !errors.As(err, &le) {
		return err
	}
	details := ""
	if le.Location != "" {
		details += "\nLocation: " + le.Location
	}
	if le.JSONPointer != "" {
		details += "\nPointer: " + le.JSONPointer
	}
	return fmt.Errorf("spec %s: %w%s", le.Code, err, details)
}

func printPlan(w io.Writer, res *k6emitter.Result) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", res.OutDir, len(res.Planned))
	for _, p := range res.Planned {
		fmt.Fprintf(w, "- %s\n", p.RelPath)
	}
	fmt.Fprintf(w, "Master script: %s\n", res.MasterPath)
}

func wrapOutputError(err error, outDir string) error {
	if errors.Is(err, k6emitter.ErrUnsafeOutDir) {
		return newUsageError(fmt.Sprintf("output error for %s: %v\nHint: choose a dedicated --out directory.", outDir, err))
	}
	return err
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

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		fieldErr := func(err error) error {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
		switch normalizeKey(key) {
		case "input", "out", "master":
			str, err := valueAsString(value)
			if err != nil {
				return fieldErr(err)
			}
			switch normalizeKey(key) {
			case "input":
				cfg.Input = str
			case "out":
				cfg.Out = str
			default:
				cfg.Master = str
			}
		case "includetags", "excludetags", "methods", "paths":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return fieldErr(err)
			}
			switch normalizeKey(key) {
			case "includetags":
				cfg.IncludeTags = sanitizeTags(list)
			case "excludetags":
				cfg.ExcludeTags = sanitizeTags(list)
			case "methods":
				cfg.Methods = sanitizeTags(list)
			default:
				cfg.Paths = sanitizeTags(list)
			}
		case "seed":
			n, err := valueAsInt64(value)
			if err != nil {
				return fieldErr(err)
			}
			cfg.Seed = n
		case "strict", "nopayloadcheck", "dryrun", "verbose", "nocolor":
			val, err := valueAsBool(value)
			if err != nil {
				return fieldErr(err)
			}
			switch normalizeKey(key) {
			case "strict":
				cfg.Strict = val
			case "nopayloadcheck":
				cfg.NoPayloadCheck = val
			case "dryrun":
				cfg.DryRun = val
			case "verbose":
				cfg.Verbose = val
			default:
				cfg.NoColor = val
			}
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case uint64:
		return int64(val), nil
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("expected integer, got %v", val)
		}
		return int64(val), nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer value %q", val)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
