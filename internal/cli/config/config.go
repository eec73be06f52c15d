// Package config merges defaults, config files, profiles, environment variables and
// command-line flags into the options of a formatting run.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stackvity/blade-formatter/internal/cli/runner"
	"github.com/stackvity/blade-formatter/pkg/formatter"
	"github.com/stackvity/blade-formatter/pkg/formatter/cache"
	"github.com/stackvity/blade-formatter/pkg/formatter/php"
	"github.com/stackvity/blade-formatter/pkg/formatter/transform"
)

const (
	EnvPrefix         = "BLADE_FORMATTER"
	DefaultConfigName = ".blade-formatter"
	// configDirName is the directory below $HOME/.config searched for a config file.
	configDirName = "blade-formatter"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"mode":              "mode",
	"on-error":          "onError",
	"verbose":           "verbose",
	"tui":               "tuiEnabled",
	"output-format":     "outputFormat",
	"concurrency":       "concurrency",
	"cache":             "cache",
	"cache-file":        "cacheFile",
	"ignore":            "ignore",
	"extensions":        "extensions",
	"gitignore":         "gitignore",
	"max-file-size":     "maxFileSizeMB",
	"encoding":          "defaultEncoding",
	"indent-size":       "format.indent.indentSize",
	"use-tabs":          "format.indent.useTabs",
	"print-width":       "format.php.printWidth",
	"single-quote":      "format.php.singleQuote",
	"php-version":       "format.php.phpVersion",
	"format-html":       "format.formatHTML",
	"git-diff-only":     "git.diffOnly",
	"git-since":         "git.sinceRef",
	"formatter-command": "formatter.command",
	"formatter-timeout": "formatter.timeout",
}

// modeFlags are boolean shorthands for --mode.
var modeFlags = []struct {
	flag string
	mode formatter.Mode
}{
	{"write", formatter.ModeWrite},
	{"check", formatter.ModeCheck},
	{"diff", formatter.ModeDiff},
}

// Settings is the merged configuration of a run.
type Settings struct {
	Options formatter.Options
	Runner  runner.Config
	// DiffHeader is the fasttemplate header of diff output; empty selects the default.
	DiffHeader string
}

// LoadAndValidate loads configuration from all sources (defaults, file, profile, env,
// flags), validates the result and builds the logger. paths are the positional
// arguments of the command.
func LoadAndValidate(cfgFile, profileName, appVersion string, paths []string, flags *pflag.FlagSet) (Settings, *slog.Logger, error) {
	var settings Settings
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configDirName))
		} else {
			tempLogger.Debug("No home directory, skipping user config", slog.Any("error", err))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = fmt.Sprintf("searched locations for %s.yaml/json/toml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return settings, tempLogger, fmt.Errorf("%w: error reading config file '%s': %w", formatter.ErrConfigValidation, used, err)
		}
	}
	settings.Options.ConfigFilePath = v.ConfigFileUsed()

	settings.Options.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		profile := v.Sub(profileKey)
		if profile == nil {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			err := fmt.Errorf("%w: profile '%s' not found in config file '%s'", formatter.ErrConfigValidation, profileName, configPath)
			tempLogger.Error(err.Error())
			return settings, tempLogger, err
		}
		if err := v.MergeConfigMap(profile.AllSettings()); err != nil {
			return settings, tempLogger, fmt.Errorf("%w: error merging profile '%s': %w", formatter.ErrConfigValidation, profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return settings, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
		}
	}

	opts := &settings.Options
	if err := v.Unmarshal(opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return settings, tempLogger, fmt.Errorf("%w: error unmarshalling configuration: %w", formatter.ErrConfigValidation, err)
	}
	opts.AppVersion = appVersion
	opts.LanguageMappingsOverride = v.GetStringMapString("languageMappings")
	opts.CacheFilePath = v.GetString("cacheFile")
	settings.DiffHeader = v.GetString("diffHeader")

	if flags.Changed("verbose") {
		opts.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("no-cache") {
		opts.IgnoreCacheRead, _ = flags.GetBool("no-cache")
	}
	if flags.Changed("clear-cache") {
		opts.ClearCache, _ = flags.GetBool("clear-cache")
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	runnerCfg, err := runnerConfig(v)
	if err != nil {
		logger.Error(err.Error(), slog.String("key", "formatter"))
		return settings, logger, err
	}
	settings.Runner = runnerCfg

	if err := validateAndDeriveOptions(opts, paths, logger, flags); err != nil {
		return settings, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.String("mode", string(opts.Mode)),
		slog.String("logLevel", logLevel.String()),
	)
	return settings, logger, nil
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(formatter.DefaultMode))
	v.SetDefault("onError", string(formatter.DefaultOnErrorMode))
	v.SetDefault("verbose", false)
	v.SetDefault("tuiEnabled", formatter.DefaultTuiEnabled)
	v.SetDefault("outputFormat", string(formatter.DefaultOutputFormat))

	v.SetDefault("concurrency", formatter.DefaultConcurrency)
	v.SetDefault("cache", formatter.DefaultCacheEnabled)
	v.SetDefault("cacheFormat", cache.DefaultFormat)
	v.SetDefault("cacheFile", "")

	v.SetDefault("extensions", formatter.DefaultExtensions)
	v.SetDefault("ignore", []string{})
	v.SetDefault("gitignore", formatter.DefaultUseGitignore)
	v.SetDefault("maxFileSizeMB", formatter.DefaultMaxFileSizeMB)
	v.SetDefault("defaultEncoding", "")

	v.SetDefault("format.indent.indentSize", transform.DefaultIndentSize)
	v.SetDefault("format.indent.useTabs", false)
	v.SetDefault("format.php.parser", php.ParserPHP)
	v.SetDefault("format.php.printWidth", php.DefaultPrintWidth)
	v.SetDefault("format.php.singleQuote", php.DefaultSingleQuote)
	v.SetDefault("format.php.phpVersion", php.DefaultPHPVersion)
	v.SetDefault("format.formatHTML", false)

	v.SetDefault("git.diffOnly", false)

	v.SetDefault("formatter.command", []string{formatter.DefaultPrettierCommand})
	v.SetDefault("formatter.timeout", formatter.DefaultFormatTimeout)
	v.SetDefault("diffHeader", "")
}

// runnerConfig reads the external formatter settings. formatter.command may be a list
// or a single whitespace-separated string.
func runnerConfig(v *viper.Viper) (runner.Config, error) {
	cfg := runner.Config{Command: v.GetStringSlice("formatter.command")}
	if len(cfg.Command) == 1 {
		cfg.Command = strings.Fields(cfg.Command[0])
	}
	if len(cfg.Command) == 0 {
		return cfg, fmt.Errorf("%w: formatter.command cannot be empty", formatter.ErrConfigValidation)
	}
	if v.IsSet("formatter.args") {
		// An explicit empty list disables the default prettier arguments.
		cfg.Args = append([]string{}, v.GetStringSlice("formatter.args")...)
	}
	timeout, err := time.ParseDuration(v.GetString("formatter.timeout"))
	if err != nil {
		return cfg, fmt.Errorf("%w: invalid formatter.timeout '%s': %w", formatter.ErrConfigValidation, v.GetString("formatter.timeout"), err)
	}
	if timeout < 0 {
		return cfg, fmt.Errorf("%w: formatter.timeout cannot be negative", formatter.ErrConfigValidation)
	}
	cfg.Timeout = timeout
	return cfg, nil
}

func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions checks the merged options and fills the fields derived from
// flags and the environment. Errors wrap formatter.ErrConfigValidation.
func validateAndDeriveOptions(opts *formatter.Options, paths []string, logger *slog.Logger, flags *pflag.FlagSet) error {
	fail := func(key string, err error) error {
		logger.Error(err.Error(), slog.String("key", key))
		return err
	}

	if len(paths) == 0 {
		return fail("paths", fmt.Errorf("%w: at least one file or directory is required", formatter.ErrConfigValidation))
	}
	opts.Paths = paths
	wd, err := os.Getwd()
	if err != nil {
		return fail("workDir", fmt.Errorf("%w: cannot determine working directory: %w", formatter.ErrConfigValidation, err))
	}
	opts.WorkDir = wd
	if opts.CacheFilePath != "" && !filepath.IsAbs(opts.CacheFilePath) {
		opts.CacheFilePath = filepath.Join(wd, opts.CacheFilePath)
	}

	var selected []string
	for _, m := range modeFlags {
		if on, _ := flags.GetBool(m.flag); on {
			selected = append(selected, "--"+m.flag)
			opts.Mode = m.mode
		}
	}
	if len(selected) > 1 {
		return fail("mode", fmt.Errorf("%w: flags %s cannot be combined", formatter.ErrConfigValidation, strings.Join(selected, ", ")))
	}
	if !opts.Mode.Valid() {
		return fail("mode", fmt.Errorf("%w: invalid value '%s' for key 'mode' (flag --mode). Allowed: %v", formatter.ErrConfigValidation, opts.Mode,
			[]formatter.Mode{formatter.ModePrint, formatter.ModeWrite, formatter.ModeCheck, formatter.ModeDiff}))
	}

	allowedOnError := []formatter.OnErrorMode{formatter.OnErrorContinue, formatter.OnErrorStop}
	if !isValidEnumValue(opts.OnErrorMode, allowedOnError) {
		return fail("onError", fmt.Errorf("%w: invalid value '%s' for key 'onError' (flag --on-error). Allowed: %v", formatter.ErrConfigValidation, opts.OnErrorMode, allowedOnError))
	}
	allowedOutputFormat := []formatter.OutputFormat{formatter.OutputFormatText, formatter.OutputFormatJSON, formatter.OutputFormatYAML}
	if !isValidEnumValue(opts.OutputFormat, allowedOutputFormat) {
		return fail("outputFormat", fmt.Errorf("%w: invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: %v", formatter.ErrConfigValidation, opts.OutputFormat, allowedOutputFormat))
	}
	if !isValidEnumValue(opts.CacheFormat, []string{cache.FormatGob, cache.FormatJSON}) {
		return fail("cacheFormat", fmt.Errorf("%w: invalid value '%s' for key 'cacheFormat'. Allowed: [%s %s]", formatter.ErrConfigValidation, opts.CacheFormat, cache.FormatGob, cache.FormatJSON))
	}

	if opts.Concurrency < 0 {
		return fail("concurrency", fmt.Errorf("%w: invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= 0", formatter.ErrConfigValidation, opts.Concurrency))
	}
	if opts.MaxFileSizeMB < 0 {
		return fail("maxFileSizeMB", fmt.Errorf("%w: invalid value '%d' for key 'maxFileSizeMB'. Must be >= 0", formatter.ErrConfigValidation, opts.MaxFileSizeMB))
	}
	if opts.Format.Indent.IndentSize <= 0 {
		return fail("format.indent.indentSize", fmt.Errorf("%w: invalid value '%d' for key 'format.indent.indentSize' (flag --indent-size). Must be > 0", formatter.ErrConfigValidation, opts.Format.Indent.IndentSize))
	}
	if opts.Format.PHP.PrintWidth <= 0 {
		return fail("format.php.printWidth", fmt.Errorf("%w: invalid value '%d' for key 'format.php.printWidth' (flag --print-width). Must be > 0", formatter.ErrConfigValidation, opts.Format.PHP.PrintWidth))
	}

	if opts.Concurrency == 0 {
		opts.Concurrency = runtime.NumCPU()
		logger.Debug("Concurrency not set, defaulting to number of CPUs", slog.Int("concurrency", opts.Concurrency))
	}

	opts.GitDiffMode = formatter.GitDiffModeNone
	switch {
	case opts.GitConfig.DiffOnly && opts.GitConfig.SinceRef != "":
		return fail("git", fmt.Errorf("%w: cannot use --git-diff-only and --git-since together", formatter.ErrConfigValidation))
	case opts.GitConfig.DiffOnly:
		opts.GitDiffMode = formatter.GitDiffModeDiffOnly
	case opts.GitConfig.SinceRef != "":
		opts.GitDiffMode = formatter.GitDiffModeSince
	}

	if opts.Verbose && opts.TuiEnabled {
		logger.Debug("Verbose mode enabled, TUI disabled")
		opts.TuiEnabled = false
	}

	logger.Debug("Final derived settings validated",
		slog.Int("concurrency", opts.Concurrency),
		slog.String("gitDiffMode", string(opts.GitDiffMode)),
		slog.Bool("tuiEnabled", opts.TuiEnabled),
	)
	return nil
}

// flagAliases maps alternative flag spellings to their canonical names.
var flagAliases = map[string]string{
	"check-formatted": "check",
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// RegisterFlags defines every flag LoadAndValidate understands on fs. --check-formatted
// is accepted as an alias of --check.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(normalizeFlagName)
	fs.String("config", "", "Config file (default .blade-formatter.{yaml,json,toml} in the working directory or $HOME/.config/blade-formatter)")
	fs.String("profile", "", "Configuration profile to apply")
	fs.BoolP("verbose", "v", false, "Enable verbose logging")

	fs.String("mode", string(formatter.DefaultMode), "Run mode: print, write, check or diff")
	fs.BoolP("write", "w", false, "Write formatted output back to the files (--mode=write)")
	fs.BoolP("check", "c", false, "Fail if any file is not formatted (--mode=check)")
	fs.BoolP("diff", "d", false, "Print the lines that would change (--mode=diff)")
	fs.String("on-error", string(formatter.DefaultOnErrorMode), "Behavior when a file fails: continue or stop")
	fs.Bool("tui", formatter.DefaultTuiEnabled, "Show the interactive progress view")
	fs.String("output-format", string(formatter.DefaultOutputFormat), "Run report format: text, json or yaml")

	fs.IntP("concurrency", "j", formatter.DefaultConcurrency, "Number of files formatted in parallel (0 = number of CPUs)")
	fs.Bool("cache", formatter.DefaultCacheEnabled, "Remember formatted files between runs")
	fs.String("cache-file", "", "Cache location (default .blade-formatter.cache in the working directory)")
	fs.Bool("no-cache", false, "Ignore existing cache entries for this run")
	fs.Bool("clear-cache", false, "Delete the cache before running")

	fs.StringSlice("ignore", nil, "Additional gitignore-style ignore patterns")
	fs.StringSlice("extensions", nil, "File extensions to format (default .blade.php)")
	fs.Bool("gitignore", formatter.DefaultUseGitignore, "Honor .gitignore files")
	fs.Int64("max-file-size", formatter.DefaultMaxFileSizeMB, "Skip files larger than this many MB (0 = no limit)")
	fs.String("encoding", "", "Fallback encoding for files whose charset cannot be detected")

	fs.IntP("indent-size", "i", transform.DefaultIndentSize, "Indentation size")
	fs.Bool("use-tabs", false, "Indent with tabs instead of spaces")
	fs.Int("print-width", php.DefaultPrintWidth, "Line width passed to the PHP formatter")
	fs.Bool("single-quote", php.DefaultSingleQuote, "Prefer single quotes in PHP code")
	fs.String("php-version", php.DefaultPHPVersion, "PHP version passed to the PHP formatter")
	fs.Bool("format-html", false, "Format the HTML markup around Blade blocks")

	fs.Bool("git-diff-only", false, "Only format files with uncommitted changes")
	fs.String("git-since", "", "Only format files changed since this git reference")
	fs.Lookup("git-since").NoOptDefVal = formatter.DefaultGitSinceRef

	fs.StringSlice("formatter-command", nil, "External formatter command (default prettier)")
	fs.String("formatter-timeout", formatter.DefaultFormatTimeout, "Timeout of a single formatter invocation")
}
