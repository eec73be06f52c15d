// Package formatter formats Blade templates by disguising their template syntax as PHP,
// running an external PHP formatter and restoring the template syntax afterwards.
//
// Formatter handles a single template in memory. Engine and FormatFiles apply it to
// files and directories with a worker pool, cache and report.
package formatter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/stackvity/blade-formatter/pkg/formatter/php"
	"github.com/stackvity/blade-formatter/pkg/formatter/transform"
)

// Config holds the options that influence formatted output. Everything that changes
// the bytes produced for a given input belongs here; it is hashed for the cache.
type Config struct {
	Indent     transform.IndentOptions `mapstructure:"indent" json:"indent" yaml:"indent"`
	PHP        php.Options             `mapstructure:"php" json:"php" yaml:"php"`
	FormatHTML bool                    `mapstructure:"formatHTML" json:"formatHTML" yaml:"formatHTML"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Indent: transform.IndentOptions{IndentSize: transform.DefaultIndentSize},
		PHP:    php.DefaultOptions(),
	}
}

// withDefaults fills zero values so that a partially populated Config behaves like
// DefaultConfig for every field the caller left out.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Indent.IndentSize <= 0 {
		c.Indent.IndentSize = def.Indent.IndentSize
	}
	if c.PHP.Parser == "" {
		c.PHP.Parser = def.PHP.Parser
	}
	if c.PHP.PrintWidth <= 0 {
		c.PHP.PrintWidth = def.PHP.PrintWidth
	}
	if c.PHP.PHPVersion == "" {
		c.PHP.PHPVersion = def.PHP.PHPVersion
	}
	return c
}

// FormatResult is the outcome of formatting one template.
type FormatResult struct {
	Content string
	Changed bool
	Diffs   []LineDiff
}

// Formatter runs the Blade pipeline around an external PHP formatter. It holds no
// per-call state and is safe for concurrent use if the external formatter is.
type Formatter struct {
	ext    php.Formatter
	cfg    Config
	logger *slog.Logger
}

// New returns a Formatter delegating to ext.
func New(ext php.Formatter, cfg Config, loggerHandler slog.Handler) (*Formatter, error) {
	if ext == nil {
		return nil, fmt.Errorf("%w: external formatter cannot be nil", ErrConfigValidation)
	}
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	return &Formatter{
		ext:    ext,
		cfg:    cfg.withDefaults(),
		logger: slog.New(loggerHandler).With(slog.String("component", "formatter")),
	}, nil
}

// Config returns the effective configuration.
func (f *Formatter) Config() Config { return f.cfg }

// Format returns content formatted. Errors from the external formatter are returned
// as they are, so errors.Is(err, php.ErrSyntax) identifies templates it rejected.
func (f *Formatter) Format(ctx context.Context, content string) (string, error) {
	var err error
	if f.cfg.FormatHTML {
		if content, err = f.formatMarkup(ctx, content); err != nil {
			return "", err
		}
	}

	masked := transform.ProtectPHPTags(content)
	masked = transform.MaskComments(masked)
	masked = transform.MaskEscaped(masked)
	masked = transform.MaskUnescaped(masked)

	encoded, err := transform.FormatDirectives(ctx, masked, f.formatPHP)
	if err != nil {
		return "", err
	}

	formatted, err := f.formatPHP(ctx, encoded)
	if err != nil {
		return "", err
	}

	out := transform.UnmaskUnescaped(formatted)
	out = transform.UnmaskEscaped(out)
	out = transform.Cleanup(out)
	out = transform.PadEchoes(out)
	out = transform.UnmaskComments(out)
	return transform.RestorePHPTags(out), nil
}

// FormatWithResult formats content and reports which lines changed. path is only used
// to label the diff records.
func (f *Formatter) FormatWithResult(ctx context.Context, path, content string) (FormatResult, error) {
	formatted, err := f.Format(ctx, content)
	if err != nil {
		return FormatResult{}, err
	}
	res := FormatResult{Content: formatted, Changed: formatted != content}
	if res.Changed {
		res.Diffs = GenerateDiff(path, SplitLines(content), SplitLines(formatted))
	}
	f.logger.Debug("Template formatted", "path", path, "changed", res.Changed, "diffLines", len(res.Diffs))
	return res, nil
}

// formatMarkup runs the markup parser over the template with block directives held
// inside container elements, so that the markup layout follows the directive nesting.
func (f *Formatter) formatMarkup(ctx context.Context, content string) (string, error) {
	wrapped := transform.WrapBlocks(content)
	out, err := f.ext.Format(ctx, wrapped, f.cfg.PHP.WithParser(php.ParserHTML))
	if err != nil {
		return "", err
	}
	return transform.UnwrapBlocks(out, f.cfg.Indent), nil
}

func (f *Formatter) formatPHP(ctx context.Context, source string) (string, error) {
	return f.ext.Format(ctx, source, f.cfg.PHP.WithParser(php.ParserPHP))
}
