// Package php defines the contract between the Blade pipeline and the external PHP
// formatter it delegates to.
package php

import (
	"context"
	"errors"
	"fmt"
)

// Parsers understood by the external formatter.
const (
	ParserPHP  = "php"
	ParserHTML = "html"
)

// Defaults used when no formatter options are configured.
const (
	DefaultPrintWidth  = 1000
	DefaultSingleQuote = true
	DefaultPHPVersion  = "7.4"
)

var (
	// ErrFormatterExecution indicates the external formatter could not produce output.
	// Every error returned by a Formatter implementation should wrap it.
	ErrFormatterExecution = errors.New("external formatter failed")

	// ErrSyntax indicates the formatter rejected its input as invalid source. For the Blade
	// pipeline this means either a malformed template or a masking bug.
	// errors.Is(err, ErrFormatterExecution) is also true.
	ErrSyntax = errors.New("syntax error")

	// ErrTimeout indicates the formatter was cancelled or exceeded its deadline.
	// errors.Is(err, ErrFormatterExecution) is also true.
	ErrTimeout = errors.New("formatter cancelled or timed out")

	// ErrBadOutput indicates the formatter exited cleanly but its output was unusable.
	// errors.Is(err, ErrFormatterExecution) is also true.
	ErrBadOutput = errors.New("formatter returned invalid output")
)

// Options are passed through to the external formatter on every call.
type Options struct {
	Parser      string `mapstructure:"parser" json:"parser" yaml:"parser"`
	PrintWidth  int    `mapstructure:"printWidth" json:"printWidth" yaml:"printWidth"`
	SingleQuote bool   `mapstructure:"singleQuote" json:"singleQuote" yaml:"singleQuote"`
	PHPVersion  string `mapstructure:"phpVersion" json:"phpVersion" yaml:"phpVersion"`
}

// DefaultOptions returns the options used for PHP formatting when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Parser:      ParserPHP,
		PrintWidth:  DefaultPrintWidth,
		SingleQuote: DefaultSingleQuote,
		PHPVersion:  DefaultPHPVersion,
	}
}

// WithParser returns a copy of o using parser.
func (o Options) WithParser(parser string) Options {
	o.Parser = parser
	return o
}

// Formatter formats source text. Implementations must be safe for concurrent use;
// the engine calls Format from several workers at once.
//
// Stability: Public Stable API - alternative formatters can be provided externally.
type Formatter interface {
	Format(ctx context.Context, source string, opts Options) (string, error)
}

// FormatterFunc adapts a plain function to the Formatter interface.
type FormatterFunc func(ctx context.Context, source string, opts Options) (string, error)

// Format calls f.
func (f FormatterFunc) Format(ctx context.Context, source string, opts Options) (string, error) {
	return f(ctx, source, opts)
}

// Errorf returns a formatted error that wraps ErrFormatterExecution.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFormatterExecution}, args...)...)
}

// WrapError wraps a specific formatter error so that both it and ErrFormatterExecution
// match with errors.Is.
func WrapError(specific error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrFormatterExecution, fmt.Sprintf(format, args...), specific)
}
