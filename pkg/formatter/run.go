package formatter

import (
	"context"
	"fmt"
	"log/slog"
)

// FormatFiles is the library entry point: it formats every template reachable from
// opts.Paths and returns the run report.
//
// Per-file failures are recorded in Report.Errors and do not produce an error unless
// OnErrorMode is "stop". In check mode the error wraps ErrNotFormatted when any file
// would change.
func FormatFiles(ctx context.Context, opts Options) (Report, error) {
	if opts.Logger == nil {
		return Report{}, fmt.Errorf("%w: Logger implementation cannot be nil", ErrConfigValidation)
	}
	logger := slog.New(opts.Logger)
	if opts.EventHooks == nil {
		return Report{}, fmt.Errorf("%w: EventHooks implementation cannot be nil (use NoOpHooks if needed)", ErrConfigValidation)
	}

	version := opts.AppVersion
	if version == "" {
		version = "dev"
	}
	logger.Debug("Starting blade-formatter", slog.String("version", version), slog.Any("paths", opts.Paths))

	engine, err := NewEngine(ctx, opts)
	if err != nil {
		logger.Error("Engine initialization failed", slog.String("error", err.Error()))
		return Report{}, err
	}
	return engine.Run()
}
