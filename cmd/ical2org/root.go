package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ical2org/internal/config"
	"ical2org/internal/convert"
	"ical2org/internal/ics"
	appLog "ical2org/internal/log"
	"ical2org/internal/tz"
)

// usageError marks problems a correct invocation can never produce: bad
// flags, bad timezone names, unreadable inputs.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

type rootFlags struct {
	days            int
	timezone        string
	printTimezones  bool
	continueOnError bool
	configPath      string
	cacheDir        string
	quiet           bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "ical2org [flags] ICS_FILE ORG_FILE",
		Short: "Convert iCalendar data into org-mode entries",
		Long: `Convert iCalendar data into org-mode entries.

Recurring events are expanded into concrete occurrences within a window of
--days days around now, and each occurrence becomes one org outline entry.

ICS_FILE may be a path, an http(s) URL, or - for stdin.
ORG_FILE may be a path or - for stdout.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if flags.printTimezones {
				return nil
			}
			if len(args) != 2 {
				return usageErrorf("expected ICS_FILE and ORG_FILE arguments, got %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, &flags)
		},
	}

	cmd.Flags().IntVarP(&flags.days, "days", "d", 90,
		"window half-width in days (left and right from current time)")
	cmd.Flags().StringVarP(&flags.timezone, "timezone", "t", "",
		"timezone used for display (default: local timezone)")
	cmd.Flags().BoolVarP(&flags.printTimezones, "print-timezones", "p", false,
		"print acceptable timezone names and exit")
	cmd.Flags().BoolVar(&flags.continueOnError, "continue-on-error", false,
		"attempt to continue even if some events are not handled")
	cmd.Flags().StringVar(&flags.configPath, "config", "",
		"path to the YAML defaults file (default: user config dir)")
	cmd.Flags().StringVar(&flags.cacheDir, "cache-dir", "",
		"cache directory for calendars fetched over HTTP")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false,
		"only log errors")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	return cmd
}

func run(cmd *cobra.Command, args []string, flags *rootFlags) error {
	if flags.quiet {
		appLog.SetLevel(slog.LevelError)
	}

	if flags.printTimezones {
		names, err := tz.Available()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	configPath := flags.configPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return &usageError{err: err}
	}

	// Flags override config file values.
	if !cmd.Flags().Changed("days") {
		flags.days = cfg.Days
	}
	if !cmd.Flags().Changed("timezone") {
		flags.timezone = cfg.Timezone
	}
	if !cmd.Flags().Changed("continue-on-error") {
		flags.continueOnError = cfg.ContinueOnError
	}
	if !cmd.Flags().Changed("cache-dir") {
		flags.cacheDir = cfg.CacheDir
	}

	if flags.days < 0 {
		return usageErrorf("--days must be non-negative, got %d", flags.days)
	}

	loc, err := tz.Resolve(flags.timezone)
	if err != nil {
		return usageErrorf("%v\nUse --print-timezones to show acceptable values", err)
	}

	in, closeIn, err := openInput(cmd, args[0], flags.cacheDir)
	if err != nil {
		return &usageError{err: err}
	}
	defer closeIn()

	out, closeOut, err := openOutput(cmd, args[1])
	if err != nil {
		return &usageError{err: err}
	}

	convErr := convert.Convert(in, out, convert.Options{
		Days:            flags.days,
		Location:        loc,
		ContinueOnError: flags.continueOnError,
	})
	if closeErr := closeOut(); convErr == nil {
		convErr = closeErr
	}
	return convErr
}

// openInput resolves the ICS_FILE argument: stdin, an HTTP(S) URL, or a
// local path.
func openInput(cmd *cobra.Command, arg, cacheDir string) (io.Reader, func() error, error) {
	nopClose := func() error { return nil }

	switch {
	case arg == "-":
		return cmd.InOrStdin(), nopClose, nil

	case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
		body, err := ics.NewFetcher(cacheDir).Fetch(cmd.Context(), arg)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s: %w", arg, err)
		}
		return bytes.NewReader(body), nopClose, nil

	default:
		f, err := os.Open(arg)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}

func openOutput(cmd *cobra.Command, arg string) (io.Writer, func() error, error) {
	if arg == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(arg)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
