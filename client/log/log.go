package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"
)

// Base is the logger handed to the library components. In non-verbose runs
// it is muted so the spinner output stays clean.
var Base *slog.Logger

func Init(verbose bool) error {
	if !verbose {
		Base = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	options := slog.HandlerOptions{Level: logLevel}

	switch format := viper.GetString("log-format"); format {
	case "json":
		Base = slog.New(slog.NewJSONHandler(os.Stderr, &options))
	case "text":
		Base = slog.New(slog.NewTextHandler(os.Stderr, &options))
	default:
		return fmt.Errorf("unknown log format '%s'", format)
	}

	return nil
}
