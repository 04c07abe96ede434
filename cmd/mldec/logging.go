package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/tdrkit/mldec/metalib"
	"github.com/tdrkit/mldec/scan"
)

// setupLogging builds a zap logger per the resolved level/format and
// hands it to every library package. Diagnostics go to stderr so piped
// document output stays clean.
func setupLogging(level, format string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}

	if format == "" {
		// Humans get the console encoder; pipes and log collectors get JSON.
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "console"
		} else {
			format = "json"
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = format
	cfg.OutputPaths = []string{"stderr"}
	if format == "console" {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	metalib.SetLogger(logger)
	scan.SetLogger(logger)
	return logger, nil
}
