// Package logging builds the zap logger shared by every component.
// The interactive UI owns the terminal, so it logs to a file in the data dir;
// one-shot commands log warnings to stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logFileName = "coverchat.log"

// Options control logger construction.
type Options struct {
	Level   string
	DataDir string
	// ToFile sends output to DataDir/coverchat.log instead of stderr.
	ToFile bool
}

// New builds a production JSON logger.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.Sampling = nil
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	if opts.ToFile {
		if opts.DataDir == "" {
			return nil, fmt.Errorf("log file requires a data dir")
		}
		if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		path := Path(opts.DataDir)
		config.OutputPaths = []string{path}
		config.ErrorOutputPaths = []string{path}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.With(zap.Int("pid", os.Getpid())), nil
}

// Path returns the log file location for dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, logFileName)
}
