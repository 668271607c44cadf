// Package logger owns the process-wide zap logger and adapts it to the
// core.Logger interface used by the rendering packages.
package logger

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// Log is the shared logger. It is a no-op until Init or SetLogger is called.
var Log = zap.NewNop()

// Config selects the logger's level and encoder
type Config struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Development bool   `yaml:"development"` // console encoder with caller and stack traces
}

// New builds a zap logger from the given configuration
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, errors.Wrapf(core.ErrInvalidConfig, "log level %q", cfg.Level)
		}
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	z, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	return z, nil
}

// Init replaces the shared logger with one built from cfg
func Init(cfg Config) error {
	z, err := New(cfg)
	if err != nil {
		return err
	}
	SetLogger(z)
	return nil
}

// SetLogger replaces the shared logger
func SetLogger(z *zap.Logger) {
	Log = z
}

// Printf adapts a zap logger to core.Logger. Lines are logged at info level.
func Printf(z *zap.Logger) core.Logger {
	return printfLogger{sugar: z.Sugar()}
}

type printfLogger struct {
	sugar *zap.SugaredLogger
}

func (p printfLogger) Printf(format string, args ...interface{}) {
	p.sugar.Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}
