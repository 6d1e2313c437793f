package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
}

// NewLogger builds the process-wide logger and installs it as the zap
// global, so code that falls back to zap.L() picks it up. An unknown
// level downgrades to info instead of failing startup.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	}

	var level zapcore.Level
	if err := level.Set(c.Level); err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	l, err := cfg.Build(zap.Fields(zap.String("service", c.App)))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}
