package logger

import (
	"fmt"
	"strings"

	"github.com/LavaJover/shvark-ib-service/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. The "console" format gives colored
// development output, anything else produces JSON.
func New(cfg config.LogConfig, env string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}

	var zcfg zap.Config
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "ib-service"), zap.String("env", env)), nil
}

func MustNew(cfg config.LogConfig, env string) *zap.Logger {
	logger, err := New(cfg, env)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	return logger
}
