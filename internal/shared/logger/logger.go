package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options controla nível e arquivo de log. Zero value = stdout em info.
type Options struct {
	Level string // debug|info|warn|error
	File  string // quando preenchido, grava também em arquivo rotacionado
}

func New(serviceName string, env string) (*zap.Logger, error) {
	return NewWithOptions(serviceName, env, Options{})
}

func NewWithOptions(serviceName string, env string, opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	// sempre garantir que serviço e env entrem como campos padrão
	fields := zap.Fields(
		zap.String("service", serviceName),
		zap.String("env", env),
	)

	l, err := cfg.Build(fields)
	if err != nil {
		return nil, err
	}
	if opts.File == "" {
		return l, nil
	}

	// arquivo sempre em JSON, independente do ambiente
	lw := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100, // MB
		MaxBackups: 7,
		MaxAge:     14, // dias
		Compress:   true,
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(lw), cfg.Level).
		With([]zapcore.Field{zap.String("service", serviceName), zap.String("env", env)})

	return l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	})), nil
}

// FromConfig é o atalho usado pelos mains: nível e arquivo vêm do ambiente.
func FromConfig(serviceName, env, level, file string) (*zap.Logger, error) {
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, err
		}
	}
	return NewWithOptions(serviceName, env, Options{Level: level, File: file})
}
