// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func getEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// newLogger writes every entry at or above level to console and, when
// fileName is set, to a rotating log file. flush syncs and closes the file.
func newLogger(console io.Writer, fileName, level string) (logger *zap.Logger, flush func() error, err error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(getEncoder(), zapcore.Lock(zapcore.AddSync(console)), lvl),
	}

	var file *lumberjack.Logger
	if fileName != "" {
		// lumberjack.Logger is already safe for concurrent use.
		file = &lumberjack.Logger{
			Filename:   fileName,
			MaxSize:    100, // megabytes
			MaxBackups: 2,
			MaxAge:     15, // days
		}
		cores = append(cores, zapcore.NewCore(getEncoder(), zapcore.AddSync(file), lvl))
	}

	logger = zap.New(zapcore.NewTee(cores...))
	flush = func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, flush, nil
}
