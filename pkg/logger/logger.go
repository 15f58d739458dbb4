package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 全局日志记录器实例
// 在InitLogger之前为no-op, 方便测试直接使用
var L = zap.NewNop()

// Options 日志配置
// File 非空时额外写入文件, 由lumberjack负责切割
type Options struct {
	Level          string
	ProductionMode bool
	File           string
	MaxSizeMB      int
	MaxBackups     int
	MaxAgeDays     int
}

// `level`可以是“debug”、“info”、“warn”、“error”、“fatal”、“panic”。
// `ProductionMode`确定日志记录器是否使用JSON格式(生产)或控制台格式(开发)。
func InitLogger(opts Options) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(opts.Level)); err != nil {
		zapLevel = zapcore.InfoLevel // 如果解析失败，则默认为Info级别
		fmt.Fprintf(os.Stderr, "Warning: Invalid log level '%s', using default 'info'. Error: %v\n", opts.Level, err)
	}

	var encoder zapcore.Encoder
	if opts.ProductionMode {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder // 彩色级别输出
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	level := zap.NewAtomicLevelAt(zapLevel)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	if opts.File != "" {
		// 文件中始终使用JSON, 便于采集
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), fileWriter, level))
	}

	zapOpts := []zap.Option{zap.AddCaller()}
	if !opts.ProductionMode {
		zapOpts = append(zapOpts, zap.Development())
	}
	L = zap.New(zapcore.NewTee(cores...), zapOpts...)

	L.Info("Zap logger initialized",
		zap.String("level", zapLevel.String()),
		zap.Bool("productionMode", opts.ProductionMode),
		zap.String("file", opts.File))
	return nil
}

// Sync刷新任何缓冲的日志条目。
// 建议在应用程序退出之前调用它。
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}
