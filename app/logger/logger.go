package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"track-forge/app/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 包装 zap.Logger
type Logger struct {
	*zap.Logger
	sugar      *zap.SugaredLogger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// parseLevel 解析日志级别，未知级别按 info 处理
func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New 使用给定配置创建新的日志记录器实例
func New(cfg config.LogConfig) *Logger {
	level := parseLevel(cfg.Level)
	encCfg := encoderConfig()

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		// 文本格式使用带颜色的级别
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(consoleCfg)
	}

	if cfg.Output != "file" {
		core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
		return wrap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	}

	logDir := cfg.Dir
	if logDir == "" {
		logDir = "data/logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic("创建日志目录失败: " + err.Error())
	}

	// 按日期命名日志文件，lumberjack 负责大小轮转
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, time.Now().Format("2006-01-02")+".log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	fileCore := zapcore.NewCore(encoder, zapcore.AddSync(rotator), level)
	core := fileCore
	if cfg.Level == "debug" {
		// 调试模式下同时输出到控制台
		consoleCfg := encCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stdout), level)
		core = zapcore.NewTee(fileCore, consoleCore)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := wrap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	l.cancelFunc = cancel

	l.wg.Add(1)
	go l.dailyRotateRoutine(ctx, rotator, logDir)

	return l
}

// NewFromZap 用现有的 zap.Logger 构建（测试中配合 zaptest 使用）
func NewFromZap(z *zap.Logger) *Logger {
	return wrap(z)
}

// NewNop 返回不输出任何内容的日志器
func NewNop() *Logger {
	return wrap(zap.NewNop())
}

func wrap(z *zap.Logger) *Logger {
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// dailyRotateRoutine 每日凌晨切换日志文件
func (l *Logger) dailyRotateRoutine(ctx context.Context, rotator *lumberjack.Logger, logDir string) {
	defer l.wg.Done()

	for {
		now := time.Now()
		nextDay := now.AddDate(0, 0, 1)
		nextDay = time.Date(nextDay.Year(), nextDay.Month(), nextDay.Day(), 0, 0, 0, 0, nextDay.Location())

		select {
		case <-ctx.Done():
			return
		case <-time.After(nextDay.Sub(now) + time.Second): // 增加 1 秒缓冲确保跨过凌晨
			rotator.Filename = filepath.Join(logDir, nextDay.Format("2006-01-02")+".log")
			// 关闭当前文件，下次写入时打开新文件
			_ = rotator.Close()
		}
	}
}

// Close 关闭 logger 并等待后台任务完成
func (l *Logger) Close() error {
	if l.cancelFunc != nil {
		l.cancelFunc()
		l.wg.Wait()
	}
	return l.Logger.Sync()
}

// Sugar 返回 SugaredLogger 实例
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// Named 返回带名称的子日志器
func (l *Logger) Named(name string) *Logger {
	return wrap(l.Logger.Named(name))
}

// With 返回附加字段的子日志器
func (l *Logger) With(fields ...zap.Field) *Logger {
	return wrap(l.Logger.With(fields...))
}

// WithError 向日志记录器添加错误字段
func (l *Logger) WithError(err error) *zap.Logger {
	return l.Logger.With(zap.Error(err))
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

func (l *Logger) Fatalf(template string, args ...interface{}) {
	l.sugar.Fatalf(template, args...)
}

// Sync 刷新缓冲区
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
