package logger

import (
	"context"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceID 在 Context 中的 Key（没有 otel span 时的兜底）
const TraceIdKey = "trace_id"

// 全局 Logger 实例；Init 之前是 Nop，测试里不初始化也能跑
var Log = zap.NewNop()

// 全局 Logger 的级别，可以热更新
var level = zap.NewAtomicLevel()

// Init 初始化日志组件
// serviceName: 服务名（例如 "matchd"）
// lvl: 日志级别 (debug, info, warn, error)
func Init(serviceName string, lvl string) {
	InitWithFile(serviceName, lvl, "")
}

// InitWithFile 同时写控制台和文件
// logFile 为空时使用 logs/{serviceName}.log；"-" 表示只写控制台
func InitWithFile(serviceName string, lvl string, logFile string) {
	_ = SetLevel(lvl)
	Log = build(serviceName, level, logFile)
}

// SetLevel 修改全局 Logger 的级别，非法值返回错误且不修改
func SetLevel(lvl string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

func New(serviceName string, lvl string, logFile string) *zap.Logger {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		l = zap.InfoLevel
	}
	return build(serviceName, zap.NewAtomicLevelAt(l), logFile)
}

func build(serviceName string, zapLevel zap.AtomicLevel, logFile string) *zap.Logger {

	// 生产环境强制 JSON
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	writeSyncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if logFile == "" {
		logFile = filepath.Join("logs", serviceName+".log")
	}
	if logFile != "-" {
		// 打不开文件就只写控制台，不中断程序
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				writeSyncers = append(writeSyncers, zapcore.AddSync(f))
			}
		}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writeSyncers...),
		zapLevel,
	)
	// AddCallerSkip(1)：跳过本包的封装函数
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", serviceName))
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Info(msg, withTrace(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Error(msg, withTrace(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Warn(msg, withTrace(ctx, fields)...)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Debug(msg, withTrace(ctx, fields)...)
}

// Fatal 会调用 os.Exit
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Fatal(msg, withTrace(ctx, fields)...)
}

// withTrace 优先取 otel span 的 trace id，没有再看 ctx 里的 trace_id
func withTrace(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if traceID, ok := ctx.Value(TraceIdKey).(string); ok && traceID != "" {
		return append(fields, zap.String("trace_id", traceID))
	}
	return fields
}

// Sync 刷新缓冲区（main 里 defer 调用）
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
