package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器,InitLogger 之前为空日志器
var Logger zerolog.Logger

const (
	MainLogFile  = "adscout.log"
	ErrorLogFile = "adscout_error.log" // 只有 error 及以上
)

// LogConfig 日志配置,轮转参数直接交给 lumberjack
type LogConfig struct {
	Level      string
	LogDir     string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	NoColor    bool // 控制台输出被重定向时关闭颜色
}

// DefaultLogConfig 与 logging 配置段的默认值一致
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger 初始化全局日志器
// 输出三处: stderr 控制台、完整日志文件、只含错误的日志文件。
// stdout 留给进度条和运行摘要。无法识别的级别按 info 处理
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    config.NoColor,
	}
	writer := zerolog.MultiLevelWriter(
		console,
		rotatingFile(config, MainLogFile),
		errorOnly{rotatingFile(config, ErrorLogFile)},
	)

	Logger = zerolog.New(writer).With().Timestamp().Caller().Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

func rotatingFile(config LogConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, name),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// errorOnly 丢弃 error 以下的事件
// MultiLevelWriter 总是调用 WriteLevel,没有级别的 Write 直接丢弃
type errorOnly struct {
	file *lumberjack.Logger
}

func (w errorOnly) Write(p []byte) (int, error) {
	return len(p), nil
}

func (w errorOnly) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.ErrorLevel {
		return len(p), nil
	}
	return w.file.Write(p)
}

// RunLogger 带运行ID和关键词的子日志器,一次搜索的日志可以按 run 过滤
func RunLogger(runID, keywords string) zerolog.Logger {
	return Logger.With().Str("run", runID).Str("keywords", keywords).Logger()
}

func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

// Error 记录错误及其说明
func Error(err error, msg string) {
	Logger.Error().Err(err).Msg(msg)
}

func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}
