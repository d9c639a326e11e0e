// pkg/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Уровни логирования
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

type Logger struct {
	logFile   *os.File
	console   io.Writer
	logLevel  string
	debugMode bool
}

// NewLogger создает логгер, пишущий одновременно в stdout и в файл logPath.
// Пустой logPath даёт логгер, пишущий только в stdout.
func NewLogger(logPath string, logLevel string, debug bool) (*Logger, error) {
	if logPath == "" {
		return &Logger{
			console:   os.Stdout,
			logLevel:  strings.ToUpper(logLevel),
			debugMode: debug,
		}, nil
	}

	if dir := dirOf(logPath); dir != "" {
		os.MkdirAll(dir, 0755)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	return &Logger{
		logFile:   file,
		console:   io.MultiWriter(os.Stdout, file),
		logLevel:  strings.ToUpper(logLevel),
		debugMode: debug,
	}, nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}

var levelPriority = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelFatal: 4,
}

func (l *Logger) shouldLog(level string) bool {
	current, ok1 := levelPriority[l.logLevel]
	msg, ok2 := levelPriority[level]
	if !ok1 || !ok2 {
		return true
	}
	return msg >= current
}

func (l *Logger) log(level string, format string, v ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	msg := fmt.Sprintf(format, v...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	color, reset := "", ""
	if l.debugMode {
		switch level {
		case LevelDebug:
			color = "\033[36m"
		case LevelInfo:
			color = "\033[32m"
		case LevelWarn:
			color = "\033[33m"
		case LevelError:
			color = "\033[31m"
		case LevelFatal:
			color = "\033[35m"
		}
		reset = "\033[0m"
	}

	fmt.Fprintf(l.console, "%s[%s] %s %s%s\n", color, level, timestamp, msg, reset)
}

func (l *Logger) Debug(format string, v ...interface{}) { l.log(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.log(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.log(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.log(LevelError, format, v...) }

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(LevelFatal, format, v...)
	log.Fatalf(format, v...)
}

// Order логирует эмитированный ордер стратегии в узнаваемом однострочном формате.
func (l *Logger) Order(strategyID, symbol, action, position string, qty, price float64) {
	icon := "📈"
	if action == "sell" {
		icon = "📉"
	}
	l.Info("%s ОРДЕР %s: %s %s qty=%.6f @ %.4f (%s)", icon, strategyID, action, symbol, qty, price, position)
}

func (l *Logger) Status(stats map[string]string) {
	fmt.Fprintln(l.console, strings.Repeat("─", 50))
	fmt.Fprintln(l.console, "📊 СТАТУС ДВИЖКА")
	for key, value := range stats {
		fmt.Fprintf(l.console, "   %-20s: %s\n", key, value)
	}
	fmt.Fprintln(l.console, strings.Repeat("─", 50))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.logFile.Close()
	}
}
