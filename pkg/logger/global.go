// pkg/logger/global.go
package logger

var globalLogger *Logger

// InitGlobal устанавливает глобальный логгер приложения. Вызывается один раз при старте.
func InitGlobal(logPath, logLevel string, debug bool) error {
	l, err := NewLogger(logPath, logLevel, debug)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

func Get() *Logger {
	return globalLogger
}

func Debug(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debug(format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Info(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Warn(format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if globalLogger != nil {
		globalLogger.Error(format, v...)
	}
}

func Order(strategyID, symbol, action, position string, qty, price float64) {
	if globalLogger != nil {
		globalLogger.Order(strategyID, symbol, action, position, qty, price)
	}
}

func Close() {
	if globalLogger != nil {
		globalLogger.Close()
	}
}
