package logger

import "fmt"

// CronLogger adapts Logger to the robfig/cron Logger interface
type CronLogger struct {
	l *Logger
}

// Cron returns an adapter usable with cron.WithLogger
func (l *Logger) Cron() CronLogger {
	return CronLogger{l: l.Component("cron")}
}

// Info logs routine scheduler messages at debug level
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.WithFields(pairs(keysAndValues)).Debug(msg)
}

// Error logs scheduler failures
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.WithFields(pairs(keysAndValues)).ErrorWithErr(err, msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
