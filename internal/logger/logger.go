package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	base *logrus.Logger
	once sync.Once
)

// Init sets up the shared logger once with env-configured level.
func Init() {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stdout)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	})
}

// SetLevel overrides the level picked from LOG_LEVEL.
func SetLevel(raw string) {
	ensure()
	base.SetLevel(parseLevel(raw))
}

// SetOutput redirects log output, used by tests and the CLI.
func SetOutput(w io.Writer) {
	ensure()
	base.SetOutput(w)
}

func parseLevel(raw string) logrus.Level {
	level := strings.TrimSpace(strings.ToLower(raw))
	if level == "" {
		return logrus.InfoLevel
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

func ensure() {
	Init()
}

// StdLogger returns a stdlib logger that writes into the shared logrus logger.
func StdLogger() *log.Logger {
	ensure()
	return log.New(base.WriterLevel(logrus.InfoLevel), "", 0)
}

// Writer returns an io.Writer at info level, used for gin's default writer.
func Writer() io.Writer {
	ensure()
	return base.WriterLevel(logrus.InfoLevel)
}

// Debugf logs a debug message with class/method context.
func Debugf(className, methodName, format string, args ...interface{}) {
	ensure()
	base.Debugf("%s -> %s: %s", className, methodName, fmt.Sprintf(format, args...))
}

// Infof logs an informational message with class/method context.
func Infof(className, methodName, format string, args ...interface{}) {
	ensure()
	base.Infof("%s -> %s: %s", className, methodName, fmt.Sprintf(format, args...))
}

// Warnf logs a warning message with class/method context.
func Warnf(className, methodName, format string, args ...interface{}) {
	ensure()
	base.Warnf("%s -> %s: %s", className, methodName, fmt.Sprintf(format, args...))
}

// Error logs an error message with required format.
func Error(className, methodName string, err error) {
	ensure()
	if err == nil {
		err = errors.New("unknown error")
	}
	base.Errorf("%s -> %s: %s", className, methodName, err.Error())
}

// Errorf logs a formatted error message with class/method context.
func Errorf(className, methodName, format string, args ...interface{}) {
	ensure()
	base.Errorf("%s -> %s: %s", className, methodName, fmt.Sprintf(format, args...))
}
