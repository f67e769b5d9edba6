// Package logger builds the process logger: logrus with optional rotating
// file output and Sentry forwarding for error-level entries.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	FilePath   string // empty = stderr only
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

func New(cfg Config) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.FilePath == "" {
		log.SetOutput(os.Stderr)
		return log
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxAge:     orDefault(cfg.MaxAgeDays, 7),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(rotator, os.Stderr))
	return log
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// InitSentry initializes the Sentry SDK. An empty dsn leaves Sentry disabled.
func InitSentry(dsn, environment, release string) (bool, error) {
	if dsn == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		Tags:             map[string]string{"service": "cinegate"},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Flush waits for buffered Sentry events to be delivered.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// SentryHook forwards error-level entries to Sentry. Entries carrying an
// error field are captured as exceptions, the rest as messages.
type SentryHook struct {
	hub *sentry.Hub
}

func NewSentryHook(hub *sentry.Hub) *SentryHook {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryHook{hub: hub}
}

func (h *SentryHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *SentryHook) Fire(entry *logrus.Entry) error {
	h.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range entry.Data {
			if k == logrus.ErrorKey {
				continue
			}
			if s, ok := v.(string); ok {
				scope.SetTag(k, s)
			} else {
				scope.SetExtra(k, v)
			}
		}
		if err, ok := entry.Data[logrus.ErrorKey].(error); ok && err != nil {
			scope.SetExtra("message", entry.Message)
			h.hub.CaptureException(err)
			return
		}
		h.hub.CaptureMessage(entry.Message)
	})
	return nil
}
