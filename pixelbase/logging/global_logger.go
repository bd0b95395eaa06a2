package logging

import (
	"fmt"

	"github.com/ataraxie68/pixelscope/pixelbase/timestamp"
	log "github.com/sirupsen/logrus"
)

// InitGlobalLogger initializes main logger
func InitGlobalLogger(levelStr string) error {
	level, err := log.ParseLevel(levelStr)
	if err == nil {
		log.SetLevel(level)
	} else {
		Error(err)
	}
	return nil
}

func SetJsonFormatter() {
	log.SetFormatter(&log.JSONFormatter{})
}

func SetTextFormatter() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestamp.LogsLayout,
	})
}

func SystemErrorf(format string, v ...any) {
	SystemError(fmt.Sprintf(format, v...))
}

func SystemError(v ...any) {
	msg := []any{"System error:"}
	msg = append(msg, v...)
	Error(msg...)
}

func Errorf(format string, v ...any) {
	log.Errorf(format, v...)
}

func Error(v ...any) {
	log.Errorln(v...)
}

func Infof(format string, v ...any) {
	log.Infof(format, v...)
}

func Info(v ...any) {
	log.Infoln(v...)
}

func Debugf(format string, v ...any) {
	log.Debugf(format, v...)
}

func Debug(v ...any) {
	log.Debug(v...)
}

func Warnf(format string, v ...any) {
	log.Warnf(format, v...)
}

func Warn(v ...any) {
	log.Warnln(v...)
}

func Fatal(v ...any) {
	log.Fatal(v...)
}

func Fatalf(format string, v ...any) {
	log.Fatalf(format, v...)
}
