package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func init() {
	// Пакеты могут логировать ещё до Init (например, в тестах), поэтому пишем в никуда.
	Log = logrus.New()
	Log.SetOutput(io.Discard)
}

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}
