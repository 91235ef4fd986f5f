package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetOutput(os.Stdout)
	logg.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logg.SetLevel(logrus.InfoLevel)
}

// InitLogger настраивает уровень и формат логов по окружению.
// В production переключаемся на JSON для агрегаторов логов.
func InitLogger(environment string) *logrus.Logger {
	if environment == "production" {
		logg.SetFormatter(&logrus.JSONFormatter{})
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logg.SetLevel(parsed)
		}
	}
	return logg
}
