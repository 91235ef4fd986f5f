package services

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coalfire/server/internal/config"
	"coalfire/server/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Sklad{},
		&models.Shtabel{},
		&models.Supply{},
		&models.FireRecord{},
		&models.TempRecord{},
		&models.WeatherRecord{},
		&models.Upload{},
		&models.Prediction{},
		&models.ModelArtifact{},
		&models.Metric{},
		&models.User{},
		&models.UserSettings{},
		&models.Notification{},
	))

	return db
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestConfig() *config.Config {
	return &config.Config{
		RiskCriticalTemp:    80,
		RiskHighTemp:        60,
		RiskMediumTemp:      40,
		MLMaxAttempts:       3,
		MLRetryBaseMs:       1,
		MLPredictTimeoutSec: 5,
		MLTrainTimeoutSec:   5,
	}
}

// fakeCache заменяет Redis в тестах хранением в map
type fakeCache struct {
	data    map[string]string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (c *fakeCache) Set(key string, value interface{}, _ time.Duration) error {
	switch v := value.(type) {
	case string:
		c.data[key] = v
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		c.data[key] = string(encoded)
	}
	return nil
}

var errCacheMiss = errors.New("ключ не найден")

func (c *fakeCache) GetJSON(key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return errCacheMiss
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (c *fakeCache) Delete(key string) error {
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCache) SetNX(key string, value interface{}, ttl time.Duration) (bool, error) {
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	return true, c.Set(key, value, ttl)
}
