package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

func newPredictionProcessor(db *gorm.DB, serverURL string, cache Cache) *PredictionProcessor {
	log := newTestLogger()
	return NewPredictionProcessor(db, newMLClient(serverURL), NewNotificationService(db, log), cache, log)
}

func mlServer(t *testing.T, riskLevel models.RiskLevel) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model_name":     "xgboost_v1",
			"model_version":  "1.2.0",
			"predicted_date": "2024-07-15",
			"prob_event":     0.75,
			"risk_level":     riskLevel,
			"horizon_days":   7,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProcessPredictionSavesResult(t *testing.T) {
	db := newTestDB(t)
	server := mlServer(t, models.RiskLevelMedium)
	processor := newPredictionProcessor(db, server.URL, nil)

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)

	require.NoError(t, processor.ProcessPrediction(context.Background(), shtabel.ID, nil))

	var prediction models.Prediction
	require.NoError(t, db.First(&prediction).Error)
	assert.Equal(t, shtabel.ID, prediction.ShtabelID)
	assert.Equal(t, shtabel.SkladID, prediction.SkladID)
	assert.Equal(t, "xgboost_v1", prediction.ModelName)
	assert.Equal(t, models.RiskLevelMedium, prediction.RiskLevel)
	require.NotNil(t, prediction.PredictedDate)
	assert.Equal(t, "2024-07-15", prediction.PredictedDate.Format("2006-01-02"))

	// Средний риск не рассылается
	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestProcessPredictionCriticalNotifies(t *testing.T) {
	db := newTestDB(t)
	server := mlServer(t, models.RiskLevelCritical)
	processor := newPredictionProcessor(db, server.URL, nil)

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)
	seedUser(t, db, 100, models.UserStatusActive, true, false)

	require.NoError(t, processor.ProcessPrediction(context.Background(), shtabel.ID, nil))

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeCriticalRisk, notifications[0].Type)
	require.NotNil(t, notifications[0].ShtabelID)
	assert.Equal(t, shtabel.ID, *notifications[0].ShtabelID)
}

func TestProcessPredictionInvalidatesLatestCache(t *testing.T) {
	db := newTestDB(t)
	server := mlServer(t, models.RiskLevelLow)
	cache := newFakeCache()
	processor := newPredictionProcessor(db, server.URL, cache)

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)
	require.NoError(t, cache.Set(latestPredictionKey(shtabel.ID), map[string]interface{}{"id": 1}, 0))

	require.NoError(t, processor.ProcessPrediction(context.Background(), shtabel.ID, nil))

	// Старый «последний прогноз» должен быть сброшен
	_, stale := cache.data[latestPredictionKey(shtabel.ID)]
	assert.False(t, stale)
	assert.Contains(t, cache.deleted, latestPredictionKey(shtabel.ID))
}

func TestProcessPredictionMissingShtabel(t *testing.T) {
	db := newTestDB(t)
	server := mlServer(t, models.RiskLevelLow)
	processor := newPredictionProcessor(db, server.URL, nil)

	err := processor.ProcessPrediction(context.Background(), 999, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "штабель не найден")
}

func TestProcessPredictionInactiveShtabelSkipped(t *testing.T) {
	db := newTestDB(t)
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer server.Close()
	processor := newPredictionProcessor(db, server.URL, nil)

	shtabel := seedShtabel(t, db, models.ShtabelStatusShipped)

	require.NoError(t, processor.ProcessPrediction(context.Background(), shtabel.ID, nil))
	assert.EqualValues(t, 0, atomic.LoadInt32(&requests), "ML сервис не должен вызываться для неактивного штабеля")

	var count int64
	require.NoError(t, db.Model(&models.Prediction{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestProcessBatchPredictionsIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	server := mlServer(t, models.RiskLevelLow)
	processor := newPredictionProcessor(db, server.URL, nil)

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)

	// Несуществующий штабель не должен прервать пакет
	require.NoError(t, processor.ProcessBatchPredictions(context.Background(), []uint{999, shtabel.ID}))

	var count int64
	require.NoError(t, db.Model(&models.Prediction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestParseMLDate(t *testing.T) {
	iso := "2024-07-15T10:30:00Z"
	parsed := parseMLDate(&iso)
	require.NotNil(t, parsed)
	assert.Equal(t, 15, parsed.Day())

	dateOnly := "2024-07-15"
	require.NotNil(t, parseMLDate(&dateOnly))

	empty := ""
	assert.Nil(t, parseMLDate(&empty))
	assert.Nil(t, parseMLDate(nil))

	garbage := "не дата"
	assert.Nil(t, parseMLDate(&garbage))
}
