package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// stubPublisher записывает публикации вместо отправки в RabbitMQ
type stubPublisher struct {
	published []publishedMessage
	fail      bool
}

type publishedMessage struct {
	routingKey string
	message    interface{}
}

func (p *stubPublisher) Publish(_ context.Context, routingKey string, message interface{}) bool {
	if p.fail {
		return false
	}
	p.published = append(p.published, publishedMessage{routingKey: routingKey, message: message})
	return true
}

func seedShtabel(t *testing.T, db *gorm.DB, status models.ShtabelStatus) *models.Shtabel {
	t.Helper()

	sklad := models.Sklad{Number: 1, Name: "Склад 1"}
	require.NoError(t, db.Create(&sklad).Error)

	shtabel := models.Shtabel{SkladID: sklad.ID, Label: "5", Status: status}
	require.NoError(t, db.Create(&shtabel).Error)
	return &shtabel
}

func TestEnqueuePrediction(t *testing.T) {
	db := newTestDB(t)
	publisher := &stubPublisher{}
	service := NewPredictionService(db, nil, publisher, newTestLogger())

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)

	horizon := 14
	require.NoError(t, service.EnqueuePrediction(context.Background(), shtabel.ID, &horizon))

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "prediction.calculate", publisher.published[0].routingKey)
	payload := publisher.published[0].message.(map[string]interface{})
	assert.Equal(t, shtabel.ID, payload["shtabelId"])
	assert.Equal(t, 14, payload["horizonDays"])
}

func TestEnqueuePredictionUnknownShtabel(t *testing.T) {
	db := newTestDB(t)
	publisher := &stubPublisher{}
	service := NewPredictionService(db, nil, publisher, newTestLogger())

	err := service.EnqueuePrediction(context.Background(), 999, nil)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, publisher.published)
}

func TestEnqueuePredictionPublishFailure(t *testing.T) {
	db := newTestDB(t)
	publisher := &stubPublisher{fail: true}
	service := NewPredictionService(db, nil, publisher, newTestLogger())

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)

	err := service.EnqueuePrediction(context.Background(), shtabel.ID, nil)
	assert.Error(t, err)
}

func TestEnqueueBatchAllActive(t *testing.T) {
	db := newTestDB(t)
	publisher := &stubPublisher{}
	service := NewPredictionService(db, nil, publisher, newTestLogger())

	sklad := models.Sklad{Number: 1, Name: "Склад 1"}
	require.NoError(t, db.Create(&sklad).Error)
	require.NoError(t, db.Create(&models.Shtabel{SkladID: sklad.ID, Label: "1", Status: models.ShtabelStatusActive}).Error)
	require.NoError(t, db.Create(&models.Shtabel{SkladID: sklad.ID, Label: "2", Status: models.ShtabelStatusActive}).Error)
	require.NoError(t, db.Create(&models.Shtabel{SkladID: sklad.ID, Label: "3", Status: models.ShtabelStatusFired}).Error)

	// Пустой список — все активные штабели
	count, err := service.EnqueueBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "prediction.batch", publisher.published[0].routingKey)
	payload := publisher.published[0].message.(map[string]interface{})
	assert.Len(t, payload["shtabelIds"], 2)
}

func TestEnqueueBatchNoActiveShtabels(t *testing.T) {
	db := newTestDB(t)
	publisher := &stubPublisher{}
	service := NewPredictionService(db, nil, publisher, newTestLogger())

	count, err := service.EnqueueBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, publisher.published)
}

func TestEnqueueBatchExplicitIDs(t *testing.T) {
	db := newTestDB(t)
	publisher := &stubPublisher{}
	service := NewPredictionService(db, nil, publisher, newTestLogger())

	count, err := service.EnqueueBatch(context.Background(), []uint{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEnqueueTraining(t *testing.T) {
	db := newTestDB(t)
	publisher := &stubPublisher{}
	service := NewPredictionService(db, nil, publisher, newTestLogger())

	err := service.EnqueueTraining(context.Background(), "xgboost_v1", "2.0.0", map[string]interface{}{"n_estimators": 500})
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "model.train", publisher.published[0].routingKey)
	payload := publisher.published[0].message.(map[string]interface{})
	assert.Equal(t, "xgboost_v1", payload["modelName"])
	assert.Equal(t, "2.0.0", payload["modelVersion"])
}

func TestLatestForShtabel(t *testing.T) {
	db := newTestDB(t)
	service := NewPredictionService(db, nil, &stubPublisher{}, newTestLogger())

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)

	old := models.Prediction{
		TS: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), SkladID: shtabel.SkladID, ShtabelID: shtabel.ID,
		ModelName: "xgboost_v1", RiskLevel: models.RiskLevelLow, HorizonDays: 7,
	}
	fresh := models.Prediction{
		TS: time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC), SkladID: shtabel.SkladID, ShtabelID: shtabel.ID,
		ModelName: "xgboost_v1", RiskLevel: models.RiskLevelHigh, HorizonDays: 7,
	}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&fresh).Error)

	latest, err := service.LatestForShtabel(shtabel.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.RiskLevelHigh, latest.RiskLevel)
}

func TestLatestForShtabelEmpty(t *testing.T) {
	db := newTestDB(t)
	service := NewPredictionService(db, nil, &stubPublisher{}, newTestLogger())

	latest, err := service.LatestForShtabel(42)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestListPredictionsFiltered(t *testing.T) {
	db := newTestDB(t)
	service := NewPredictionService(db, nil, &stubPublisher{}, newTestLogger())

	shtabel := seedShtabel(t, db, models.ShtabelStatusActive)
	for _, level := range []models.RiskLevel{models.RiskLevelLow, models.RiskLevelHigh, models.RiskLevelCritical} {
		require.NoError(t, db.Create(&models.Prediction{
			TS: time.Now().UTC(), SkladID: shtabel.SkladID, ShtabelID: shtabel.ID,
			ModelName: "xgboost_v1", RiskLevel: level, HorizonDays: 7,
		}).Error)
	}

	critical := models.RiskLevelCritical
	predictions, err := service.ListPredictions(&shtabel.ID, &critical, 10)
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, models.RiskLevelCritical, predictions[0].RiskLevel)

	all, err := service.ListPredictions(nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
