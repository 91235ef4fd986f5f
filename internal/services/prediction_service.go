package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
	"coalfire/server/internal/utils"
)

// latestPredictionTTL — кеш последнего прогноза живет недолго:
// прогнозы пересчитываются батчами и быстро устаревают
const latestPredictionTTL = 5 * time.Minute

// Cache кеширует результаты и держит короткоживущие блокировки.
// Реализуется utils.RedisClient.
type Cache interface {
	Set(key string, value interface{}, ttl time.Duration) error
	GetJSON(key string, dest interface{}) error
	Delete(key string) error
	SetNX(key string, value interface{}, ttl time.Duration) (bool, error)
}

var _ Cache = (*utils.RedisClient)(nil)

func latestPredictionKey(shtabelID uint) string {
	return fmt.Sprintf("prediction:latest:%d", shtabelID)
}

// PredictionService выдает прогнозы и ставит задания на расчет
type PredictionService struct {
	db        *gorm.DB
	cache     Cache // nil, если Redis недоступен
	publisher JobPublisher
	log       *logrus.Logger
}

// NewPredictionService создает сервис прогнозов
func NewPredictionService(db *gorm.DB, cache Cache, publisher JobPublisher, log *logrus.Logger) *PredictionService {
	return &PredictionService{db: db, cache: cache, publisher: publisher, log: log}
}

// EnqueuePrediction ставит задание расчета прогноза для штабеля
func (s *PredictionService) EnqueuePrediction(ctx context.Context, shtabelID uint, horizonDays *int) error {
	var count int64
	if err := s.db.Model(&models.Shtabel{}).Where("id = ?", shtabelID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}

	message := map[string]interface{}{"shtabelId": shtabelID}
	if horizonDays != nil {
		message["horizonDays"] = *horizonDays
	}
	if !s.publisher.Publish(ctx, "prediction.calculate", message) {
		return fmt.Errorf("не удалось поставить задание прогноза в очередь")
	}
	return nil
}

// EnqueueBatch ставит пакетное задание. Пустой список означает
// все активные штабели.
func (s *PredictionService) EnqueueBatch(ctx context.Context, shtabelIDs []uint) (int, error) {
	if len(shtabelIDs) == 0 {
		if err := s.db.Model(&models.Shtabel{}).
			Where("status = ?", models.ShtabelStatusActive).
			Pluck("id", &shtabelIDs).Error; err != nil {
			return 0, err
		}
	}
	if len(shtabelIDs) == 0 {
		return 0, nil
	}

	if !s.publisher.Publish(ctx, "prediction.batch", map[string]interface{}{"shtabelIds": shtabelIDs}) {
		return 0, fmt.Errorf("не удалось поставить пакетное задание в очередь")
	}
	return len(shtabelIDs), nil
}

// EnqueueTraining ставит задание обучения модели
func (s *PredictionService) EnqueueTraining(ctx context.Context, modelName, modelVersion string, trainConfig map[string]interface{}) error {
	message := map[string]interface{}{
		"modelName":    modelName,
		"modelVersion": modelVersion,
	}
	if trainConfig != nil {
		message["config"] = trainConfig
	}
	if !s.publisher.Publish(ctx, "model.train", message) {
		return fmt.Errorf("не удалось поставить задание обучения в очередь")
	}
	return nil
}

// LatestForShtabel возвращает последний прогноз штабеля (с кешем)
func (s *PredictionService) LatestForShtabel(shtabelID uint) (*models.Prediction, error) {
	cacheKey := latestPredictionKey(shtabelID)
	if s.cache != nil {
		var cached models.Prediction
		if err := s.cache.GetJSON(cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	var prediction models.Prediction
	err := s.db.Where("shtabel_id = ?", shtabelID).Order("ts DESC").First(&prediction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(cacheKey, prediction, latestPredictionTTL); err != nil {
			s.log.Warnf("⚠️ Не удалось закешировать прогноз %d: %v", prediction.ID, err)
		}
	}
	return &prediction, nil
}

// ListPredictions возвращает прогнозы, свежие первыми
func (s *PredictionService) ListPredictions(shtabelID *uint, riskLevel *models.RiskLevel, limit int) ([]models.Prediction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.Order("ts DESC").Limit(limit)
	if shtabelID != nil {
		query = query.Where("shtabel_id = ?", *shtabelID)
	}
	if riskLevel != nil {
		query = query.Where("risk_level = ?", *riskLevel)
	}

	var predictions []models.Prediction
	if err := query.Find(&predictions).Error; err != nil {
		return nil, err
	}
	return predictions, nil
}

// ListMetrics возвращает метрики качества моделей
func (s *PredictionService) ListMetrics(modelName string, limit int) ([]models.Metric, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.db.Order("created_at DESC").Limit(limit)
	if modelName != "" {
		query = query.Where("model_name = ?", modelName)
	}

	var metrics []models.Metric
	if err := query.Find(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}
