package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// trainLockTTL страхует от вечной блокировки при падении процесса:
// дольше обучение все равно не живет (таймаут ML клиента)
const trainLockTTL = 2 * time.Hour

// ModelTrainingProcessor выполняет задания обучения моделей
type ModelTrainingProcessor struct {
	db    *gorm.DB
	ml    *MLClient
	cache Cache // nil, если Redis недоступен
	log   *logrus.Logger
}

// NewModelTrainingProcessor создает обработчик обучения моделей
func NewModelTrainingProcessor(db *gorm.DB, ml *MLClient, cache Cache, log *logrus.Logger) *ModelTrainingProcessor {
	return &ModelTrainingProcessor{db: db, ml: ml, cache: cache, log: log}
}

// ProcessTraining запускает обучение модели и сохраняет результат.
// Артефакт создается/переводится в TRAINING до вызова ML сервиса;
// при любой ошибке помечается FAILED. Повторное задание той же модели
// во время обучения пропускается через блокировку в Redis.
func (p *ModelTrainingProcessor) ProcessTraining(ctx context.Context, modelName, modelVersion string, trainConfig map[string]interface{}) error {
	if p.cache != nil {
		lockKey := fmt.Sprintf("model:train:lock:%s:%s", modelName, modelVersion)
		acquired, err := p.cache.SetNX(lockKey, "1", trainLockTTL)
		if err != nil {
			p.log.Warnf("⚠️ Не удалось взять блокировку обучения %s: %v", lockKey, err)
		} else if !acquired {
			p.log.Warnf("⚠️ Обучение %s v%s уже идет, задание пропущено", modelName, modelVersion)
			return nil
		} else {
			defer func() {
				if err := p.cache.Delete(lockKey); err != nil {
					p.log.Warnf("⚠️ Не удалось снять блокировку обучения %s: %v", lockKey, err)
				}
			}()
		}
	}

	configJSON, _ := json.Marshal(trainConfig)

	var artifact models.ModelArtifact
	err := p.db.Where("name = ? AND version = ?", modelName, modelVersion).First(&artifact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		artifact = models.ModelArtifact{
			Name:         modelName,
			Version:      modelVersion,
			Status:       models.ModelStatusTraining,
			TrainingData: string(configJSON),
		}
		if err := p.db.Create(&artifact).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		if err := p.db.Model(&artifact).Updates(map[string]interface{}{
			"status":        models.ModelStatusTraining,
			"training_data": string(configJSON),
		}).Error; err != nil {
			return err
		}
	}

	p.log.WithFields(logrus.Fields{
		"modelArtifactId": artifact.ID,
		"model":           modelName,
		"version":         modelVersion,
	}).Infof("🤖 Начало обучения модели: %s v%s", modelName, modelVersion)

	result, err := p.ml.Train(ctx, modelName, modelVersion, trainConfig)
	if err != nil {
		p.markFailed(modelName, modelVersion)
		return err
	}

	status := models.ModelStatusActive
	if !result.Success {
		status = models.ModelStatusFailed
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        status,
		"path":          result.ModelPath,
		"trained_at":    now,
		"trained_by":    "system",
		"hyperparams":   string(result.Hyperparams),
		"train_metrics": string(result.TrainMetrics),
		"val_metrics":   string(result.ValMetrics),
		"test_metrics":  string(result.TestMetrics),
		"meta":          string(result.Meta),
	}
	if result.FileSize != nil {
		updates["file_size"] = *result.FileSize
	}
	if err := p.db.Model(&artifact).Updates(updates).Error; err != nil {
		return err
	}

	if result.Metrics != nil {
		if err := p.saveMetrics(modelName, modelVersion, result.Metrics); err != nil {
			p.log.Errorf("❌ Не удалось сохранить метрики модели %s v%s: %v", modelName, modelVersion, err)
		}
	}

	p.log.WithFields(logrus.Fields{
		"modelArtifactId": artifact.ID,
		"success":         result.Success,
	}).Infof("✅ Обучение модели завершено: %s v%s", modelName, modelVersion)

	return nil
}

func (p *ModelTrainingProcessor) markFailed(modelName, modelVersion string) {
	if err := p.db.Model(&models.ModelArtifact{}).
		Where("name = ? AND version = ?", modelName, modelVersion).
		Update("status", models.ModelStatusFailed).Error; err != nil {
		p.log.Errorf("❌ Не удалось обновить статус артефакта модели: %v", err)
	}
}

func (p *ModelTrainingProcessor) saveMetrics(modelName, modelVersion string, m *TrainMetrics) error {
	periodStart, err := ParseFlexibleDate(m.PeriodStart, false)
	if err != nil {
		return err
	}
	periodEnd, err := ParseFlexibleDate(m.PeriodEnd, false)
	if err != nil {
		return err
	}

	return p.db.Create(&models.Metric{
		ModelName:        modelName,
		ModelVersion:     modelVersion,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		MAEDays:          m.MAEDays,
		RMSEDays:         m.RMSEDays,
		MAPE:             m.MAPE,
		AccuracyWithin2d: m.AccuracyWithin2d,
		AccuracyWithin3d: m.AccuracyWithin3d,
		AccuracyWithin5d: m.AccuracyWithin5d,
		CIndex:           m.CIndex,
		Precision:        m.Precision,
		Recall:           m.Recall,
		F1Score:          m.F1Score,
		Raw:              string(m.Raw),
	}).Error
}
