package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// PredictionProcessor выполняет задания расчета прогнозов
type PredictionProcessor struct {
	db            *gorm.DB
	ml            *MLClient
	notifications *NotificationService
	cache         Cache // nil, если Redis недоступен
	log           *logrus.Logger
}

// NewPredictionProcessor создает обработчик прогнозов
func NewPredictionProcessor(db *gorm.DB, ml *MLClient, notifications *NotificationService, cache Cache, log *logrus.Logger) *PredictionProcessor {
	return &PredictionProcessor{db: db, ml: ml, notifications: notifications, cache: cache, log: log}
}

// ProcessPrediction рассчитывает и сохраняет прогноз для штабеля.
// Отсутствующий штабель — ошибка (сообщение уйдет на повтор),
// неактивный — молча пропускается: прогнозировать нечего.
func (p *PredictionProcessor) ProcessPrediction(ctx context.Context, shtabelID uint, horizonDays *int) error {
	var stockpile models.Shtabel
	err := p.db.Preload("Sklad").First(&stockpile, shtabelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("штабель не найден: %d", shtabelID)
	}
	if err != nil {
		return err
	}

	if stockpile.Status != models.ShtabelStatusActive {
		p.log.Warnf("⚠️ Пропуск прогноза для неактивного штабеля: %d (статус %s)", shtabelID, stockpile.Status)
		return nil
	}

	result, err := p.ml.Predict(ctx, shtabelID, horizonDays)
	if err != nil {
		return err
	}

	modelName := result.ModelName
	if modelName == "" {
		modelName = "xgboost_v1"
	}
	horizon := result.HorizonDays
	if horizon == 0 {
		horizon = 7
	}

	prediction := models.Prediction{
		TS:            time.Now(),
		SkladID:       stockpile.SkladID,
		ShtabelID:     shtabelID,
		ModelName:     modelName,
		ModelVersion:  result.ModelVersion,
		PredictedDate: parseMLDate(result.PredictedDate),
		ProbEvent:     result.ProbEvent,
		RiskLevel:     result.RiskLevel,
		HorizonDays:   horizon,
		IntervalLow:   parseMLDate(result.IntervalLow),
		IntervalHigh:  parseMLDate(result.IntervalHigh),
		Confidence:    result.Confidence,
		Meta:          string(result.Meta),
	}
	if err := p.db.Create(&prediction).Error; err != nil {
		return err
	}

	// Новый прогноз делает закешированный "последний" устаревшим
	if p.cache != nil {
		if err := p.cache.Delete(latestPredictionKey(shtabelID)); err != nil {
			p.log.Warnf("⚠️ Не удалось сбросить кеш прогноза для штабеля %d: %v", shtabelID, err)
		}
	}

	if result.RiskLevel == models.RiskLevelCritical || result.RiskLevel == models.RiskLevelHigh {
		// Ошибка рассылки не роняет прогноз: он уже сохранен
		if err := p.notifications.NotifyRiskUsers(prediction.ID, shtabelID, result.RiskLevel); err != nil {
			p.log.Errorf("❌ Не удалось отправить уведомления о риске: %v", err)
		}
	}

	p.log.WithFields(logrus.Fields{
		"predictionId": prediction.ID,
		"shtabelId":    shtabelID,
		"riskLevel":    result.RiskLevel,
	}).Infof("🤖 Прогноз сохранен: %d для штабеля %d", prediction.ID, shtabelID)

	return nil
}

// ProcessBatchPredictions рассчитывает прогнозы для набора штабелей.
// Ошибка одного штабеля не прерывает остальные.
func (p *PredictionProcessor) ProcessBatchPredictions(ctx context.Context, shtabelIDs []uint) error {
	p.log.Infof("🤖 Обработка пакетных прогнозов для %d штабелей", len(shtabelIDs))

	success := 0
	failed := 0
	for _, shtabelID := range shtabelIDs {
		if err := p.ProcessPrediction(ctx, shtabelID, nil); err != nil {
			failed++
			p.log.WithFields(logrus.Fields{"shtabelId": shtabelID, "error": err.Error()}).
				Warn("⚠️ Ошибка прогноза в пакете")
			continue
		}
		success++
	}

	p.log.Infof("✅ Пакетный прогноз завершен: %d успешно, %d ошибок", success, failed)
	return nil
}

// parseMLDate парсит дату из ответа ML сервиса (ISO, с временем или без)
func parseMLDate(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, *raw); err == nil {
			return &t
		}
	}
	return nil
}
