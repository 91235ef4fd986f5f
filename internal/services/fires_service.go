package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// accuracyThresholdDays — прогноз считается точным при отклонении не более ±2 дней
const accuracyThresholdDays = 2.0

// FiresService обрабатывает CSV с актами о возгораниях
type FiresService struct {
	db       *gorm.DB
	resolver *EntityResolver
	log      *logrus.Logger
}

// NewFiresService создает сервис импорта актов о возгораниях
func NewFiresService(db *gorm.DB, resolver *EntityResolver, log *logrus.Logger) *FiresService {
	return &FiresService{db: db, resolver: resolver, log: log}
}

// ProcessCSV обрабатывает строки CSV возгораний. Помимо записи акта,
// помечает штабель как сгоревший и проставляет фактическую дату
// возгорания в открытых прогнозах для расчета метрик точности.
func (s *FiresService) ProcessCSV(rows []map[string]string, uploadID uint) (int, int, []models.RowError) {
	processed := 0
	failed := 0
	rowErrors := make([]models.RowError, 0)

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"totalRows": len(rows),
	}).Infof("🔥 Обработка %d записей возгораний", len(rows))

	for i, row := range rows {
		rowNumber := i + 2

		if row["Склад"] == "" || row["Дата начала"] == "" || row["Дата составления"] == "" {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				"Отсутствуют обязательные поля: Склад, Дата начала или Дата составления")
			continue
		}

		skladNumber, err := strconv.Atoi(strings.TrimSpace(row["Склад"]))
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверный номер склада: %s", row["Склад"]))
			continue
		}

		reportDate, reportErr := ParseFlexibleDate(row["Дата составления"], false)
		startDate, startErr := ParseFlexibleDate(row["Дата начала"], false)
		if reportErr != nil || startErr != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверный формат даты: %s или %s", row["Дата составления"], row["Дата начала"]))
			continue
		}

		endDate := ParseOptionalDate(row["Дата окончания"], false)
		formedAt := ParseOptionalDate(row["Нач.форм.штабеля"], false)
		weightT := ParseFloatOrNull(row["Вес по акту, тн"])

		var durationHours *float64
		if endDate != nil {
			hours := endDate.Sub(startDate).Hours()
			durationHours = &hours
		}

		var mark *string
		if m := strings.TrimSpace(row["Груз"]); m != "" {
			mark = &m
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			sklad, err := s.resolver.ResolveSklad(tx, skladNumber)
			if err != nil {
				return err
			}

			// Штабель в акте может отсутствовать; существующий — помечаем сгоревшим
			var shtabelID *uint
			if label := strings.TrimSpace(row["Штабель"]); label != "" {
				shtabel, err := s.resolver.FindShtabel(tx, sklad.ID, label)
				if err != nil {
					return err
				}
				if shtabel != nil {
					shtabelID = &shtabel.ID
					if err := tx.Model(&models.Shtabel{}).Where("id = ?", shtabel.ID).
						Update("status", models.ShtabelStatusFired).Error; err != nil {
						return err
					}
				}
			}

			if err := tx.Create(&models.FireRecord{
				SkladID:       sklad.ID,
				ShtabelID:     shtabelID,
				ReportDate:    reportDate,
				Mark:          mark,
				WeightT:       weightT,
				StartDate:     startDate,
				EndDate:       endDate,
				FormedAt:      formedAt,
				DurationHours: durationHours,
				DamageT:       weightT,
			}).Error; err != nil {
				return err
			}

			if shtabelID == nil {
				return nil
			}
			return s.backfillPredictions(tx, *shtabelID, startDate)
		})
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber, err.Error())
			s.log.WithFields(logrus.Fields{"row": rowNumber, "error": err.Error()}).
				Warn("⚠️ Не удалось обработать строку возгорания")
			continue
		}

		processed++
	}

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"processed": processed,
		"failed":    failed,
	}).Infof("✅ Импорт возгораний завершен: %d обработано, %d с ошибками", processed, failed)

	return processed, failed, rowErrors
}

// backfillPredictions проставляет фактическую дату возгорания в прогнозах
// штабеля, у которых она еще не заполнена
func (s *FiresService) backfillPredictions(tx *gorm.DB, shtabelID uint, actualFireDate time.Time) error {
	var predictions []models.Prediction
	if err := tx.Where("shtabel_id = ? AND actual_fire_date IS NULL AND predicted_date IS NOT NULL", shtabelID).
		Find(&predictions).Error; err != nil {
		return err
	}

	for _, prediction := range predictions {
		accuracyDays := math.Abs(actualFireDate.Sub(*prediction.PredictedDate).Hours() / 24)
		isAccurate := accuracyDays <= accuracyThresholdDays

		if err := tx.Model(&models.Prediction{}).Where("id = ?", prediction.ID).
			Updates(map[string]interface{}{
				"actual_fire_date": actualFireDate,
				"accuracy_days":    accuracyDays,
				"is_accurate":      isAccurate,
			}).Error; err != nil {
			return err
		}
	}

	return nil
}
