package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/config"
	"coalfire/server/internal/models"
)

// TemperatureService обрабатывает CSV с актами замеров температуры
type TemperatureService struct {
	db       *gorm.DB
	resolver *EntityResolver
	cfg      *config.Config
	log      *logrus.Logger
}

// NewTemperatureService создает сервис импорта замеров температуры
func NewTemperatureService(db *gorm.DB, resolver *EntityResolver, cfg *config.Config, log *logrus.Logger) *TemperatureService {
	return &TemperatureService{db: db, resolver: resolver, cfg: cfg, log: log}
}

// CalculateRiskLevel определяет уровень риска самовозгорания по температуре.
// Пороги настраиваются через конфигурацию.
func (s *TemperatureService) CalculateRiskLevel(temperature float64) models.RiskLevel {
	switch {
	case temperature >= s.cfg.RiskCriticalTemp:
		return models.RiskLevelCritical
	case temperature >= s.cfg.RiskHighTemp:
		return models.RiskLevelHigh
	case temperature >= s.cfg.RiskMediumTemp:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// ProcessCSV обрабатывает строки CSV замеров температуры
func (s *TemperatureService) ProcessCSV(rows []map[string]string, uploadID uint) (int, int, []models.RowError) {
	processed := 0
	failed := 0
	rowErrors := make([]models.RowError, 0)

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"totalRows": len(rows),
	}).Infof("🌡️ Обработка %d записей температуры", len(rows))

	for i, row := range rows {
		rowNumber := i + 2

		if row["Склад"] == "" || row["Штабель"] == "" || row["Макс. температура"] == "" || row["Дата акта"] == "" {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				"Отсутствуют обязательные поля: Склад, Штабель, Макс. температура или Дата акта")
			continue
		}

		skladNumber, err := strconv.Atoi(strings.TrimSpace(row["Склад"]))
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверный номер склада: %s", row["Склад"]))
			continue
		}

		maxTemp, err := ParseTemperature(row["Макс. температура"])
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверная температура: %s", row["Макс. температура"]))
			continue
		}

		recordDate, err := ParseFlexibleDate(row["Дата акта"], false)
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверный формат даты: %s", row["Дата акта"]))
			continue
		}

		shift := ParseFloatOrNull(row["Смена"])
		shtabelLabel := strings.TrimSpace(row["Штабель"])

		var mark, piket *string
		if m := strings.TrimSpace(row["Марка"]); m != "" {
			mark = &m
		}
		if p := strings.TrimSpace(row["Пикет"]); p != "" {
			piket = &p
		}

		riskLevel := s.CalculateRiskLevel(maxTemp)

		err = s.db.Transaction(func(tx *gorm.DB) error {
			sklad, err := s.resolver.ResolveSklad(tx, skladNumber)
			if err != nil {
				return err
			}

			shtabel, err := s.resolver.ResolveShtabel(tx, sklad.ID, shtabelLabel, &models.Shtabel{
				Mark: mark,
			})
			if err != nil {
				return err
			}

			// Последний замер кешируется прямо на штабеле
			updates := map[string]interface{}{
				"last_temp":      maxTemp,
				"last_temp_date": recordDate,
			}
			if mark != nil {
				updates["mark"] = mark
			}
			if err := tx.Model(&models.Shtabel{}).Where("id = ?", shtabel.ID).Updates(updates).Error; err != nil {
				return err
			}

			return tx.Create(&models.TempRecord{
				SkladID:    sklad.ID,
				ShtabelID:  shtabel.ID,
				Mark:       mark,
				MaxTemp:    maxTemp,
				Piket:      piket,
				RecordDate: recordDate,
				Shift:      shift,
				RiskLevel:  riskLevel,
			}).Error
		})
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber, err.Error())
			s.log.WithFields(logrus.Fields{"row": rowNumber, "error": err.Error()}).
				Warn("⚠️ Не удалось обработать строку температуры")
			continue
		}

		processed++
	}

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"processed": processed,
		"failed":    failed,
	}).Infof("✅ Импорт температуры завершен: %d обработано, %d с ошибками", processed, failed)

	return processed, failed, rowErrors
}
