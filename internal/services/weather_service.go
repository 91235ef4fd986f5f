package services

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// WeatherService обрабатывает CSV с метеоданными
type WeatherService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewWeatherService создает сервис импорта метеоданных
func NewWeatherService(db *gorm.DB, log *logrus.Logger) *WeatherService {
	return &WeatherService{db: db, log: log}
}

// ProcessCSV обрабатывает строки CSV погоды. Записи идемпотентны по
// метке времени: повторный импорт того же периода обновляет значения.
func (s *WeatherService) ProcessCSV(rows []map[string]string, uploadID uint) (int, int, []models.RowError) {
	processed := 0
	failed := 0
	rowErrors := make([]models.RowError, 0)

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"totalRows": len(rows),
	}).Infof("🌤️ Обработка %d записей погоды", len(rows))

	for i, row := range rows {
		rowNumber := i + 2

		if row["date"] == "" {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				"Отсутствует обязательное поле: date")
			continue
		}

		// Для погоды разрешен unix timestamp
		ts, err := ParseFlexibleDate(row["date"], true)
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверный формат даты: %s", row["date"]))
			continue
		}

		record := models.WeatherRecord{
			TS:            ts,
			T:             ParseFloatOrNull(row["t"]),
			P:             ParseFloatOrNull(row["p"]),
			Humidity:      ParseFloatOrNull(row["humidity"]),
			Precipitation: ParseFloatOrNull(row["precipitation"]),
			WindDir:       ParseIntOrNull(row["wind_dir"]),
			VAvg:          ParseFloatOrNull(row["v_avg"]),
			VMax:          ParseFloatOrNull(row["v_max"]),
			Cloudcover:    ParseFloatOrNull(row["cloudcover"]),
			Visibility:    ParseFloatOrNull(row["visibility"]),
			WeatherCode:   ParseIntOrNull(row["weather_code"]),
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			var existing models.WeatherRecord
			findErr := tx.Where("ts = ?", ts).First(&existing).Error
			if findErr == nil {
				return tx.Model(&existing).Updates(map[string]interface{}{
					"t":             record.T,
					"p":             record.P,
					"humidity":      record.Humidity,
					"precipitation": record.Precipitation,
					"wind_dir":      record.WindDir,
					"v_avg":         record.VAvg,
					"v_max":         record.VMax,
					"cloudcover":    record.Cloudcover,
					"visibility":    record.Visibility,
					"weather_code":  record.WeatherCode,
				}).Error
			}
			if !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return findErr
			}
			return tx.Create(&record).Error
		})
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber, err.Error())
			s.log.WithFields(logrus.Fields{"row": rowNumber, "error": err.Error()}).
				Warn("⚠️ Не удалось обработать строку погоды")
			continue
		}

		processed++
	}

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"processed": processed,
		"failed":    failed,
	}).Infof("✅ Импорт погоды завершен: %d обработано, %d с ошибками", processed, failed)

	return processed, failed, rowErrors
}
