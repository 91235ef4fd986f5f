package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// maxRowErrors ограничивает размер списка ошибок, сохраняемого в Upload
const maxRowErrors = 100

func appendRowError(errs []models.RowError, row int, message string) []models.RowError {
	if len(errs) >= maxRowErrors {
		return errs
	}
	return append(errs, models.RowError{Row: row, Error: message})
}

// SuppliesService обрабатывает CSV с поставками угля
type SuppliesService struct {
	db       *gorm.DB
	resolver *EntityResolver
	log      *logrus.Logger
}

// NewSuppliesService создает сервис импорта поставок
func NewSuppliesService(db *gorm.DB, resolver *EntityResolver, log *logrus.Logger) *SuppliesService {
	return &SuppliesService{db: db, resolver: resolver, log: log}
}

// ProcessCSV обрабатывает строки CSV поставок. Каждая строка идет в своей
// транзакции: ошибка одной строки не откатывает остальные.
func (s *SuppliesService) ProcessCSV(rows []map[string]string, uploadID uint) (int, int, []models.RowError) {
	processed := 0
	failed := 0
	rowErrors := make([]models.RowError, 0)

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"totalRows": len(rows),
	}).Infof("📦 Обработка %d записей поставок", len(rows))

	for i, row := range rows {
		rowNumber := i + 2 // +1 за заголовок, +1 за индексацию с нуля

		if row["Склад"] == "" || row["Штабель"] == "" || row["ВыгрузкаНаСклад"] == "" {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				"Отсутствуют обязательные поля: Склад, Штабель или ВыгрузкаНаСклад")
			continue
		}

		skladNumber, err := strconv.Atoi(strings.TrimSpace(row["Склад"]))
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверный номер склада: %s", row["Склад"]))
			continue
		}

		dateIn, err := ParseFlexibleDate(row["ВыгрузкаНаСклад"], false)
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber,
				fmt.Sprintf("Неверный формат даты: %s", row["ВыгрузкаНаСклад"]))
			continue
		}

		dateShip := ParseOptionalDate(row["ПогрузкаНаСудно"], false)
		toStorageT := ParseFloatOrNull(row["На склад, тн"])
		toShipT := ParseFloatOrNull(row["На судно, тн"])
		shtabelLabel := strings.TrimSpace(row["Штабель"])

		var mark *string
		if m := strings.TrimSpace(row["Наим. ЕТСНГ"]); m != "" {
			mark = &m
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			sklad, err := s.resolver.ResolveSklad(tx, skladNumber)
			if err != nil {
				return err
			}

			formedAt := dateIn
			shtabel, err := s.resolver.ResolveShtabel(tx, sklad.ID, shtabelLabel, &models.Shtabel{
				Mark:        mark,
				FormedAt:    &formedAt,
				MassT:       toStorageT,
				CurrentMass: toStorageT,
			})
			if err != nil {
				return err
			}

			// Существующий штабель дополняем свежими данными, не затирая их nil'ами
			updates := map[string]interface{}{}
			if mark != nil {
				updates["mark"] = mark
			}
			if toStorageT != nil {
				updates["current_mass"] = toStorageT
			}
			if len(updates) > 0 {
				if err := tx.Model(&models.Shtabel{}).Where("id = ?", shtabel.ID).Updates(updates).Error; err != nil {
					return err
				}
			}

			return tx.Create(&models.Supply{
				SkladID:    sklad.ID,
				ShtabelID:  shtabel.ID,
				DateIn:     dateIn,
				DateShip:   dateShip,
				Mark:       mark,
				ToStorageT: toStorageT,
				ToShipT:    toShipT,
			}).Error
		})
		if err != nil {
			failed++
			rowErrors = appendRowError(rowErrors, rowNumber, err.Error())
			s.log.WithFields(logrus.Fields{"row": rowNumber, "error": err.Error()}).
				Warn("⚠️ Не удалось обработать строку поставки")
			continue
		}

		processed++
	}

	s.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"processed": processed,
		"failed":    failed,
	}).Infof("✅ Импорт поставок завершен: %d обработано, %d с ошибками", processed, failed)

	return processed, failed, rowErrors
}
