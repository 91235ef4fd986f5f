package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// EntityResolver находит или создает склады и штабели при импорте CSV.
// Импорт идет конкурентно (несколько consumer'ов), поэтому создание
// через уникальный индекс: при конфликте перечитываем запись.
type EntityResolver struct {
	log *logrus.Logger
}

// NewEntityResolver создает резолвер сущностей
func NewEntityResolver(log *logrus.Logger) *EntityResolver {
	return &EntityResolver{log: log}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint")
}

// ResolveSklad находит склад по номеру или создает новый с именем "Склад N".
// tx — транзакция текущей строки импорта.
func (r *EntityResolver) ResolveSklad(tx *gorm.DB, number int) (*models.Sklad, error) {
	var sklad models.Sklad
	err := tx.Where("number = ?", number).First(&sklad).Error
	if err == nil {
		return &sklad, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sklad = models.Sklad{
		Number: number,
		Name:   fmt.Sprintf("Склад %d", number),
	}
	if createErr := tx.Create(&sklad).Error; createErr != nil {
		if isUniqueViolation(createErr) {
			// Параллельный импорт успел создать склад — перечитываем
			if err := tx.Where("number = ?", number).First(&sklad).Error; err != nil {
				return nil, fmt.Errorf("не удалось создать или найти склад %d: %w", number, err)
			}
			return &sklad, nil
		}
		return nil, createErr
	}

	r.log.Debugf("Создан новый склад: %d", number)
	return &sklad, nil
}

// ResolveShtabel находит штабель по паре (склад, метка) или создает новый.
// defaults применяются только при создании; при гонке создания
// существующая запись дополняется маркой и массой.
func (r *EntityResolver) ResolveShtabel(tx *gorm.DB, skladID uint, label string, defaults *models.Shtabel) (*models.Shtabel, error) {
	var shtabel models.Shtabel
	err := tx.Where("sklad_id = ? AND label = ?", skladID, label).First(&shtabel).Error
	if err == nil {
		return &shtabel, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	shtabel = models.Shtabel{
		SkladID: skladID,
		Label:   label,
		Status:  models.ShtabelStatusActive,
	}
	if defaults != nil {
		shtabel.Mark = defaults.Mark
		shtabel.FormedAt = defaults.FormedAt
		shtabel.MassT = defaults.MassT
		shtabel.CurrentMass = defaults.CurrentMass
	}

	if createErr := tx.Create(&shtabel).Error; createErr != nil {
		if isUniqueViolation(createErr) {
			if err := tx.Where("sklad_id = ? AND label = ?", skladID, label).First(&shtabel).Error; err != nil {
				return nil, fmt.Errorf("не удалось создать или найти штабель %s в складе %d: %w", label, skladID, err)
			}
			if defaults != nil {
				updates := map[string]interface{}{}
				if defaults.Mark != nil {
					updates["mark"] = defaults.Mark
				}
				if defaults.CurrentMass != nil {
					updates["current_mass"] = defaults.CurrentMass
				}
				if len(updates) > 0 {
					if err := tx.Model(&shtabel).Updates(updates).Error; err != nil {
						return nil, err
					}
				}
			}
			return &shtabel, nil
		}
		return nil, createErr
	}

	r.log.Debugf("Создан новый штабель: %s в складе %d", label, skladID)
	return &shtabel, nil
}

// FindShtabel ищет штабель без создания (для пожаров, где связь опциональна)
func (r *EntityResolver) FindShtabel(tx *gorm.DB, skladID uint, label string) (*models.Shtabel, error) {
	var shtabel models.Shtabel
	err := tx.Where("sklad_id = ? AND label = ?", skladID, label).First(&shtabel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shtabel, nil
}
