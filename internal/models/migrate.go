package models

import (
	"gorm.io/gorm"

	"coalfire/server/internal/config"
)

// AutoMigrate создает таблицы в БД
// Порядок важен: сначала справочники, затем таблицы с внешними ключами
func AutoMigrate(db *gorm.DB) error {
	log := config.GetLogger()

	if err := db.AutoMigrate(&Sklad{}, &Shtabel{}); err != nil {
		log.Errorf("❌ AutoMigrate для складов/штабелей failed: %v", err)
		return err
	}

	if err := db.AutoMigrate(
		&Supply{},
		&FireRecord{},
		&TempRecord{},
		&WeatherRecord{},
	); err != nil {
		log.Errorf("❌ AutoMigrate для записей данных failed: %v", err)
		return err
	}

	if err := db.AutoMigrate(&Upload{}); err != nil {
		log.Errorf("❌ AutoMigrate для загрузок failed: %v", err)
		return err
	}

	if err := db.AutoMigrate(&Prediction{}, &ModelArtifact{}, &Metric{}); err != nil {
		log.Errorf("❌ AutoMigrate для прогнозов failed: %v", err)
		return err
	}

	if err := db.AutoMigrate(&User{}, &UserSettings{}, &Notification{}); err != nil {
		log.Errorf("❌ AutoMigrate для пользователей/уведомлений failed: %v", err)
		return err
	}

	return nil
}
