package models

import (
	"time"
)

// Supply запись движения угля (выгрузка на склад / погрузка на судно)
// Append-only: одна строка на событие
type Supply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SkladID   uint `gorm:"not null;index" json:"sklad_id"`
	ShtabelID uint `gorm:"not null;index" json:"shtabel_id"`

	DateIn     time.Time  `gorm:"not null" json:"date_in"`                                    // ВыгрузкаНаСклад
	DateShip   *time.Time `json:"date_ship"`                                                  // ПогрузкаНаСудно
	Mark       *string    `gorm:"type:varchar(100)" json:"mark"`                              // Наим. ЕТСНГ
	ToStorageT *float64   `gorm:"type:decimal(12,3);column:to_storage_t" json:"to_storage_t"` // На склад, тн
	ToShipT    *float64   `gorm:"type:decimal(12,3);column:to_ship_t" json:"to_ship_t"`       // На судно, тн

	Sklad   *Sklad   `gorm:"foreignKey:SkladID" json:"sklad,omitempty"`
	Shtabel *Shtabel `gorm:"foreignKey:ShtabelID" json:"shtabel,omitempty"`
}

func (Supply) TableName() string {
	return "supplies"
}

// FireRecord запись о возгорании
// Штабель опционален: акт может не указывать конкретный штабель
type FireRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SkladID   uint  `gorm:"not null;index" json:"sklad_id"`
	ShtabelID *uint `gorm:"index" json:"shtabel_id"`

	ReportDate    time.Time  `gorm:"not null" json:"report_date"` // Дата составления акта
	StartDate     time.Time  `gorm:"not null" json:"start_date"`  // Дата начала возгорания
	EndDate       *time.Time `json:"end_date"`
	FormedAt      *time.Time `json:"formed_at"` // Нач.форм.штабеля
	Mark          *string    `gorm:"type:varchar(100)" json:"mark"`
	WeightT       *float64   `gorm:"type:decimal(12,3);column:weight_t" json:"weight_t"` // Вес по акту, тн
	DamageT       *float64   `gorm:"type:decimal(12,3);column:damage_t" json:"damage_t"`
	DurationHours *float64   `gorm:"type:decimal(10,2)" json:"duration_hours"` // end − start, часы

	Sklad   *Sklad   `gorm:"foreignKey:SkladID" json:"sklad,omitempty"`
	Shtabel *Shtabel `gorm:"foreignKey:ShtabelID" json:"shtabel,omitempty"`
}

func (FireRecord) TableName() string {
	return "fire_records"
}

// TempRecord замер температуры штабеля (append-only временной ряд)
type TempRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SkladID   uint `gorm:"not null;index" json:"sklad_id"`
	ShtabelID uint `gorm:"not null;index" json:"shtabel_id"`

	Mark       *string   `gorm:"type:varchar(100)" json:"mark"`
	MaxTemp    float64   `gorm:"type:decimal(5,2);not null" json:"max_temp"`
	Piket      *string   `gorm:"type:varchar(50)" json:"piket"`
	RecordDate time.Time `gorm:"not null;index" json:"record_date"` // Дата акта
	Shift      *float64  `gorm:"type:decimal(4,1)" json:"shift"`    // Смена
	RiskLevel  RiskLevel `gorm:"type:varchar(20);not null" json:"risk_level"`

	Sklad   *Sklad   `gorm:"foreignKey:SkladID" json:"sklad,omitempty"`
	Shtabel *Shtabel `gorm:"foreignKey:ShtabelID" json:"shtabel,omitempty"`
}

func (TempRecord) TableName() string {
	return "temp_records"
}

// WeatherRecord погодная запись метеоканала
// ВАЖНО: ts уникален — повторная строка с тем же timestamp обновляет запись (upsert)
type WeatherRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TS            time.Time `gorm:"uniqueIndex;not null;column:ts" json:"ts"`
	T             *float64  `gorm:"type:decimal(5,2);column:t" json:"t"` // Температура воздуха
	P             *float64  `gorm:"type:decimal(7,2);column:p" json:"p"` // Давление
	Humidity      *float64  `gorm:"type:decimal(5,2)" json:"humidity"`
	Precipitation *float64  `gorm:"type:decimal(6,2)" json:"precipitation"`
	WindDir       *int      `gorm:"column:wind_dir" json:"wind_dir"`
	VAvg          *float64  `gorm:"type:decimal(5,2);column:v_avg" json:"v_avg"` // Средняя скорость ветра
	VMax          *float64  `gorm:"type:decimal(5,2);column:v_max" json:"v_max"` // Максимальный порыв
	Cloudcover    *float64  `gorm:"type:decimal(5,2)" json:"cloudcover"`
	Visibility    *float64  `gorm:"type:decimal(7,2)" json:"visibility"`
	WeatherCode   *int      `json:"weather_code"`
}

func (WeatherRecord) TableName() string {
	return "weather"
}
