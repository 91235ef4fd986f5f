package models

import (
	"time"
)

// ShtabelStatus статус штабеля в его жизненном цикле
type ShtabelStatus string

const (
	ShtabelStatusActive   ShtabelStatus = "ACTIVE"
	ShtabelStatusShipped  ShtabelStatus = "SHIPPED"
	ShtabelStatusFired    ShtabelStatus = "FIRED"
	ShtabelStatusArchived ShtabelStatus = "ARCHIVED"
)

// Sklad модель склада (угольная площадка)
// Создается лениво при первой встрече номера склада в CSV, никогда не удаляется
type Sklad struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Number   int    `gorm:"uniqueIndex;not null" json:"number"` // Натуральный номер склада (UNIQUE)
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Location string `gorm:"type:text" json:"location"`
}

func (Sklad) TableName() string {
	return "sklads"
}

// Shtabel модель штабеля угля внутри склада
// Уникальность метки — в пределах склада, не глобальная
type Shtabel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SkladID uint   `gorm:"not null;uniqueIndex:idx_shtabel_sklad_label" json:"sklad_id"`
	Label   string `gorm:"type:varchar(100);not null;uniqueIndex:idx_shtabel_sklad_label" json:"label"`

	Mark         *string       `gorm:"type:varchar(100)" json:"mark"` // Марка угля (ЕТСНГ)
	FormedAt     *time.Time    `json:"formed_at"`                     // Дата формирования
	Length       *float64      `gorm:"type:decimal(10,2)" json:"length"`
	Width        *float64      `gorm:"type:decimal(10,2)" json:"width"`
	Height       *float64      `gorm:"type:decimal(10,2)" json:"height"`
	MassT        *float64      `gorm:"type:decimal(12,3);column:mass_t" json:"mass_t"` // Номинальная масса, тн
	CurrentMass  *float64      `gorm:"type:decimal(12,3)" json:"current_mass"`         // Текущая масса, тн
	LastTemp     *float64      `gorm:"type:decimal(5,2)" json:"last_temp"`             // Последняя известная температура
	LastTempDate *time.Time    `json:"last_temp_date"`
	Status       ShtabelStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`

	Sklad *Sklad `gorm:"foreignKey:SkladID" json:"sklad,omitempty"`
}

func (Shtabel) TableName() string {
	return "shtabels"
}
