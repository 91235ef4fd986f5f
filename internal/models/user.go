package models

import (
	"time"
)

// UserStatus статус учетной записи оператора
type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusBlocked UserStatus = "BLOCKED"
)

// NotificationType тип уведомления
type NotificationType string

const (
	NotificationTypeCriticalRisk NotificationType = "CRITICAL_RISK"
	NotificationTypeHighRisk     NotificationType = "HIGH_RISK"
)

// NotificationStatus статус доставки уведомления
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusRead    NotificationStatus = "READ"
)

// User оператор, получающий уведомления через чат-бот
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TelegramID int64      `gorm:"uniqueIndex;not null" json:"telegram_id"`
	FullName   string     `gorm:"type:varchar(255)" json:"full_name"`
	Status     UserStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`

	Settings *UserSettings `gorm:"foreignKey:UserID" json:"settings,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// UserSettings настройки подписки на уровни риска
type UserSettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID         uint `gorm:"uniqueIndex;not null" json:"user_id"`
	NotifyCritical bool `gorm:"not null;default:true" json:"notify_critical"`
	NotifyHigh     bool `gorm:"not null;default:false" json:"notify_high"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}

// Notification уведомление оператору о риске возгорания
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID       uint               `gorm:"not null;index" json:"user_id"`
	Type         NotificationType   `gorm:"type:varchar(30);not null" json:"type"`
	Title        string             `gorm:"type:varchar(255);not null" json:"title"`
	Message      string             `gorm:"type:text;not null" json:"message"`
	Status       NotificationStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	ReadAt       *time.Time         `json:"read_at"`
	PredictionID *uint              `gorm:"index" json:"prediction_id"`
	ShtabelID    *uint              `gorm:"index" json:"shtabel_id"`
	SkladID      *uint              `json:"sklad_id"`
}

func (Notification) TableName() string {
	return "notifications"
}
