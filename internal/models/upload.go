package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UploadStatus статус обработки загрузки
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "PENDING"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusCompleted  UploadStatus = "COMPLETED"
	UploadStatusFailed     UploadStatus = "FAILED"
	UploadStatusPartial    UploadStatus = "PARTIAL"
)

// FileType тип загружаемого CSV файла
type FileType string

const (
	FileTypeSupplies    FileType = "SUPPLIES"
	FileTypeFires       FileType = "FIRES"
	FileTypeTemperature FileType = "TEMPERATURE"
	FileTypeWeather     FileType = "WEATHER"
)

// RowError ошибка обработки одной строки CSV
// Нумерация строк: строка данных i (с нуля) отображается как i+2 (учитываем заголовок)
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// RowErrorList хранится в БД одной JSON колонкой
type RowErrorList []RowError

func (l RowErrorList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *RowErrorList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("неожиданный тип колонки errors: %T", value)
	}
}

// Upload одна задача импорта CSV и ее итог
// Мутируется только процессором импорта
type Upload struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Filename     string       `gorm:"type:varchar(255);not null" json:"filename"` // Уникальное имя в каталоге загрузок
	OriginalName string       `gorm:"type:varchar(255)" json:"original_name"`
	FileType     FileType     `gorm:"type:varchar(20);not null" json:"file_type"`
	Status       UploadStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	UploadedBy   *uint        `json:"uploaded_by"`

	RowsTotal     int          `json:"rows_total"`
	RowsProcessed int          `json:"rows_processed"`
	RowsFailed    int          `json:"rows_failed"`
	Errors        RowErrorList `gorm:"type:text" json:"errors"`       // Первые 100 ошибок строк
	ErrorDetail   string       `gorm:"type:text" json:"error_detail"` // Системная ошибка при статусе FAILED
}

func (Upload) TableName() string {
	return "uploads"
}
