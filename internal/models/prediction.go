package models

import (
	"time"
)

// RiskLevel дискретный уровень риска самовозгорания
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// ModelStatus статус артефакта ML модели
type ModelStatus string

const (
	ModelStatusTraining   ModelStatus = "TRAINING"
	ModelStatusActive     ModelStatus = "ACTIVE"
	ModelStatusFailed     ModelStatus = "FAILED"
	ModelStatusDeprecated ModelStatus = "DEPRECATED"
)

// Prediction результат одного обращения к ML сервису (append-only)
// Создается только процессором прогнозов
type Prediction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TS        time.Time `gorm:"not null;index;column:ts" json:"ts"` // Серверное время расчета
	SkladID   uint      `gorm:"not null;index" json:"sklad_id"`
	ShtabelID uint      `gorm:"not null;index" json:"shtabel_id"`

	ModelName     string     `gorm:"type:varchar(100);not null" json:"model_name"`
	ModelVersion  string     `gorm:"type:varchar(50)" json:"model_version"`
	PredictedDate *time.Time `json:"predicted_date"`
	ProbEvent     float64    `gorm:"type:decimal(6,5)" json:"prob_event"`
	RiskLevel     RiskLevel  `gorm:"type:varchar(20);not null;index" json:"risk_level"`
	HorizonDays   int        `gorm:"not null;default:7" json:"horizon_days"`
	IntervalLow   *time.Time `json:"interval_low"`
	IntervalHigh  *time.Time `json:"interval_high"`
	Confidence    *float64   `gorm:"type:decimal(6,5)" json:"confidence"`
	Meta          string     `gorm:"type:text" json:"meta"` // Сырые метаданные ответа ML сервиса

	// Заполняются постфактум при регистрации реального возгорания
	ActualFireDate *time.Time `json:"actual_fire_date"`
	AccuracyDays   *float64   `gorm:"type:decimal(8,2)" json:"accuracy_days"`
	IsAccurate     *bool      `json:"is_accurate"` // Попадание в ±2 дня

	Shtabel *Shtabel `gorm:"foreignKey:ShtabelID" json:"shtabel,omitempty"`
}

func (Prediction) TableName() string {
	return "predictions"
}

// ModelArtifact метаданные обученной модели
type ModelArtifact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name      string      `gorm:"type:varchar(100);not null;index" json:"name"`
	Version   string      `gorm:"type:varchar(50);not null" json:"version"`
	Status    ModelStatus `gorm:"type:varchar(20);not null" json:"status"`
	Path      string      `gorm:"type:text" json:"path"`
	FileSize  *int64      `json:"file_size"`
	TrainedAt *time.Time  `json:"trained_at"`
	TrainedBy string      `gorm:"type:varchar(100)" json:"trained_by"`

	TrainingData string `gorm:"type:text" json:"training_data"` // Конфигурация запуска обучения (JSON)
	Hyperparams  string `gorm:"type:text" json:"hyperparams"`
	TrainMetrics string `gorm:"type:text" json:"train_metrics"`
	ValMetrics   string `gorm:"type:text" json:"val_metrics"`
	TestMetrics  string `gorm:"type:text" json:"test_metrics"`
	Meta         string `gorm:"type:text" json:"meta"`
}

func (ModelArtifact) TableName() string {
	return "model_artifacts"
}

// Metric агрегированные метрики качества модели за период обучения
type Metric struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ModelName    string    `gorm:"type:varchar(100);not null;index" json:"model_name"`
	ModelVersion string    `gorm:"type:varchar(50)" json:"model_version"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`

	MAEDays          *float64 `gorm:"column:mae_days" json:"mae_days"`
	RMSEDays         *float64 `gorm:"column:rmse_days" json:"rmse_days"`
	MAPE             *float64 `gorm:"column:mape" json:"mape"`
	AccuracyWithin2d *float64 `gorm:"column:accuracy_within_2d" json:"accuracy_within_2d"`
	AccuracyWithin3d *float64 `gorm:"column:accuracy_within_3d" json:"accuracy_within_3d"`
	AccuracyWithin5d *float64 `gorm:"column:accuracy_within_5d" json:"accuracy_within_5d"`
	CIndex           *float64 `gorm:"column:c_index" json:"c_index"`
	Precision        *float64 `json:"precision"`
	Recall           *float64 `json:"recall"`
	F1Score          *float64 `gorm:"column:f1_score" json:"f1_score"`
	Raw              string   `gorm:"type:text" json:"raw"`
}

func (Metric) TableName() string {
	return "metrics"
}
