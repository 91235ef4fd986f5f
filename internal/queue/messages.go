package queue

import "coalfire/server/internal/models"

// DataImportMessage — задание на импорт загруженного CSV файла
type DataImportMessage struct {
	UploadID uint            `json:"uploadId"`
	Filename string          `json:"filename"`
	FileType models.FileType `json:"fileType"`
}

// PredictionMessage — задание на расчет прогноза для одного штабеля
type PredictionMessage struct {
	ShtabelID   uint `json:"shtabelId"`
	HorizonDays *int `json:"horizonDays,omitempty"`
}

// BatchPredictionMessage — задание на пакетный расчет прогнозов
type BatchPredictionMessage struct {
	ShtabelIDs []uint `json:"shtabelIds"`
}

// ModelTrainMessage — задание на обучение модели
type ModelTrainMessage struct {
	ModelName    string                 `json:"modelName"`
	ModelVersion string                 `json:"modelVersion"`
	Config       map[string]interface{} `json:"config,omitempty"`
}
