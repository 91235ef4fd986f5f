package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// CSVRowProcessor обрабатывает строки одного типа CSV файла
type CSVRowProcessor func(rows []map[string]string, uploadID uint) (processed, failed int, rowErrors []models.RowError)

// DataImportProcessor выполняет задание импорта: читает CSV, передает
// строки профильному сервису и фиксирует итоговый статус загрузки.
type DataImportProcessor struct {
	db         *gorm.DB
	uploadsDir string
	processors map[models.FileType]CSVRowProcessor
	log        *logrus.Logger
}

// NewDataImportProcessor создает обработчик импорта
func NewDataImportProcessor(
	db *gorm.DB,
	uploadsDir string,
	supplies *SuppliesService,
	fires *FiresService,
	temperature *TemperatureService,
	weather *WeatherService,
	log *logrus.Logger,
) *DataImportProcessor {
	return &DataImportProcessor{
		db:         db,
		uploadsDir: uploadsDir,
		processors: map[models.FileType]CSVRowProcessor{
			models.FileTypeSupplies:    supplies.ProcessCSV,
			models.FileTypeFires:       fires.ProcessCSV,
			models.FileTypeTemperature: temperature.ProcessCSV,
			models.FileTypeWeather:     weather.ProcessCSV,
		},
		log: log,
	}
}

// ProcessImport обрабатывает загрузку. Построчные ошибки копятся в Upload,
// системные (нет файла, неизвестный тип) переводят загрузку в FAILED и
// возвращаются наверх для retry-механизма очереди.
func (p *DataImportProcessor) ProcessImport(uploadID uint, filename string, fileType models.FileType) error {
	filePath := filepath.Join(p.uploadsDir, filename)

	err := p.processImport(uploadID, filePath, fileType)
	if err != nil {
		if dbErr := p.db.Model(&models.Upload{}).Where("id = ?", uploadID).
			Updates(map[string]interface{}{
				"status":       models.UploadStatusFailed,
				"error_detail": err.Error(),
			}).Error; dbErr != nil {
			p.log.Errorf("❌ Не удалось обновить статус загрузки %d: %v", uploadID, dbErr)
		}

		p.log.WithFields(logrus.Fields{
			"uploadId": uploadID,
			"filename": filename,
			"fileType": fileType,
		}).Errorf("❌ Импорт завершился ошибкой: %v", err)

		p.cleanupFile(filePath)
		return err
	}

	p.cleanupFile(filePath)
	return nil
}

func (p *DataImportProcessor) processImport(uploadID uint, filePath string, fileType models.FileType) error {
	if err := p.db.Model(&models.Upload{}).Where("id = ?", uploadID).
		Update("status", models.UploadStatusProcessing).Error; err != nil {
		return err
	}

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("файл не найден: %s", filePath)
	}

	rows, err := readCSVFile(filePath)
	if err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"uploadId":    uploadID,
		"fileType":    fileType,
		"recordCount": len(rows),
	}).Infof("📥 Обработка %d записей из %s", len(rows), filepath.Base(filePath))

	processor, ok := p.processors[fileType]
	if !ok {
		return fmt.Errorf("неизвестный тип файла: %s", fileType)
	}

	processed, failed, rowErrors := processor(rows, uploadID)

	status := models.UploadStatusCompleted
	if failed > 0 {
		if failed < len(rows) {
			status = models.UploadStatusPartial
		} else {
			status = models.UploadStatusFailed
		}
	}

	updates := map[string]interface{}{
		"status":         status,
		"rows_total":     len(rows),
		"rows_processed": processed,
		"rows_failed":    failed,
	}
	if len(rowErrors) > 0 {
		updates["errors"] = models.RowErrorList(rowErrors)
	}
	if err := p.db.Model(&models.Upload{}).Where("id = ?", uploadID).Updates(updates).Error; err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"uploadId":  uploadID,
		"processed": processed,
		"failed":    failed,
		"status":    status,
	}).Infof("✅ Импорт завершен: %d обработано, %d ошибок", processed, failed)

	return nil
}

// cleanupFile удаляет загруженный файл после обработки
func (p *DataImportProcessor) cleanupFile(filePath string) {
	if err := os.Remove(filePath); err != nil {
		if !os.IsNotExist(err) {
			p.log.Warnf("⚠️ Не удалось очистить файл %s: %v", filePath, err)
		}
		return
	}
	p.log.Debugf("Файл очищен: %s", filePath)
}

// readCSVFile читает CSV в список map'ов заголовок -> значение.
// Разделитель определяется по первой строке: 1С выгружает с ";",
// остальные системы — с ",".
func readCSVFile(filePath string) ([]map[string]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл: %w", err)
	}

	text := strings.TrimPrefix(string(content), "\uFEFF")

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("не удалось распарсить CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("пустой CSV файл")
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if isEmptyRecord(record) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func detectDelimiter(text string) rune {
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
