package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// JobPublisher публикует задания в очередь
type JobPublisher interface {
	Publish(ctx context.Context, routingKey string, message interface{}) bool
}

// UploadService принимает CSV файлы и ставит задания импорта в очередь
type UploadService struct {
	db         *gorm.DB
	uploadsDir string
	publisher  JobPublisher
	log        *logrus.Logger
}

// NewUploadService создает сервис загрузок
func NewUploadService(db *gorm.DB, uploadsDir string, publisher JobPublisher, log *logrus.Logger) *UploadService {
	return &UploadService{db: db, uploadsDir: uploadsDir, publisher: publisher, log: log}
}

// ValidFileType проверяет поддерживаемый тип импорта
func ValidFileType(fileType models.FileType) bool {
	switch fileType {
	case models.FileTypeSupplies, models.FileTypeFires, models.FileTypeTemperature, models.FileTypeWeather:
		return true
	}
	return false
}

// CreateUpload сохраняет файл под уникальным именем, создает запись
// Upload в статусе PENDING и публикует задание импорта.
func (s *UploadService) CreateUpload(ctx context.Context, file *multipart.FileHeader, fileType models.FileType, uploadedBy *uint) (*models.Upload, error) {
	if !ValidFileType(fileType) {
		return nil, fmt.Errorf("неподдерживаемый тип файла: %s", fileType)
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".csv") {
		return nil, fmt.Errorf("ожидается CSV файл, получен: %s", file.Filename)
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок: %w", err)
	}

	// Имя на диске не зависит от пользовательского: исключает коллизии
	// и path traversal
	storedName := uuid.New().String() + ".csv"
	if err := s.saveFile(file, filepath.Join(s.uploadsDir, storedName)); err != nil {
		return nil, err
	}

	upload := models.Upload{
		Filename:     storedName,
		OriginalName: file.Filename,
		FileType:     fileType,
		Status:       models.UploadStatusPending,
		UploadedBy:   uploadedBy,
	}
	if err := s.db.Create(&upload).Error; err != nil {
		os.Remove(filepath.Join(s.uploadsDir, storedName))
		return nil, err
	}

	published := s.publisher.Publish(ctx, "data.import", map[string]interface{}{
		"uploadId": upload.ID,
		"filename": storedName,
		"fileType": fileType,
	})
	if !published {
		// Загрузка остается в PENDING, файл на диске: задание можно
		// перепоставить вручную
		s.log.Errorf("❌ Не удалось поставить задание импорта для загрузки %d", upload.ID)
		return &upload, fmt.Errorf("не удалось поставить задание импорта в очередь")
	}

	s.log.WithFields(logrus.Fields{
		"uploadId": upload.ID,
		"fileType": fileType,
		"filename": file.Filename,
	}).Infof("📤 Загрузка принята: %s (id %d)", file.Filename, upload.ID)

	return &upload, nil
}

func (s *UploadService) saveFile(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("не удалось сохранить файл: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("не удалось записать файл: %w", err)
	}
	return nil
}

// GetUpload возвращает загрузку по id
func (s *UploadService) GetUpload(id uint) (*models.Upload, error) {
	var upload models.Upload
	if err := s.db.First(&upload, id).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// ListUploads возвращает загрузки, свежие первыми
func (s *UploadService) ListUploads(limit int) ([]models.Upload, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var uploads []models.Upload
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&uploads).Error; err != nil {
		return nil, err
	}
	return uploads, nil
}
