package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

// NotificationService создает и выдает уведомления пользователям
type NotificationService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewNotificationService создает сервис уведомлений
func NewNotificationService(db *gorm.DB, log *logrus.Logger) *NotificationService {
	return &NotificationService{db: db, log: log}
}

// CreateNotificationInput параметры нового уведомления
type CreateNotificationInput struct {
	UserID       uint
	Type         models.NotificationType
	Title        string
	Message      string
	PredictionID *uint
	ShtabelID    *uint
	SkladID      *uint
}

// CreateNotification создает уведомление в статусе PENDING
func (s *NotificationService) CreateNotification(input CreateNotificationInput) (*models.Notification, error) {
	notification := models.Notification{
		UserID:       input.UserID,
		Type:         input.Type,
		Title:        input.Title,
		Message:      input.Message,
		Status:       models.NotificationStatusPending,
		PredictionID: input.PredictionID,
		ShtabelID:    input.ShtabelID,
		SkladID:      input.SkladID,
	}
	if err := s.db.Create(&notification).Error; err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"userId": input.UserID,
		"type":   input.Type,
	}).Debug("Создано уведомление")

	return &notification, nil
}

// NotifyRiskUsers рассылает уведомление о риске всем активным
// пользователям, подписанным на данный уровень
func (s *NotificationService) NotifyRiskUsers(predictionID, shtabelID uint, riskLevel models.RiskLevel) error {
	var users []models.User
	query := s.db.Joins("JOIN user_settings ON user_settings.user_id = users.id").
		Where("users.status = ?", models.UserStatusActive)

	switch riskLevel {
	case models.RiskLevelCritical:
		query = query.Where("user_settings.notify_critical = ?", true)
	case models.RiskLevelHigh:
		query = query.Where("user_settings.notify_high = ?", true)
	default:
		return nil
	}

	if err := query.Find(&users).Error; err != nil {
		return err
	}

	notifType := models.NotificationTypeHighRisk
	title := "⚠️ Высокий риск возгорания"
	message := "Штабель имеет высокий риск самовозгорания"
	if riskLevel == models.RiskLevelCritical {
		notifType = models.NotificationTypeCriticalRisk
		title = "⚠️ Критический риск возгорания"
		message = "Штабель имеет критический риск самовозгорания"
	}

	for _, user := range users {
		if _, err := s.CreateNotification(CreateNotificationInput{
			UserID:       user.ID,
			Type:         notifType,
			Title:        title,
			Message:      message,
			PredictionID: &predictionID,
			ShtabelID:    &shtabelID,
		}); err != nil {
			s.log.Errorf("❌ Не удалось создать уведомление для пользователя %d: %v", user.ID, err)
		}
	}

	s.log.Infof("📣 Уведомления о риске %s отправлены %d пользователям (штабель %d)",
		riskLevel, len(users), shtabelID)
	return nil
}

// ListForUser возвращает уведомления пользователя, свежие первыми
func (s *NotificationService) ListForUser(userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit)
	if unreadOnly {
		query = query.Where("status <> ?", models.NotificationStatusRead)
	}

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead помечает уведомление прочитанным
func (s *NotificationService) MarkRead(id, userID uint) error {
	now := time.Now()
	return s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"status":  models.NotificationStatusRead,
			"read_at": now,
		}).Error
}
