package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

func seedUser(t *testing.T, db *gorm.DB, telegramID int64, status models.UserStatus, notifyCritical, notifyHigh bool) *models.User {
	t.Helper()

	user := models.User{TelegramID: telegramID, FullName: "Оператор", Status: status}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.UserSettings{
		UserID:         user.ID,
		NotifyCritical: notifyCritical,
		NotifyHigh:     notifyHigh,
	}).Error)
	return &user
}

func TestNotifyRiskUsersCritical(t *testing.T) {
	db := newTestDB(t)
	service := NewNotificationService(db, newTestLogger())

	subscribed := seedUser(t, db, 100, models.UserStatusActive, true, false)
	seedUser(t, db, 101, models.UserStatusActive, false, true) // подписан только на HIGH
	seedUser(t, db, 102, models.UserStatusBlocked, true, true) // заблокирован

	require.NoError(t, service.NotifyRiskUsers(1, 5, models.RiskLevelCritical))

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, subscribed.ID, notifications[0].UserID)
	assert.Equal(t, models.NotificationTypeCriticalRisk, notifications[0].Type)
	assert.Equal(t, models.NotificationStatusPending, notifications[0].Status)
	require.NotNil(t, notifications[0].PredictionID)
	assert.EqualValues(t, 1, *notifications[0].PredictionID)
}

func TestNotifyRiskUsersHigh(t *testing.T) {
	db := newTestDB(t)
	service := NewNotificationService(db, newTestLogger())

	seedUser(t, db, 100, models.UserStatusActive, true, false)
	subscribed := seedUser(t, db, 101, models.UserStatusActive, false, true)

	require.NoError(t, service.NotifyRiskUsers(2, 5, models.RiskLevelHigh))

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, subscribed.ID, notifications[0].UserID)
	assert.Equal(t, models.NotificationTypeHighRisk, notifications[0].Type)
}

func TestNotifyRiskUsersLowIsNoop(t *testing.T) {
	db := newTestDB(t)
	service := NewNotificationService(db, newTestLogger())

	seedUser(t, db, 100, models.UserStatusActive, true, true)

	require.NoError(t, service.NotifyRiskUsers(3, 5, models.RiskLevelLow))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestListForUserAndMarkRead(t *testing.T) {
	db := newTestDB(t)
	service := NewNotificationService(db, newTestLogger())

	user := seedUser(t, db, 100, models.UserStatusActive, true, false)

	first, err := service.CreateNotification(CreateNotificationInput{
		UserID: user.ID, Type: models.NotificationTypeCriticalRisk,
		Title: "⚠️ Критический риск возгорания", Message: "Штабель имеет критический риск самовозгорания",
	})
	require.NoError(t, err)
	_, err = service.CreateNotification(CreateNotificationInput{
		UserID: user.ID, Type: models.NotificationTypeHighRisk,
		Title: "⚠️ Высокий риск возгорания", Message: "Штабель имеет высокий риск самовозгорания",
	})
	require.NoError(t, err)

	all, err := service.ListForUser(user.ID, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, service.MarkRead(first.ID, user.ID))

	unread, err := service.ListForUser(user.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, models.NotificationTypeHighRisk, unread[0].Type)

	var read models.Notification
	require.NoError(t, db.First(&read, first.ID).Error)
	assert.Equal(t, models.NotificationStatusRead, read.Status)
	assert.NotNil(t, read.ReadAt)
}
