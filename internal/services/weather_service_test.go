package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coalfire/server/internal/models"
)

func TestWeatherProcessCSVUpsert(t *testing.T) {
	db := newTestDB(t)
	service := NewWeatherService(db, newTestLogger())

	rows := []map[string]string{
		{"date": "2024-06-01 12:00:00", "t": "21,5", "humidity": "60", "wind_dir": "270"},
	}
	processed, failed, _ := service.ProcessCSV(rows, 1)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)

	// Повторный импорт той же метки времени обновляет запись
	rows[0]["t"] = "25"
	processed, failed, _ = service.ProcessCSV(rows, 2)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)

	var records []models.WeatherRecord
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].T)
	assert.InDelta(t, 25, *records[0].T, 0.001)
	require.NotNil(t, records[0].WindDir)
	assert.Equal(t, 270, *records[0].WindDir)
}

func TestWeatherEpochTimestamps(t *testing.T) {
	db := newTestDB(t)
	service := NewWeatherService(db, newTestLogger())

	rows := []map[string]string{
		{"date": "1717243200", "t": "18"},    // секунды
		{"date": "1717246800000", "t": "19"}, // миллисекунды
	}
	processed, failed, _ := service.ProcessCSV(rows, 1)
	assert.Equal(t, 2, processed)
	assert.Equal(t, 0, failed)

	var count int64
	require.NoError(t, db.Model(&models.WeatherRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestWeatherMissingDate(t *testing.T) {
	db := newTestDB(t)
	service := NewWeatherService(db, newTestLogger())

	processed, failed, rowErrors := service.ProcessCSV([]map[string]string{
		{"t": "18"},
	}, 1)

	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, failed)
	require.Len(t, rowErrors, 1)
	assert.Contains(t, rowErrors[0].Error, "date")
}

func TestWeatherNullValues(t *testing.T) {
	db := newTestDB(t)
	service := NewWeatherService(db, newTestLogger())

	processed, failed, _ := service.ProcessCSV([]map[string]string{
		{"date": "2024-06-01", "t": "null", "humidity": "", "weather_code": "3"},
	}, 1)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, failed)

	var record models.WeatherRecord
	require.NoError(t, db.First(&record).Error)
	assert.Nil(t, record.T)
	assert.Nil(t, record.Humidity)
	require.NotNil(t, record.WeatherCode)
	assert.Equal(t, 3, *record.WeatherCode)
}
