package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

func newImportProcessor(t *testing.T, db *gorm.DB, uploadsDir string) *DataImportProcessor {
	t.Helper()
	log := newTestLogger()
	resolver := NewEntityResolver(log)
	return NewDataImportProcessor(
		db, uploadsDir,
		NewSuppliesService(db, resolver, log),
		NewFiresService(db, resolver, log),
		NewTemperatureService(db, resolver, newTestConfig(), log),
		NewWeatherService(db, log),
		log,
	)
}

func writeUpload(t *testing.T, db *gorm.DB, dir, filename, content string, fileType models.FileType) *models.Upload {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))

	upload := &models.Upload{
		Filename:     filename,
		OriginalName: filename,
		FileType:     fileType,
		Status:       models.UploadStatusPending,
	}
	require.NoError(t, db.Create(upload).Error)
	return upload
}

func TestProcessImportCompleted(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	processor := newImportProcessor(t, db, dir)

	csv := "Склад,Штабель,ВыгрузкаНаСклад,\"На склад, тн\"\n" +
		"1,Ш-1,15.03.2024,1000\n" +
		"1,Ш-2,16.03.2024,2000\n"
	upload := writeUpload(t, db, dir, "supplies.csv", csv, models.FileTypeSupplies)

	require.NoError(t, processor.ProcessImport(upload.ID, upload.Filename, upload.FileType))

	var updated models.Upload
	require.NoError(t, db.First(&updated, upload.ID).Error)
	assert.Equal(t, models.UploadStatusCompleted, updated.Status)
	assert.Equal(t, 2, updated.RowsTotal)
	assert.Equal(t, 2, updated.RowsProcessed)
	assert.Equal(t, 0, updated.RowsFailed)

	// Файл удален после обработки
	_, err := os.Stat(filepath.Join(dir, upload.Filename))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessImportPartial(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	processor := newImportProcessor(t, db, dir)

	csv := "Склад,Штабель,ВыгрузкаНаСклад\n" +
		"1,Ш-1,15.03.2024\n" +
		",Ш-2,16.03.2024\n"
	upload := writeUpload(t, db, dir, "partial.csv", csv, models.FileTypeSupplies)

	require.NoError(t, processor.ProcessImport(upload.ID, upload.Filename, upload.FileType))

	var updated models.Upload
	require.NoError(t, db.First(&updated, upload.ID).Error)
	assert.Equal(t, models.UploadStatusPartial, updated.Status)
	assert.Equal(t, 2, updated.RowsTotal)
	assert.Equal(t, 1, updated.RowsProcessed)
	assert.Equal(t, 1, updated.RowsFailed)
	require.Len(t, updated.Errors, 1)
	assert.Equal(t, 3, updated.Errors[0].Row)
}

func TestProcessImportAllRowsFailed(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	processor := newImportProcessor(t, db, dir)

	csv := "Склад,Штабель,ВыгрузкаНаСклад\n" +
		",Ш-1,15.03.2024\n"
	upload := writeUpload(t, db, dir, "bad.csv", csv, models.FileTypeSupplies)

	require.NoError(t, processor.ProcessImport(upload.ID, upload.Filename, upload.FileType))

	var updated models.Upload
	require.NoError(t, db.First(&updated, upload.ID).Error)
	assert.Equal(t, models.UploadStatusFailed, updated.Status)
}

func TestProcessImportMissingFile(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	processor := newImportProcessor(t, db, dir)

	upload := &models.Upload{
		Filename: "нет.csv", OriginalName: "нет.csv",
		FileType: models.FileTypeSupplies, Status: models.UploadStatusPending,
	}
	require.NoError(t, db.Create(upload).Error)

	err := processor.ProcessImport(upload.ID, upload.Filename, upload.FileType)
	require.Error(t, err)

	// Системная ошибка переводит загрузку в FAILED и уходит наверх
	var updated models.Upload
	require.NoError(t, db.First(&updated, upload.ID).Error)
	assert.Equal(t, models.UploadStatusFailed, updated.Status)
	assert.Contains(t, updated.ErrorDetail, "файл не найден")
}

func TestProcessImportSemicolonDelimiter(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	processor := newImportProcessor(t, db, dir)

	csv := "Склад;Штабель;ВыгрузкаНаСклад\n" +
		"1;Ш-1;15.03.2024\n"
	upload := writeUpload(t, db, dir, "semi.csv", csv, models.FileTypeSupplies)

	require.NoError(t, processor.ProcessImport(upload.ID, upload.Filename, upload.FileType))

	var updated models.Upload
	require.NoError(t, db.First(&updated, upload.ID).Error)
	assert.Equal(t, models.UploadStatusCompleted, updated.Status)
	assert.Equal(t, 1, updated.RowsProcessed)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', detectDelimiter("a;b;c\n1;2;3"))
	assert.Equal(t, ',', detectDelimiter("a,b,c\n1,2,3"))
	assert.Equal(t, ',', detectDelimiter("single"))
}

func TestReadCSVSkipsBOMAndEmptyLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.csv")
	content := "\uFEFFdate,t\n2024-06-01,20\n\n2024-06-02,21\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rows, err := readCSVFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-06-01", rows[0]["date"])
	assert.Equal(t, "21", rows[1]["t"])
}
