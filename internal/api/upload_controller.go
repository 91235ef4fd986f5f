package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
	"coalfire/server/internal/services"
)

type UploadController struct {
	service *services.UploadService
}

func NewUploadController(service *services.UploadService) *UploadController {
	return &UploadController{service: service}
}

// UploadCSV принимает CSV файл и ставит задание импорта
// POST /api/v1/data/upload (multipart: file, fileType)
func (uc *UploadController) UploadCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не передан", "details": err.Error()})
		return
	}

	fileType := models.FileType(strings.ToUpper(c.PostForm("fileType")))
	if !services.ValidFileType(fileType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Неподдерживаемый тип файла, ожидается: SUPPLIES, FIRES, TEMPERATURE или WEATHER",
		})
		return
	}

	var uploadedBy *uint
	if raw := c.PostForm("userId"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			userID := uint(id)
			uploadedBy = &userID
		}
	}

	upload, err := uc.service.CreateUpload(c.Request.Context(), file, fileType, uploadedBy)
	if err != nil {
		status := http.StatusBadRequest
		if upload != nil {
			// Файл принят, но задание не встало в очередь
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"uploadId": upload.ID,
		"status":   upload.Status,
		"filename": upload.OriginalName,
		"fileType": upload.FileType,
	})
}

// GetUpload возвращает статус загрузки
// GET /api/v1/data/uploads/:id
func (uc *UploadController) GetUpload(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID загрузки"})
		return
	}

	upload, err := uc.service.GetUpload(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Загрузка не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, upload)
}

// ListUploads возвращает список загрузок
// GET /api/v1/data/uploads?limit=50
func (uc *UploadController) ListUploads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	uploads, err := uc.service.ListUploads(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploads": uploads,
		"count":   len(uploads),
	})
}
