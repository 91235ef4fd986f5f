package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
	"coalfire/server/internal/services"
)

type PredictionController struct {
	service *services.PredictionService
}

func NewPredictionController(service *services.PredictionService) *PredictionController {
	return &PredictionController{service: service}
}

type calculateRequest struct {
	ShtabelID   uint `json:"shtabelId" binding:"required"`
	HorizonDays *int `json:"horizonDays"`
}

// Calculate ставит задание расчета прогноза для штабеля
// POST /api/v1/predictions/calculate
func (pc *PredictionController) Calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные", "details": err.Error()})
		return
	}

	if err := pc.service.EnqueuePrediction(c.Request.Context(), req.ShtabelID, req.HorizonDays); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Штабель не найден"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"shtabelId": req.ShtabelID, "queued": true})
}

type batchRequest struct {
	ShtabelIDs []uint `json:"shtabelIds"`
}

// CalculateBatch ставит пакетное задание. Без тела или с пустым
// списком — все активные штабели.
// POST /api/v1/predictions/batch
func (pc *PredictionController) CalculateBatch(c *gin.Context) {
	var req batchRequest
	_ = c.ShouldBindJSON(&req)

	count, err := pc.service.EnqueueBatch(c.Request.Context(), req.ShtabelIDs)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": true, "count": count})
}

type trainRequest struct {
	ModelName    string                 `json:"modelName" binding:"required"`
	ModelVersion string                 `json:"modelVersion" binding:"required"`
	Config       map[string]interface{} `json:"config"`
}

// Train ставит задание обучения модели
// POST /api/v1/models/train
func (pc *PredictionController) Train(c *gin.Context) {
	var req trainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные", "details": err.Error()})
		return
	}

	if err := pc.service.EnqueueTraining(c.Request.Context(), req.ModelName, req.ModelVersion, req.Config); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"model": req.ModelName, "version": req.ModelVersion, "queued": true})
}

// List возвращает прогнозы с фильтрами
// GET /api/v1/predictions?shtabel_id=1&risk_level=HIGH&limit=100
func (pc *PredictionController) List(c *gin.Context) {
	var shtabelID *uint
	if raw := c.Query("shtabel_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный shtabel_id"})
			return
		}
		parsed := uint(id)
		shtabelID = &parsed
	}

	var riskLevel *models.RiskLevel
	if raw := c.Query("risk_level"); raw != "" {
		level := models.RiskLevel(raw)
		riskLevel = &level
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	predictions, err := pc.service.ListPredictions(shtabelID, riskLevel, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": predictions,
		"count":       len(predictions),
	})
}

// Latest возвращает последний прогноз штабеля
// GET /api/v1/predictions/latest/:shtabelId
func (pc *PredictionController) Latest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("shtabelId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID штабеля"})
		return
	}

	prediction, err := pc.service.LatestForShtabel(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if prediction == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Прогнозов для штабеля нет"})
		return
	}

	c.JSON(http.StatusOK, prediction)
}

// Metrics возвращает метрики качества моделей
// GET /api/v1/metrics?model_name=xgboost_v1
func (pc *PredictionController) Metrics(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	metrics, err := pc.service.ListMetrics(c.Query("model_name"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics": metrics,
		"count":   len(metrics),
	})
}
