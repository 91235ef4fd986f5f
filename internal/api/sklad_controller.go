package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"coalfire/server/internal/models"
)

type SkladController struct {
	db *gorm.DB
}

func NewSkladController(db *gorm.DB) *SkladController {
	return &SkladController{db: db}
}

// GetSklads возвращает список складов
// GET /api/v1/sklads
func (sc *SkladController) GetSklads(c *gin.Context) {
	var sklads []models.Sklad
	if err := sc.db.Order("number").Find(&sklads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sklads": sklads,
		"count":  len(sklads),
	})
}

// GetShtabels возвращает штабели склада
// GET /api/v1/sklads/:id/shtabels?status=ACTIVE
func (sc *SkladController) GetShtabels(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID склада"})
		return
	}

	query := sc.db.Where("sklad_id = ?", id).Order("label")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var shtabels []models.Shtabel
	if err := query.Find(&shtabels).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shtabels": shtabels,
		"count":    len(shtabels),
	})
}

// GetShtabel возвращает штабель со складом
// GET /api/v1/shtabels/:id
func (sc *SkladController) GetShtabel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный ID штабеля"})
		return
	}

	var shtabel models.Shtabel
	if err := sc.db.Preload("Sklad").First(&shtabel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Штабель не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, shtabel)
}
