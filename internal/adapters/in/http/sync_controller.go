package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/config"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/in"
)

// SyncController - административная поверхность движка:
// диагностика, ручной запуск выборки и тумблеры слотов
type SyncController struct {
	useCase in.ScheduleSyncUseCase
	cfg     *config.Config
}

func NewSyncController(useCase in.ScheduleSyncUseCase, cfg *config.Config) *SyncController {
	return &SyncController{
		useCase: useCase,
		cfg:     cfg,
	}
}

func (c *SyncController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.Use(c.basicAuth())
	{
		api.GET("/sync/diagnostics", c.diagnostics)
		api.POST("/sync/refresh", c.refresh)
		api.GET("/sync/slots", c.trackedSlots)
		api.PUT("/sync/slots/:serial/:slotId/enabled", c.setSlotEnabled)
	}
}

func (c *SyncController) diagnostics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.useCase.Diagnostics())
}

func (c *SyncController) refresh(ctx *gin.Context) {
	// Запуск в фоне: цикл single-flight, повторный вызов безвреден
	go c.useCase.Refresh(ctx.Request.Context())
	ctx.JSON(http.StatusAccepted, gin.H{"status": "refresh scheduled"})
}

func (c *SyncController) trackedSlots(ctx *gin.Context) {
	type trackedSlotResponse struct {
		Serial  string `json:"serial"`
		SlotID  string `json:"slotId"`
		ItemKey string `json:"itemKey,omitempty"`
	}

	tracked := c.useCase.TrackedSlots()
	response := make([]trackedSlotResponse, 0, len(tracked))
	for _, t := range tracked {
		itemKey, _ := c.useCase.LocalItemFor(t.Serial, t.SlotID)
		response = append(response, trackedSlotResponse{
			Serial:  t.Serial,
			SlotID:  t.SlotID,
			ItemKey: itemKey,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"slots": response})
}

type setSlotEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (c *SyncController) setSlotEnabled(ctx *gin.Context) {
	var req setSlotEnabledRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.useCase.SetSlotEnabled(
		ctx.Request.Context(),
		ctx.Param("serial"),
		ctx.Param("slotId"),
		*req.Enabled,
	)

	// Неподходящие тумблеры молча бросаются, поэтому ответ всегда accepted
	ctx.JSON(http.StatusAccepted, gin.H{"status": "toggle scheduled"})
}

func (c *SyncController) basicAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username, password, hasAuth := ctx.Request.BasicAuth()
		if !hasAuth {
			ctx.Header("WWW-Authenticate", "Basic realm=Authorization Required")
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(username), []byte(c.cfg.HTTP.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(password), []byte(c.cfg.HTTP.Password)) != 1 {
			ctx.Header("WWW-Authenticate", "Basic realm=Authorization Required")
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		ctx.Next()
	}
}
