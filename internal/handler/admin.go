package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/service"
)

type AdminHandler struct {
	admin  *service.AdminService
	engine *service.Engine
}

func NewAdminHandler(admin *service.AdminService, engine *service.Engine) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		engine: engine,
	}
}

// GetAccount returns the account record plus its live activity summary.
// The summary is built from Peek reads and consumes no quota.
func (h *AdminHandler) GetAccount(c *gin.Context) {
	identifier := c.Param("identifier")
	action := c.DefaultQuery("action", "default")

	ctx := c.Request.Context()
	account, err := h.admin.GetAccount(ctx, identifier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}

	summary, err := h.engine.ActivitySummary(ctx, identifier, models.KindUser, action, account.PlanTier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":  account,
		"activity": summary,
	})
}

func (h *AdminHandler) ListAccounts(c *gin.Context) {
	ctx := c.Request.Context()
	accounts, err := h.admin.ListAccounts(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, accounts)
}

func (h *AdminHandler) ResetCounters(c *gin.Context) {
	identifier := c.Param("identifier")

	ctx := c.Request.Context()
	if err := h.admin.ResetCounters(ctx, identifier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Counters reset"})
}

func (h *AdminHandler) Suspend(c *gin.Context) {
	identifier := c.Param("identifier")

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.admin.Suspend(ctx, identifier, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account suspended"})
}

func (h *AdminHandler) Unsuspend(c *gin.Context) {
	identifier := c.Param("identifier")

	ctx := c.Request.Context()
	if err := h.admin.Unsuspend(ctx, identifier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account unsuspended"})
}

// ListEvents returns the abuse audit trail, optionally filtered by
// identifier.
func (h *AdminHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	identifier := c.Query("identifier")

	ctx := c.Request.Context()

	var (
		events []models.AbuseEvent
		err    error
	)
	if identifier != "" {
		events, err = h.admin.EventsFor(ctx, identifier, limit)
	} else {
		events, err = h.admin.RecentEvents(ctx, limit)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, events)
}
