package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"numera.app/backend/internal/dto"
	"numera.app/backend/internal/service"
	"numera.app/backend/pkg/response"
	"numera.app/backend/pkg/validator"
)

type AdminHandler struct {
	dispatcher service.Dispatcher
}

func NewAdminHandler(dispatcher service.Dispatcher) *AdminHandler {
	return &AdminHandler{dispatcher: dispatcher}
}

// SendTestNotification pushes a notification through the full pipeline to
// every active user of a company. Admin-only; used to verify channel
// configuration end to end.
func (h *AdminHandler) SendTestNotification(c *gin.Context) {
	actorID, err := response.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.TestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company_id"})
		return
	}

	var exclude *uuid.UUID
	if req.ExcludeSelf {
		exclude = &actorID
	}

	h.dispatcher.DispatchToCompanyUsers(c.Request.Context(), companyID, service.DispatchNotificationPayload{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
		ActorID:   &actorID,
	}, exclude)

	c.JSON(http.StatusAccepted, gin.H{"message": "notification dispatched"})
}
