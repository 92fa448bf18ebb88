package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"numera.app/backend/internal/dto"
	"numera.app/backend/internal/model"
	"numera.app/backend/internal/repository"
	"numera.app/backend/internal/service"
	"numera.app/backend/pkg/apperror"
	"numera.app/backend/pkg/response"
	"numera.app/backend/pkg/validator"
)

type SettingsHandler struct {
	settings  service.SettingsService
	companies repository.CompanyRepository
}

func NewSettingsHandler(settings service.SettingsService, companies repository.CompanyRepository) *SettingsHandler {
	return &SettingsHandler{settings: settings, companies: companies}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, companyID, err := h.scope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	rows, err := h.settings.ListForUser(c.Request.Context(), userID, companyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h *SettingsHandler) UpdateModuleSettings(c *gin.Context) {
	userID, companyID, err := h.scope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	moduleSlug := c.Param("module")
	if !model.IsValidModuleSlug(moduleSlug) {
		response.Error(c, apperror.New(http.StatusBadRequest, "unknown module", apperror.ErrInvalidInput))
		return
	}

	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	row, err := h.settings.UpdateModule(c.Request.Context(), userID, companyID, moduleSlug, toUpdate(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": row})
}

func (h *SettingsHandler) UpdateAllSettings(c *gin.Context) {
	userID, companyID, err := h.scope(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	rows, err := h.settings.UpdateAllModules(c.Request.Context(), userID, companyID, toUpdate(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// scope resolves the (user, company) pair the settings rows belong to.
// Admins without a company fall back to the system company.
func (h *SettingsHandler) scope(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	userID, err := response.GetUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	if raw := c.GetString("company_id"); raw != "" {
		companyID, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, uuid.Nil, apperror.ErrUnauthorized
		}
		return userID, companyID, nil
	}

	companyID, err := h.companies.GetSystemCompanyID(c.Request.Context())
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, companyID, nil
}

func toUpdate(req dto.UpdateSettingsRequest) service.SettingsUpdate {
	return service.SettingsUpdate{
		InAppEnabled:           req.InAppEnabled,
		EmailEnabled:           req.EmailEnabled,
		ReceiveOnCreate:        req.ReceiveOnCreate,
		ReceiveOnUpdate:        req.ReceiveOnUpdate,
		ReceiveOnDelete:        req.ReceiveOnDelete,
		ReceiveOnTaskCompleted: req.ReceiveOnTaskCompleted,
		ReceiveOnTaskOverdue:   req.ReceiveOnTaskOverdue,
		TypePreferences:        req.TypePreferences,
	}
}
