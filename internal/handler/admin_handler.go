package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/model"
	"github.com/stemsi/scorecast/internal/response"
	"github.com/stemsi/scorecast/internal/service"
	"github.com/stemsi/scorecast/internal/validator"
)

// AdminHandler handles the operator API: login, model summary, prediction history.
type AdminHandler struct {
	authService       *service.AuthService
	predictionService *service.PredictionService
	logService        *service.PredictionLogService
	log               zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler. logService may be nil when the
// prediction log is disabled.
func NewAdminHandler(
	authService *service.AuthService,
	predictionService *service.PredictionService,
	logService *service.PredictionLogService,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		authService:       authService,
		predictionService: predictionService,
		logService:        logService,
		log:               log.With().Str("component", "admin_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/admin/login
// Exchanges the admin password for a JWT.
func (h *AdminHandler) Login(c *gin.Context) {
	var req model.AdminLoginRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	token, err := h.authService.Login(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAdminDisabled):
			response.Fail(c, http.StatusForbidden, response.ErrAdminDisabled)
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		default:
			h.log.Error().Err(err).Msg("Admin login failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, model.AdminLoginResponse{
		Token:     token,
		ExpiresIn: h.authService.ExpiresIn(),
	})
}

// Model godoc
// GET /api/v1/admin/model
// Returns the training summary of the loaded models.
func (h *AdminHandler) Model(c *gin.Context) {
	summary, err := h.predictionService.Summary()
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrServiceNotReady)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// Predictions godoc
// GET /api/v1/admin/predictions?limit=50
// Lists the most recent logged predictions, newest first.
func (h *AdminHandler) Predictions(c *gin.Context) {
	if !h.logService.Enabled() {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrFeatureDisabled)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"limit": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	logs, err := h.logService.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list predictions")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"predictions": logs,
		"limit":       service.ClampHistoryLimit(limit),
	})
}
