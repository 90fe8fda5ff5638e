package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/model"
	"github.com/stemsi/scorecast/internal/response"
	"github.com/stemsi/scorecast/internal/service"
	"github.com/stemsi/scorecast/internal/validator"
)

const (
	readyMessage    = "Prediction service is ready."
	notReadyMessage = "Prediction service is not ready: data failed to load."
)

// PredictionHandler serves the readiness and prediction endpoints.
type PredictionHandler struct {
	predictionService *service.PredictionService
	log               zerolog.Logger
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(predictionService *service.PredictionService, log zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
		log:               log.With().Str("component", "prediction_handler").Logger(),
	}
}

// Home godoc
// GET /
// Plain-text readiness probe.
func (h *PredictionHandler) Home(c *gin.Context) {
	if !h.predictionService.Ready() {
		c.String(http.StatusServiceUnavailable, notReadyMessage)
		return
	}
	c.String(http.StatusOK, readyMessage)
}

// Health godoc
// GET /health
func (h *PredictionHandler) Health(c *gin.Context) {
	ready := h.predictionService.Ready()
	status := "ok"
	if !ready {
		status = "degraded"
	}
	response.Success(c, http.StatusOK, gin.H{"status": status, "ready": ready})
}

// Predict godoc
// POST /predict
// Predicts Final_Exam_Score and Pass_Fail for one student.
func (h *PredictionHandler) Predict(c *gin.Context) {
	if !h.predictionService.Ready() {
		response.FlatFail(c, http.StatusServiceUnavailable, response.ErrServiceNotReady)
		return
	}

	var req model.PredictRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FlatFailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	result, err := h.predictionService.Predict(c.Request.Context(), &req, response.RequestID(c))
	if err != nil {
		status, code, fields := h.classify(c, err)
		response.FlatFailWithFields(c, status, code, fields)
		return
	}

	response.Plain(c, http.StatusOK, result)
}

// classify maps a prediction error onto the HTTP error taxonomy. Internal
// errors are logged here and never echoed to the client.
func (h *PredictionHandler) classify(c *gin.Context, err error) (int, response.ErrCode, map[string]string) {
	if errors.Is(err, service.ErrNotReady) {
		return http.StatusServiceUnavailable, response.ErrServiceNotReady, nil
	}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		fields := map[string]string{ve.Field: ve.FieldMessage()}
		if ve.Kind == service.UnknownCategory {
			return http.StatusBadRequest, response.ErrUnknownCategory, fields
		}
		return http.StatusBadRequest, response.ErrValidation, fields
	}

	h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Prediction failed")
	return http.StatusInternalServerError, response.ErrInternal, nil
}
