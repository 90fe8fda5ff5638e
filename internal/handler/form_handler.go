package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/scorecast/internal/model"
	"github.com/stemsi/scorecast/internal/response"
	"github.com/stemsi/scorecast/internal/validator"
)

//go:embed templates/*.html
var templateFS embed.FS

const formTemplate = "form.html"

// Templates parses the HTML views. Register them with gin's SetHTMLTemplate.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// FormHandler serves a browser form in front of the prediction service.
type FormHandler struct {
	prediction *PredictionHandler
}

// NewFormHandler creates a new FormHandler sharing the prediction handler's
// service and error mapping.
func NewFormHandler(prediction *PredictionHandler) *FormHandler {
	return &FormHandler{prediction: prediction}
}

type formOption struct {
	Field    string
	Label    string
	Values   []string
	Selected string
}

type formView struct {
	Ready   bool
	Input   model.PredictRequest
	Options []formOption
	Result  *model.PredictResponse
	Error   string
	Fields  map[string]string
}

// Show godoc
// GET /form
func (h *FormHandler) Show(c *gin.Context) {
	view := h.newView()
	status := http.StatusOK
	if !view.Ready {
		status = http.StatusServiceUnavailable
	}
	c.HTML(status, formTemplate, view)
}

// Submit godoc
// POST /form
// Runs a prediction from url-encoded input and renders the result inline.
func (h *FormHandler) Submit(c *gin.Context) {
	view := h.newView()
	if !view.Ready {
		view.Error = response.GetMessage(response.ErrServiceNotReady)
		c.HTML(http.StatusServiceUnavailable, formTemplate, view)
		return
	}

	if errs := validator.BindForm(c, &view.Input); errs != nil {
		view.Error = response.GetMessage(response.ErrValidation)
		view.Fields = errs
		view.selectInput()
		c.HTML(http.StatusBadRequest, formTemplate, view)
		return
	}

	result, err := h.prediction.predictionService.Predict(c.Request.Context(), &view.Input, response.RequestID(c))
	if err != nil {
		status, code, fields := h.prediction.classify(c, err)
		view.Error = response.GetMessage(code)
		view.Fields = fields
		view.selectInput()
		c.HTML(status, formTemplate, view)
		return
	}

	view.Result = result
	view.selectInput()
	c.HTML(http.StatusOK, formTemplate, view)
}

func (h *FormHandler) newView() formView {
	svc := h.prediction.predictionService
	view := formView{Ready: svc.Ready()}
	if !view.Ready {
		return view
	}
	for _, col := range model.CategoricalColumns {
		if col == model.ColumnPassFail {
			continue
		}
		view.Options = append(view.Options, formOption{
			Field:  col,
			Label:  model.ColumnLabel(col),
			Values: svc.Vocabulary(col),
		})
	}
	return view
}

// selectInput keeps the submitted categories selected on re-render.
func (v *formView) selectInput() {
	for i := range v.Options {
		v.Options[i].Selected = v.Input.Category(v.Options[i].Field)
	}
}
