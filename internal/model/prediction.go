package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumericString accepts either a JSON number or a string holding one, and keeps
// the textual form so bad input can be reported per field after binding.
type NumericString string

// UnmarshalJSON implements json.Unmarshaler.
func (n *NumericString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumericString(strings.TrimSpace(s))
		return nil
	}

	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("expected a number or numeric string, got %s", b)
	}
	*n = NumericString(strconv.FormatFloat(v, 'f', -1, 64))
	return nil
}

// Float64 parses the value.
func (n NumericString) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// PredictRequest is the payload for POST /predict and the inline form.
type PredictRequest struct {
	Gender                    string        `json:"Gender" form:"Gender" binding:"required"`
	StudyHoursPerWeek         NumericString `json:"Study_Hours_per_Week" form:"Study_Hours_per_Week" binding:"required"`
	AttendanceRate            NumericString `json:"Attendance_Rate" form:"Attendance_Rate" binding:"required"`
	PastExamScores            NumericString `json:"Past_Exam_Scores" form:"Past_Exam_Scores" binding:"required"`
	ParentalEducationLevel    string        `json:"Parental_Education_Level" form:"Parental_Education_Level" binding:"required"`
	InternetAccessAtHome      string        `json:"Internet_Access_at_Home" form:"Internet_Access_at_Home" binding:"required"`
	ExtracurricularActivities string        `json:"Extracurricular_Activities" form:"Extracurricular_Activities" binding:"required"`
}

// Category returns the raw value of a categorical input column.
func (r *PredictRequest) Category(column string) string {
	switch column {
	case ColumnGender:
		return r.Gender
	case ColumnParentalEducationLevel:
		return r.ParentalEducationLevel
	case ColumnInternetAccessAtHome:
		return r.InternetAccessAtHome
	case ColumnExtracurricularActivities:
		return r.ExtracurricularActivities
	}
	return ""
}

// PredictResponse is the success body of POST /predict.
type PredictResponse struct {
	FinalExamScore float64 `json:"Final_Exam_Score"`
	PassFail       string  `json:"Pass_Fail"`
}

// PredictionLog is one served prediction, persisted when the prediction log is enabled.
type PredictionLog struct {
	ID                        uuid.UUID `json:"id"`
	RequestID                 string    `json:"request_id"`
	Gender                    string    `json:"gender"`
	StudyHoursPerWeek         float64   `json:"study_hours_per_week"`
	AttendanceRate            float64   `json:"attendance_rate"`
	PastExamScores            float64   `json:"past_exam_scores"`
	ParentalEducationLevel    string    `json:"parental_education_level"`
	InternetAccessAtHome      string    `json:"internet_access_at_home"`
	ExtracurricularActivities string    `json:"extracurricular_activities"`
	FinalExamScore            float64   `json:"final_exam_score"`
	PassFail                  string    `json:"pass_fail"`
	CreatedAt                 time.Time `json:"created_at"`
}

// TrainingSummary describes the artifacts built at startup.
type TrainingSummary struct {
	DatasetPath      string              `json:"dataset_path"`
	Rows             int                 `json:"rows"`
	Features         []string            `json:"features"`
	Estimators       int                 `json:"estimators"`
	Seed             int64               `json:"seed"`
	ScoreR2          float64             `json:"score_r2"`
	PassFailAccuracy float64             `json:"pass_fail_accuracy"`
	Vocabularies     map[string][]string `json:"vocabularies"`
	TrainedAt        time.Time           `json:"trained_at"`
	Duration         string              `json:"duration"`
}
