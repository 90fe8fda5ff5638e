package model

import "strings"

// Dataset column names. They double as the JSON keys of the predict contract.
const (
	ColumnGender                    = "Gender"
	ColumnStudyHoursPerWeek         = "Study_Hours_per_Week"
	ColumnAttendanceRate            = "Attendance_Rate"
	ColumnPastExamScores            = "Past_Exam_Scores"
	ColumnParentalEducationLevel    = "Parental_Education_Level"
	ColumnInternetAccessAtHome      = "Internet_Access_at_Home"
	ColumnExtracurricularActivities = "Extracurricular_Activities"
	ColumnFinalExamScore            = "Final_Exam_Score"
	ColumnPassFail                  = "Pass_Fail"
)

// FeatureColumns is the column order of the feature vector shared by training
// and inference. Reordering it silently corrupts predictions.
var FeatureColumns = [7]string{
	ColumnGender,
	ColumnStudyHoursPerWeek,
	ColumnAttendanceRate,
	ColumnPastExamScores,
	ColumnParentalEducationLevel,
	ColumnInternetAccessAtHome,
	ColumnExtracurricularActivities,
}

// CategoricalColumns are the label-encoded columns, targets included.
var CategoricalColumns = []string{
	ColumnGender,
	ColumnParentalEducationLevel,
	ColumnInternetAccessAtHome,
	ColumnExtracurricularActivities,
	ColumnPassFail,
}

// StudentRecord is one row of the training dataset.
type StudentRecord struct {
	Gender                    string
	StudyHoursPerWeek         float64
	AttendanceRate            float64
	PastExamScores            float64
	ParentalEducationLevel    string
	InternetAccessAtHome      string
	ExtracurricularActivities string
	FinalExamScore            float64
	PassFail                  string
}

// Category returns the raw value of a categorical column.
func (r StudentRecord) Category(column string) (string, bool) {
	switch column {
	case ColumnGender:
		return r.Gender, true
	case ColumnParentalEducationLevel:
		return r.ParentalEducationLevel, true
	case ColumnInternetAccessAtHome:
		return r.InternetAccessAtHome, true
	case ColumnExtracurricularActivities:
		return r.ExtracurricularActivities, true
	case ColumnPassFail:
		return r.PassFail, true
	default:
		return "", false
	}
}

// ColumnLabel is the human-readable form of a column name.
func ColumnLabel(column string) string {
	return strings.ReplaceAll(column, "_", " ")
}
